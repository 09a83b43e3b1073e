package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentalhub/dupdetect/internal/ledger"
	"github.com/rentalhub/dupdetect/internal/listing"
)

// ErrInvalidListingID is returned when a detection call names a blank id.
var ErrInvalidListingID = errors.New("invalid listing id")

// Match is one plausible duplicate of the target, built fresh per detection
// run and never persisted; only a moderator decision about the pair is.
type Match struct {
	ListingID  string    `json:"listing_id"`
	Breakdown  Breakdown `json:"breakdown"`
	TotalScore float64   `json:"total_score"`
	Confidence Tier      `json:"confidence"`
	Evidence   []string  `json:"evidence"`
}

// Report is the outcome of one detection invocation.
type Report struct {
	TargetID    string        `json:"target_id"`
	Matches     []Match       `json:"matches"`
	Method      ledger.Method `json:"method"`
	Candidates  int           `json:"candidates"`
	Skipped     int           `json:"skipped"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Options control one detection run.
type Options struct {
	Method ledger.Method
	// Force re-scores pairs that moderation already resolved.
	Force bool
}

// Detector runs the detection pipeline: select candidates, score each pair
// over the six signals, fuse, rank.
type Detector struct {
	repo      listing.Repository
	selector  *Selector
	scorers   []Scorer
	composite *CompositeScorer
	workers   int
	log       zerolog.Logger
}

// NewDetector wires the pipeline together. workers bounds the per-run
// scoring fan-out across candidates.
func NewDetector(repo listing.Repository, selector *Selector, scorers []Scorer, composite *CompositeScorer, workers int, log zerolog.Logger) *Detector {
	if workers <= 0 {
		workers = 4
	}
	return &Detector{
		repo:      repo,
		selector:  selector,
		scorers:   scorers,
		composite: composite,
		workers:   workers,
		log:       log,
	}
}

// Detect runs incremental detection for one target listing and returns the
// ranked match list. A failure scoring one candidate skips that candidate
// and never aborts the rest.
func (d *Detector) Detect(ctx context.Context, targetID string, opts Options) (*Report, error) {
	if strings.TrimSpace(targetID) == "" {
		return nil, ErrInvalidListingID
	}
	if opts.Method == "" {
		opts.Method = ledger.MethodIncremental
	}

	target, err := d.repo.Get(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target listing: %w", err)
	}

	candidates, err := d.selector.Select(ctx, target, opts.Force)
	if err != nil {
		return nil, err
	}

	matches, skipped := d.scoreAll(target, candidates)

	// Rank by total descending; ties break on id so reruns are identical.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].TotalScore != matches[j].TotalScore {
			return matches[i].TotalScore > matches[j].TotalScore
		}
		return matches[i].ListingID < matches[j].ListingID
	})

	return &Report{
		TargetID:    target.ID,
		Matches:     matches,
		Method:      opts.Method,
		Candidates:  len(candidates),
		Skipped:     skipped,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// scoreAll fans candidate scoring out over a bounded worker pool. The six
// signals of one pair always run to completion; there is no mid-pair
// cancellation.
func (d *Detector) scoreAll(target *listing.Listing, candidates []listing.Listing) ([]Match, int) {
	if len(candidates) == 0 {
		return nil, 0
	}

	workers := d.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	jobs := make(chan *listing.Listing)
	results := make(chan Match, len(candidates))
	var skipped int
	var skippedMu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				match, ok := d.scorePair(target, c)
				if !ok {
					skippedMu.Lock()
					skipped++
					skippedMu.Unlock()
					continue
				}
				if match.Confidence == TierNone {
					continue
				}
				results <- match
			}
		}()
	}

	for i := range candidates {
		jobs <- &candidates[i]
	}
	close(jobs)
	wg.Wait()
	close(results)

	var matches []Match
	for m := range results {
		matches = append(matches, m)
	}
	return matches, skipped
}

// scorePair computes the full breakdown for one candidate. A panic from
// malformed candidate data is recovered: the candidate is logged and
// skipped so the remaining candidates still get scored.
func (d *Detector) scorePair(target, candidate *listing.Listing) (match Match, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("target_id", target.ID).
				Str("candidate_id", candidate.ID).
				Interface("panic", r).
				Msg("skipping candidate: scoring failed")
			ok = false
		}
	}()

	var b Breakdown
	for _, scorer := range d.scorers {
		b.Set(scorer.Name(), scorer.Score(target, candidate))
	}

	total := d.composite.Total(b)
	return Match{
		ListingID:  candidate.ID,
		Breakdown:  b,
		TotalScore: total,
		Confidence: d.composite.Classify(total),
		Evidence:   d.composite.Evidence(b),
	}, true
}
