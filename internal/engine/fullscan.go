package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rentalhub/dupdetect/internal/ledger"
)

// FullScanOptions control a corpus-wide scan.
type FullScanOptions struct {
	// Workers bounds how many listings are detected concurrently.
	Workers int
	// Force re-scores pairs that moderation already resolved.
	Force bool
}

// ListingFailure records one listing whose detection failed during a scan.
type ListingFailure struct {
	ListingID string `json:"listing_id"`
	Error     string `json:"error"`
}

// BatchSummary reports the outcome of a full scan. Failures are collected,
// never thrown: one listing's failure does not abort the batch.
type BatchSummary struct {
	Processed   int              `json:"processed"`
	WithMatches int              `json:"with_matches"`
	Matches     int              `json:"matches"`
	Failures    []ListingFailure `json:"failures,omitempty"`
	Stopped     bool             `json:"stopped"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// FullScan runs incremental detection once per active listing. Every
// listing's detection is independent and idempotent, so an interrupted scan
// is simply re-run; resolved pairs stay suppressed across runs. The stop
// signal is cooperative and checked between listings, never mid-listing.
func (d *Detector) FullScan(ctx context.Context, opts FullScanOptions, report func(targetID string, r *Report)) (*BatchSummary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = d.workers
	}

	ids, err := d.repo.ActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus: %w", err)
	}

	summary := &BatchSummary{StartedAt: time.Now().UTC()}
	d.log.Info().Int("listings", len(ids)).Int("workers", workers).Msg("starting full scan")

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				r, err := d.Detect(ctx, id, Options{Method: ledger.MethodFullScan, Force: opts.Force})

				mu.Lock()
				summary.Processed++
				if err != nil {
					summary.Failures = append(summary.Failures, ListingFailure{ListingID: id, Error: err.Error()})
					d.log.Warn().Str("listing_id", id).Err(err).Msg("full scan: listing failed")
				} else if len(r.Matches) > 0 {
					summary.WithMatches++
					summary.Matches += len(r.Matches)
				}
				processed := summary.Processed
				mu.Unlock()

				if err == nil && report != nil {
					report(id, r)
				}
				if processed%1000 == 0 {
					d.log.Info().Int("processed", processed).Msg("full scan progress")
				}
			}
		}()
	}

feed:
	for _, id := range ids {
		if ctx.Err() != nil {
			summary.Stopped = true
			break
		}
		select {
		case <-ctx.Done():
			summary.Stopped = true
			break feed
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].ListingID < summary.Failures[j].ListingID
	})
	summary.CompletedAt = time.Now().UTC()

	d.log.Info().
		Int("processed", summary.Processed).
		Int("with_matches", summary.WithMatches).
		Int("failures", len(summary.Failures)).
		Bool("stopped", summary.Stopped).
		Dur("elapsed", summary.CompletedAt.Sub(summary.StartedAt)).
		Msg("full scan complete")

	return summary, nil
}
