package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rentalhub/dupdetect/internal/config"
	"github.com/rentalhub/dupdetect/internal/db"
	"github.com/rentalhub/dupdetect/internal/engine"
	"github.com/rentalhub/dupdetect/internal/ledger"
	"github.com/rentalhub/dupdetect/internal/listing"
	"github.com/rentalhub/dupdetect/internal/logging"
	"github.com/rentalhub/dupdetect/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "dupdetect",
		Short: "Duplicate listing detection engine",
		Long:  `Finds listings that plausibly describe the same physical property and tracks moderation decisions about them`,
	}

	rootCmd.AddCommand(createServeCmd(cfg, log))
	rootCmd.AddCommand(createDetectCmd(cfg, log))
	rootCmd.AddCommand(createFullScanCmd(cfg, log))
	rootCmd.AddCommand(createLedgerCmd(cfg, log))
	rootCmd.AddCommand(createPingCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps bundles the wired engine for commands that run detection.
type deps struct {
	conn     *sql.DB
	repo     listing.Repository
	store    ledger.Store
	detector *engine.Detector
}

func setup(cfg *config.Config, log zerolog.Logger) (*deps, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	conn, err := db.Open(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}

	scoring := engine.DefaultScoringConfig()
	if cfg.ScoringConfigFile != "" {
		scoring, err = engine.LoadScoringConfig(cfg.ScoringConfigFile)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	repo := listing.NewPostgresRepository(conn)
	store := ledger.NewPostgresStore(conn)
	selector := engine.NewSelector(repo, store, engine.SelectorConfig{
		RadiusM:          cfg.CandidateRadiusM,
		AddressPrefixLen: cfg.AddressPrefixLen,
		MaxCandidates:    cfg.MaxCandidates,
	})
	detector := engine.NewDetector(repo, selector,
		engine.DefaultScorers(cfg.CandidateRadiusM),
		engine.NewCompositeScorer(scoring),
		cfg.DetectWorkers, log)

	return &deps{conn: conn, repo: repo, store: store, detector: detector}, nil
}

func (d *deps) close() {
	d.conn.Close()
}

func createServeCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the moderation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			server := web.NewServer(web.Config{
				Host:               cfg.ServerHost,
				Port:               cfg.ServerPort,
				CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			}, d.detector, d.store, log)

			return server.Start()
		},
	}
}

func createDetectCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "detect [listing-id]",
		Short: "Run incremental detection for one listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			report, err := d.detector.Detect(cmd.Context(), args[0], engine.Options{
				Method: ledger.MethodIncremental,
				Force:  force,
			})
			if err != nil {
				return err
			}

			return printJSON(report)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-score pairs already resolved by moderation")
	return cmd
}

func createFullScanCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	var workers int
	var force bool
	var record bool

	cmd := &cobra.Command{
		Use:   "full-scan",
		Short: "Run detection for every active listing",
		Long:  `Runs incremental detection once per active listing. Safe to interrupt and re-run; resolved pairs stay suppressed across runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var report func(string, *engine.Report)
			if record {
				report = recordPending(ctx, d.store, log)
			}

			summary, err := d.detector.FullScan(ctx, engine.FullScanOptions{
				Workers: workers,
				Force:   force,
			}, report)
			if err != nil {
				return err
			}

			return printJSON(summary)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", cfg.FullScanWorkers, "Number of parallel workers")
	cmd.Flags().BoolVar(&force, "force", false, "Re-score pairs already resolved by moderation")
	cmd.Flags().BoolVar(&record, "record", false, "Record surfaced matches as pending ledger entries")
	return cmd
}

// recordPending queues each surfaced match for moderation. The ledger upsert
// leaves already-resolved pairs untouched, so re-scans are no-ops for them.
func recordPending(ctx context.Context, store ledger.Store, log zerolog.Logger) func(string, *engine.Report) {
	return func(targetID string, r *engine.Report) {
		for _, m := range r.Matches {
			key := ledger.NewPairKey(targetID, m.ListingID)
			_, err := store.UpsertDecision(ctx, key, ledger.Decision{
				Status: ledger.StatusPending,
				Score:  m.TotalScore,
				Method: ledger.MethodFullScan,
			})
			if err != nil {
				log.Warn().
					Str("canonical_id", key.CanonicalID).
					Str("duplicate_id", key.DuplicateID).
					Err(err).Msg("failed to queue pair for review")
			}
		}
	}
}

func createLedgerCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and update the duplicate ledger",
	}
	ledgerCmd.AddCommand(createLedgerPendingCmd(cfg, log))
	ledgerCmd.AddCommand(createLedgerDecideCmd(cfg, log))
	ledgerCmd.AddCommand(createLedgerClearCmd(cfg, log))
	return ledgerCmd
}

func createLedgerPendingCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	var limit int
	var listingID string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pairs awaiting moderation",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			entries, err := d.store.ListPending(cmd.Context(), ledger.PendingFilter{
				ListingID: listingID,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			return printJSON(entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")
	cmd.Flags().StringVar(&listingID, "listing", "", "Only pairs involving this listing")
	return cmd
}

func createLedgerDecideCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	var decision string
	var score float64
	var reviewer string

	cmd := &cobra.Command{
		Use:   "decide [listing-a] [listing-b]",
		Short: "Record a moderation decision for a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			dec := ledger.Decision{
				Status: ledger.Status(decision),
				Score:  score,
				Method: ledger.MethodManual,
			}
			if reviewer != "" {
				dec.ReviewerID = &reviewer
			}
			if !dec.Valid() {
				return fmt.Errorf("decision must be pending, confirmed or dismissed")
			}

			entry, err := d.store.UpsertDecision(cmd.Context(), ledger.NewPairKey(args[0], args[1]), dec)
			if err != nil {
				return err
			}

			return printJSON(entry)
		},
	}

	cmd.Flags().StringVar(&decision, "decision", "", "pending, confirmed or dismissed")
	cmd.Flags().Float64Var(&score, "score", 0, "Score at time of decision")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer id for the audit trail")
	return cmd
}

func createLedgerClearCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [listing-a] [listing-b]",
		Short: "Delete a pair's entry so it can resurface on the next scan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			key := ledger.NewPairKey(args[0], args[1])
			if err := d.store.RemoveSuppression(cmd.Context(), key); err != nil {
				return err
			}

			fmt.Printf("cleared %s / %s\n", key.CanonicalID, key.DuplicateID)
			return nil
		},
	}
}

func createPingCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			conn, err := db.Open(cfg.DatabaseURL, 1)
			if err != nil {
				return err
			}
			defer conn.Close()

			var listings, entries int
			if err := conn.QueryRow("SELECT COUNT(*) FROM listings WHERE active").Scan(&listings); err != nil {
				return fmt.Errorf("failed to count listings: %w", err)
			}
			if err := conn.QueryRow("SELECT COUNT(*) FROM duplicate_ledger").Scan(&entries); err != nil {
				return fmt.Errorf("failed to count ledger entries: %w", err)
			}

			fmt.Printf("Database connection successful!\n")
			fmt.Printf("Active listings: %d\n", listings)
			fmt.Printf("Ledger entries: %d\n", entries)
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
