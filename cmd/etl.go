package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/metrolab/tripline/internal/etl"
	"github.com/metrolab/tripline/internal/model"
)

var (
	etlTripsFile string
	etlZonesFile string
	etlLedger    string
	etlRules     string
	etlBatch     int
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run the trip validation pipeline",
	Long:  "Reads the raw trip CSV, classifies every record against the rule set, replaces the stored trip table with the accepted set, and rewrites the rejection ledger.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		thresholds := etl.DefaultThresholds()
		rulesFile := etlRules
		if rulesFile == "" {
			rulesFile = cfg.Data.RulesFile
		}
		if rulesFile != "" {
			if _, statErr := os.Stat(rulesFile); statErr == nil {
				thresholds, err = etl.LoadThresholds(rulesFile)
				if err != nil {
					return eris.Wrapf(err, "load rules file %s", rulesFile)
				}
			}
		}

		p := &etl.Pipeline{
			Store:      st,
			TripsPath:  pick(etlTripsFile, cfg.Data.TripsFile),
			ZonesPath:  pick(etlZonesFile, cfg.Data.ZonesFile),
			LedgerPath: pick(etlLedger, cfg.Data.LedgerFile),
			Thresholds: thresholds,
			BatchSize:  pickInt(etlBatch, cfg.Pipeline.BatchSize),
		}

		run, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "etl")
		}

		printRunSummary(run)
		return nil
	},
}

// printRunSummary writes the ingest report with grouped thousands so large
// row counts stay readable.
func printRunSummary(run *model.PipelineRun) {
	pr := message.NewPrinter(language.English)
	pr.Printf("Run %s finished in %s\n", run.ID, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	pr.Printf("  Total rows: %d\n", run.TotalRows)
	pr.Printf("  Accepted:   %d\n", run.Accepted)
	pr.Printf("  Rejected:   %d\n", run.Rejected)
	pr.Printf("  Quality:    %.2f%%\n", run.QualityScore)
	for _, reason := range model.RejectionReasons() {
		if n := run.Breakdown[reason]; n > 0 {
			pr.Printf("    %-28s %d\n", string(reason), n)
		}
	}
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func pickInt(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}

func init() {
	etlCmd.Flags().StringVar(&etlTripsFile, "trips", "", "trip CSV file (default from config)")
	etlCmd.Flags().StringVar(&etlZonesFile, "zones", "", "zone lookup file, CSV or XLSX (default from config)")
	etlCmd.Flags().StringVar(&etlLedger, "ledger", "", "rejection ledger output path (default from config)")
	etlCmd.Flags().StringVar(&etlRules, "rules", "", "YAML rule threshold overrides (default from config)")
	etlCmd.Flags().IntVar(&etlBatch, "batch-size", 0, "insert batch size (default from config)")
	rootCmd.AddCommand(etlCmd)
}
