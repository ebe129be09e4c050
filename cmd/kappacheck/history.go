package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kappacheck/internal/batch"
	"github.com/TobiSchelling/kappacheck/internal/database"
	"github.com/TobiSchelling/kappacheck/internal/format"
	"github.com/TobiSchelling/kappacheck/internal/kappa"
)

// --- batch command ---

var (
	batchSize   int
	batchOut    string
	batchRandom bool
	batchSeed   uint64
)

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Split a RIS export into batches for raters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := batch.Options{
			Size:      cfg.Batch.Size,
			Randomize: cfg.Batch.Random,
			Seed:      cfg.Batch.Seed,
			OutputDir: cfg.Batch.OutputDir,
		}
		if cmd.Flags().Changed("size") {
			opts.Size = batchSize
		}
		if cmd.Flags().Changed("out") {
			opts.OutputDir = batchOut
		}
		if cmd.Flags().Changed("random") {
			opts.Randomize = batchRandom
		}
		if cmd.Flags().Changed("seed") {
			opts.Seed = batchSeed
		}

		paths, err := batch.SplitFile(args[0], opts)
		if err != nil {
			return err
		}
		order := "sequential"
		if opts.Randomize {
			order = fmt.Sprintf("random, seed %d", opts.Seed)
		}
		fmt.Printf("Split %s into %d batches of up to %d records (%s):\n", args[0], len(paths), opts.Size, order)
		for _, p := range paths {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchSize, "size", "n", 50, "Records per batch")
	batchCmd.Flags().StringVar(&batchOut, "out", "batches", "Output directory")
	batchCmd.Flags().BoolVar(&batchRandom, "random", false, "Shuffle records before splitting")
	batchCmd.Flags().Uint64Var(&batchSeed, "seed", batch.DefaultSeed, "Seed for --random")
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored kappa runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetRecentRuns(historyLimit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs stored. Compute one with: kappacheck kappa FILE")
			return nil
		}

		t := format.NewTable(format.ASCII)
		t.Header("Run", "Computed", "Source", "Kappa", "Items", "κ", "CI")
		t.AlignRight(5, 6)
		for _, r := range runs {
			t.Row(
				r.RunID[:min(8, len(r.RunID))],
				database.FormatComputedAt(r.ComputedAt),
				filepath.Base(r.Source),
				kappa.Kind(r.Kind).Label(),
				r.Items,
				fmt.Sprintf("%.3f", r.Kappa),
				fmt.Sprintf("[%.2f, %.2f]", r.CILower, r.CIUpper),
			)
		}
		fmt.Println(t.String())
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := findRun(db, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Run %s\n", run.RunID)
		fmt.Printf("Source: %s\n", run.Source)
		fmt.Printf("Computed: %s\n", database.FormatComputedAt(run.ComputedAt))
		if run.Matcher != "" {
			fmt.Printf("Matcher: %s\n", run.Matcher)
		}
		if len(run.CategoryLabels) > 0 {
			fmt.Printf("Categories: %s\n", strings.Join(run.CategoryLabels, ", "))
		}
		fmt.Println()
		fmt.Print(kappa.Summary(run.Report()))
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [run-id]",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := findRun(db, args[0])
		if err != nil {
			return err
		}
		if _, err := db.DeleteRun(run.RunID); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s (%s)\n", run.RunID, filepath.Base(run.Source))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

// findRun resolves a full run ID or a unique prefix as printed by history.
func findRun(db *database.DB, id string) (*database.Run, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.GetRecentRuns(0)
	if err != nil {
		return nil, err
	}
	var match *database.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].RunID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return match, nil
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and run history status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Extraction:")
		fmt.Printf("  Field: %s\n", cfg.Extract.Field)
		fmt.Printf("  Matcher: %s\n", cfg.Extract.Matcher)
		fmt.Printf("  Unicode normalisation: %t\n", cfg.Extract.Normalize)
		fmt.Println("\nEstimation:")
		fmt.Printf("  Default kind: %s\n", cfg.Kappa.Kind)
		fmt.Printf("  Confidence: %s\n", kappa.ConfidenceLabel(cfg.Kappa.Confidence))
		fmt.Printf("  Parallel inputs: %d\n", cfg.Kappa.Parallel)
		fmt.Println("\nHistory:")
		fmt.Printf("  Runs: %d (%d free-marginal, %d fixed-marginal)\n", stats.TotalRuns, stats.FreeRuns, stats.FixedRuns)
		fmt.Printf("  Inputs: %d\n", stats.Sources)
		if stats.MeanKappa != nil {
			fmt.Printf("  Mean kappa: %.3f\n", *stats.MeanKappa)
		}
		if stats.LastRunAt != nil {
			fmt.Printf("  Last run: %s\n", database.FormatComputedAt(stats.LastRunAt))
		}
		return nil
	},
}
