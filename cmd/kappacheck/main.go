package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kappacheck/internal/config"
	"github.com/TobiSchelling/kappacheck/internal/database"
	"github.com/TobiSchelling/kappacheck/internal/extract"
	"github.com/TobiSchelling/kappacheck/internal/format"
	"github.com/TobiSchelling/kappacheck/internal/kappa"
	"github.com/TobiSchelling/kappacheck/internal/matrix"
	"github.com/TobiSchelling/kappacheck/internal/pipeline"
	"github.com/TobiSchelling/kappacheck/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kappacheck",
	Short:   "Inter-rater agreement for screening exports",
	Long:    "kappacheck converts rater annotations from Rayyan CSV exports into rating-count matrices and computes free-marginal and fixed-marginal kappa with confidence intervals.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		applyLogLevel(cfg.Logging.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(kappaCmd)
	rootCmd.AddCommand(matrixCmd)
	rootCmd.AddCommand(tsvCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

// applyLogLevel silences progress lines for WARN and ERROR. --verbose wins.
func applyLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	case "WARN", "WARNING", "ERROR":
		if !verbose {
			log.SetOutput(io.Discard)
		}
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kappacheck", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/kappacheck/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change the annotation field, matcher or default kappa kind.")
		return nil
	},
}

// --- kappa command ---

var (
	kindFlag       string
	tsvDir         string
	chartDir       string
	outputFormat   string
	noStore        bool
	matcherFlag    string
	fieldFlag      string
	confidenceFlag float64
)

var kappaCmd = &cobra.Command{
	Use:   "kappa FILE...",
	Short: "Compute kappa for one or more CSV exports",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pipeline.CheckInputs(args); err != nil {
			return err
		}
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}

		var db *database.DB
		if opts.Store {
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		results := pipeline.New(db).RunAll(ctx, args, opts)
		return printResults(results)
	},
}

func init() {
	addEstimateFlags(kappaCmd)
	kappaCmd.Flags().StringVar(&tsvDir, "tsv", "", "Also write each rating-count matrix as TSV into this directory")
	kappaCmd.Flags().StringVar(&chartDir, "chart", "", "Write per-item agreement charts (PNG) into this directory")
	kappaCmd.Flags().StringVar(&matcherFlag, "matcher", "", "Category matcher: substring or exact (default from config)")
	kappaCmd.Flags().StringVar(&fieldFlag, "field", "", "Annotation column (default from config)")
}

func addEstimateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Kappa kind: free, fixed or both (default from config)")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text, table or markdown")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record runs in the history database")
	cmd.Flags().Float64Var(&confidenceFlag, "confidence", 0, "Confidence level for intervals (default from config)")
}

// runOptions merges command-line flags over the loaded config.
func runOptions(cmd *cobra.Command) (pipeline.Options, error) {
	c := *cfg
	if cmd.Flags().Changed("kind") {
		c.Kappa.Kind = kindFlag
	}
	if cmd.Flags().Changed("matcher") {
		c.Extract.Matcher = matcherFlag
	}
	if cmd.Flags().Changed("field") {
		c.Extract.Field = fieldFlag
	}
	if cmd.Flags().Changed("confidence") {
		c.Kappa.Confidence = confidenceFlag
	}

	opts, err := pipeline.OptionsFromConfig(&c)
	if err != nil {
		return opts, err
	}
	if _, err := kappa.ZFor(opts.Confidence); err != nil {
		return opts, err
	}
	if outputFormat != "text" {
		if _, err := format.ParseMode(outputFormat); err != nil {
			return opts, err
		}
	}
	opts.TSVDir = tsvDir
	opts.ChartDir = chartDir
	opts.Store = !noStore
	return opts, nil
}

func printResults(results []*pipeline.Result) error {
	failed := 0
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		if err := r.Err(); err != nil {
			failed++
			fmt.Printf("%s\n  Error: %v\n", r.Source, err)
			continue
		}
		printReports(r)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(results))
	}
	return nil
}

func printReports(r *pipeline.Result) {
	if outputFormat == "text" {
		if len(r.Reports) > 0 {
			fmt.Printf("%s (%d items, %d raters, categories: %s)\n",
				r.Source, r.Reports[0].Items, r.Reports[0].Raters, strings.Join(r.Matrix.Categories, ", "))
		}
		for _, rep := range r.Reports {
			fmt.Print(kappa.Summary(rep))
		}
	} else {
		mode, _ := format.ParseMode(outputFormat)
		fmt.Print(kappa.Table(filepath.Base(r.Source), r.Reports, mode))
		fmt.Println()
	}

	for _, path := range r.Outputs {
		fmt.Printf("  Wrote %s\n", path)
	}
	for _, id := range r.RunIDs {
		fmt.Printf("  Stored run %s\n", id)
	}
}

// --- matrix command ---

var matrixOut string

var matrixCmd = &cobra.Command{
	Use:   "matrix FILE",
	Short: "Extract the rating-count matrix from a CSV export as TSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		rows, err := extract.ReadCSVFile(args[0])
		if err != nil {
			return err
		}
		m, err := extract.Extract(rows, opts.Extract)
		if err != nil {
			return err
		}

		if matrixOut == "" {
			return matrix.WriteTSV(os.Stdout, m)
		}
		path, err := matrix.SaveTSV(matrixOut, m)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d items x %d categories to %s\n", m.Items(), m.Width(), path)
		fmt.Printf("Categories: %s\n", strings.Join(m.Categories, ", "))
		return nil
	},
}

func init() {
	matrixCmd.Flags().StringVarP(&matrixOut, "output", "o", "", "Output file (.tsv is appended if missing); stdout when empty")
}

// --- tsv command ---

var tsvCmd = &cobra.Command{
	Use:   "tsv FILE.tsv",
	Short: "Compute kappa from a stored TSV rating-count matrix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pipeline.CheckInputs(args); err != nil {
			return err
		}
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}

		var db *database.DB
		if opts.Store {
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()
		}

		r := pipeline.New(db).RunTSV(cmd.Context(), args[0], opts)
		return printResults([]*pipeline.Result{r})
	},
}

func init() {
	addEstimateFlags(tsvCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	return database.OpenInDir(cfg.GetDataDir())
}
