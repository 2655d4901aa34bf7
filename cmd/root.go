package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/coastertools/buildscale/internal/batch"
	"github.com/coastertools/buildscale/internal/config"
	"github.com/coastertools/buildscale/internal/rules"
)

var (
	cfgPath      string
	outDir       string
	templatesDir string
	scaleTokens  []string
	jobs         int
	include      []string
	exclude      []string
	reportPath   string
)

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfgPath, "config", "", "Path to a buildscale.yaml config file")
	f.StringVarP(&outDir, "out", "o", "", "Destination root for the scaled outputs")
	f.StringVarP(&templatesDir, "templates", "t", "", "Directory holding the rule template files")
	f.StringSliceVar(&scaleTokens, "scales", nil, "Restrict the run to these scale factors (e.g. 1,2,3)")
	f.IntVarP(&jobs, "jobs", "j", 0, "Number of groups processed in parallel (default NumCPU)")
	f.StringSliceVar(&include, "include", nil, "Only process files matching these glob patterns")
	f.StringSliceVar(&exclude, "exclude", nil, "Skip files matching these glob patterns")
	f.StringVar(&reportPath, "report", "", "Write a JSON run report to this path")
}

var rootCmd = &cobra.Command{
	Use:   "buildscale [paths...]",
	Short: "Create scaled copies of simulator material and scene-object files",
	Long: `Buildscale converts material definition files (and optionally the
scene-object files referencing them) into scaled duplicates, one output
tree per supported scale factor, ready to drop into the build-shapes
package directory.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		tbl, err := rules.Load(cfg.Templates)
		if err != nil {
			return err
		}
		if tbl, err = restrictScales(tbl, cfg.Scales); err != nil {
			return err
		}

		groups, unmatched, err := batch.Discover(args, tbl, batch.DiscoverOptions{
			Include: cfg.Include,
			Exclude: cfg.Exclude,
			Warnf:   warnf,
		})
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			report := &batch.Report{}
			report.AddSkipped(unmatched, "no matching document template")
			printSummary(report)
			return nil
		}

		if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
			return fmt.Errorf("create output root: %w", err)
		}
		runner := &batch.Runner{
			Table: tbl,
			Out:   osfs.New(cfg.Out),
			Jobs:  cfg.Jobs,
		}

		fmt.Printf("Scaling %d group(s) at %d factor(s) into %s...\n",
			len(groups), len(tbl.Scales), cfg.Out)
		report := runner.Run(cmd.Context(), groups)
		report.AddSkipped(unmatched, "no matching document template")
		printSummary(report)

		if cfg.Report != "" {
			if err := writeReport(cfg.Report, report); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", cfg.Report)
		}

		var failed int
		for _, g := range report.Groups {
			if g.Outcome == batch.OutcomeFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d group(s) failed", failed)
		}
		return nil
	},
}

// loadConfig layers defaults, the optional config file and any changed
// flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case cfgPath != "":
		var err error
		if cfg, err = config.LoadFromFile(cfgPath); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("buildscale.yaml"); err == nil {
			var err error
			if cfg, err = config.LoadFromFile("buildscale.yaml"); err != nil {
				return nil, err
			}
		}
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Out = outDir
	}
	if flags.Changed("templates") {
		cfg.Templates = templatesDir
	}
	if flags.Changed("scales") {
		cfg.Scales = scaleTokens
	}
	if flags.Changed("jobs") {
		cfg.Jobs = jobs
	}
	if flags.Changed("include") {
		cfg.Include = include
	}
	if flags.Changed("exclude") {
		cfg.Exclude = exclude
	}
	if flags.Changed("report") {
		cfg.Report = reportPath
	}
	return cfg, cfg.Validate()
}

// restrictScales narrows the supported set to the requested factors. A
// requested factor the templates do not support is skipped with a
// warning; an empty remainder is fatal.
func restrictScales(tbl *rules.Table, tokens []string) (*rules.Table, error) {
	if len(tokens) == 0 {
		return tbl, nil
	}
	narrowed := &rules.Table{Types: tbl.Types}
	for _, tok := range tokens {
		f, err := rules.ParseFactor(tok)
		if err != nil {
			return nil, err
		}
		if !tbl.Supports(f) {
			warnf("skipping scale factor %s: %v", f, &rules.UnsupportedScaleError{Factor: f})
			continue
		}
		narrowed.Scales = append(narrowed.Scales, f)
	}
	if len(narrowed.Scales) == 0 {
		return nil, fmt.Errorf("none of the requested scale factors are supported by the templates")
	}
	return narrowed, nil
}

func warnf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", a...)
}

func printSummary(report *batch.Report) {
	var ok, partial, failed int
	for _, g := range report.Groups {
		switch g.Outcome {
		case batch.OutcomeSucceeded:
			ok++
		case batch.OutcomePartial:
			partial++
		case batch.OutcomeFailed:
			failed++
		}
		for _, w := range g.Warnings {
			warnf("%s: %s", g.Dir, w)
		}
		for _, f := range g.Files {
			if f.Status == batch.StatusFailed {
				fmt.Fprintf(os.Stderr, "failed: %s\n", f.Error)
			}
		}
	}
	fmt.Printf("Done in %v: %d file(s) written, %d skipped, %d failed "+
		"(%d group(s) ok, %d partial, %d failed).\n",
		report.Elapsed.Round(time.Millisecond),
		report.Written, report.Skipped, report.Failed,
		ok, partial, failed)
	if report.Cancelled {
		fmt.Println("Run was cancelled; completed outputs were kept.")
	}
}

func writeReport(path string, report *batch.Report) error {
	data, err := oj.Marshal(report, 2)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
