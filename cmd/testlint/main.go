// Command testlint is a static test-quality compliance gate. It scans a
// repository, recognizes test units without executing them, and reports tests
// that validate shape instead of behavior, along with documentation and
// placement violations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"testlint/internal/config"
	"testlint/internal/engine"
	"testlint/internal/logging"
	"testlint/internal/report"
	"testlint/internal/rules"
	"testlint/internal/types"
)

const version = "0.3.0"

// Exit codes. Policy violations and engine failures must never be confused:
// CI treats 1 as "the tests need work" and 2 as "the tool needs work".
const (
	exitOK       = 0
	exitFindings = 1
	exitInternal = 2
)

var (
	// Global flags
	verbose bool

	// run flags
	configPath string
	format     string
	failOn     string
	ruleList   string
	jobs       int
	watchMode  bool

	logger *zap.Logger
)

// errPolicy signals findings at or above the fail-on threshold.
var errPolicy = errors.New("findings at or above fail-on threshold")

var rootCmd = &cobra.Command{
	Use:   "testlint",
	Short: "testlint - static test-quality compliance engine",
	Long: `testlint statically analyzes a repository's tests and reports, without
executing anything, whether each test is likely to validate real behavior,
whether its documentation follows the required templates, and whether its
placement follows the discovery conventions.

The golden rule it mechanizes: a test that would still pass against a dummy
object exposing the right attributes validates shape, not behavior.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Analyze a repository and report test-quality findings",
	Long: `Runs the full pipeline over the repository at path (default "."):
parse each source file, extract fact sheets from recognized test units,
evaluate the rule set, validate docstrings and placement, and render a
deterministic report.

Exit code 0 means no finding at or above --fail-on; 1 means policy findings;
2 is reserved for engine failures such as an unparsable config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalysis,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List registered rules with their default severities",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, r := range rules.DefaultRegistry.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", r.ID(), r.DefaultSeverity())
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the testlint version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "testlint %s\n", version)
	},
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if jobs > 0 {
		cfg.Engine.Jobs = jobs
	}
	if failOn != "" {
		cfg.Engine.FailOn = failOn
	}
	threshold, err := types.ParseSeverity(cfg.Engine.FailOn)
	if err != nil {
		return fmt.Errorf("--fail-on: %w", err)
	}
	if format != "json" && format != "text" {
		return fmt.Errorf("--format must be json or text, got %q", format)
	}

	if err := logging.Initialize(root, cfg.Logging.DebugMode, cfg.Logging.Categories); err != nil {
		logger.Warn("debug logging unavailable", zap.Error(err))
	}

	var only []string
	if ruleList != "" {
		for _, id := range strings.Split(ruleList, ",") {
			if id = strings.TrimSpace(id); id != "" {
				only = append(only, id)
			}
		}
	}

	eng := engine.New(cfg, engine.WithLogger(logger), engine.WithRules(only))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce := func() (*report.Report, error) {
		rep, err := eng.Run(ctx, root)
		if err != nil {
			return nil, err
		}
		if format == "json" {
			return rep, rep.RenderJSON(cmd.OutOrStdout())
		}
		return rep, rep.RenderText(cmd.OutOrStdout())
	}

	rep, err := runOnce()
	if err != nil {
		return err
	}

	if watchMode {
		debounce, derr := cfg.WatchDebounce()
		if derr != nil {
			return fmt.Errorf("config: %w", derr)
		}
		w, werr := engine.NewWatcher(root, debounce)
		if werr != nil {
			return fmt.Errorf("watch: %w", werr)
		}
		defer w.Close()
		logger.Info("watching for changes", zap.String("root", root))
		if werr := w.Run(ctx, func() {
			if _, rerr := runOnce(); rerr != nil {
				logger.Error("re-run failed", zap.Error(rerr))
			}
		}); werr != nil && !errors.Is(werr, context.Canceled) {
			return werr
		}
		return nil
	}

	if rep.HasAtOrAbove(threshold) {
		return errPolicy
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().StringVar(&configPath, "config", "", "path to a testlint config file (default: built-in defaults, TESTLINT_CONFIG)")
	runCmd.Flags().StringVar(&format, "format", "text", "report format: json or text")
	runCmd.Flags().StringVar(&failOn, "fail-on", "", "lowest severity that fails the run (info, warning, error)")
	runCmd.Flags().StringVar(&ruleList, "rules", "", "comma-separated rule IDs to evaluate (default: all enabled)")
	runCmd.Flags().IntVar(&jobs, "jobs", 0, "worker count (default: GOMAXPROCS)")
	runCmd.Flags().BoolVar(&watchMode, "watch", false, "re-run analysis when source files change")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		os.Exit(exitOK)
	case errors.Is(err, errPolicy):
		os.Exit(exitFindings)
	default:
		fmt.Fprintf(os.Stderr, "testlint: %v\n", err)
		os.Exit(exitInternal)
	}
}
