package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"zentaocli/internal/browser"
	"zentaocli/internal/config"
	"zentaocli/internal/infrastructure"
	"zentaocli/internal/operations"
	"zentaocli/internal/settings"
	"zentaocli/internal/tui"
	"zentaocli/internal/validation"
	"zentaocli/pkg/contracts"
	"zentaocli/pkg/contracts/events"
)

// PasswordEnv is read when --password is not given.
const PasswordEnv = config.EnvPrefix + "_PASSWORD"

type rootFlags struct {
	configFile  string
	tui         bool
	metricsFile string
}

// app holds what every command shares. It is filled in by setup before a
// command runs.
type app struct {
	flags rootFlags

	cfg       *config.Config
	logger    *slog.Logger
	otel      *infrastructure.OTelProviders
	tracer    *operations.RunTracer
	runner    *operations.Runner
	opener    browser.Opener
	validator *validation.RequestValidator
	files     *validation.FileValidator
	store     *settings.Store
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zentaocli",
		Short: "Export ZenTao data and build acceptance reports",
		Long: `zentaocli drives a browser through a ZenTao instance to export product
requirements, unclosed bugs and test cases, then merges the exported
workbooks into an acceptance report.

Configuration is read from zentaocli.yaml (or --config) and ZTX_* environment
variables. Passwords are never stored; pass --password or set ZTX_PASSWORD.`,
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "config file (default: zentaocli.yaml in the working or executable directory)")
	pf.BoolVar(&a.flags.tui, "tui", false, "show progress in a terminal UI")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write run metrics in Prometheus textfile format on exit")

	cmd.AddCommand(
		newExportCmd(a),
		newLoginCmd(a),
		newBugsCmd(a),
		newConsolidateCmd(a),
		newFillCmd(a),
		newLedgerCmd(a),
		newSettingsCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// setup loads configuration and builds the shared services.
func (a *app) setup() error {
	cfg, err := config.Load(a.flags.configFile)
	if err != nil {
		return err
	}
	if a.flags.metricsFile != "" {
		cfg.Telemetry.MetricsFile = a.flags.metricsFile
		cfg.Telemetry.EnableMetrics = true
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	a.otel, err = infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tracer, err = operations.NewRunTracer(a.otel)
	if err != nil {
		return err
	}

	a.runner = operations.NewRunner(logger, a.tracer, 0)
	if a.opener == nil {
		a.opener = browser.NewChromeOpener(logger)
	}
	a.validator = validation.NewRequestValidator()
	a.files = validation.NewFileValidator(logger)
	a.store = settings.NewStore(cfg.Settings.Dir,
		settings.WithLogger(logger),
		settings.WithSensitiveKeys(cfg.Settings.SensitiveKeys...))

	logger.Debug("zentaocli started", slog.String("version", contracts.GetFullVersionString()))
	return nil
}

// close waits for running workers, dumps metrics and releases the log file.
func (a *app) close() {
	if a.runner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.runner.Wait(ctx)
		cancel()
	}

	if a.otel != nil {
		if path := a.cfg.Telemetry.MetricsFile; path != "" {
			if err := a.otel.WriteMetricsFile(path); err != nil {
				a.logger.Error("Failed to write metrics file",
					slog.String("file", path),
					slog.String("error", err.Error()))
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Error("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	_ = infrastructure.CloseLogFile()
}

func (a *app) pipeline() *operations.Pipeline {
	return operations.NewPipeline(a.cfg, a.opener, operations.WithTracer(a.tracer))
}

// runJob starts work on the runner and follows it until its Completion.
// A failed Completion is returned as an error.
func (a *app) runJob(cmd *cobra.Command, kind operations.Kind, title string, work operations.Work) (any, error) {
	ctx := cmd.Context()
	job, err := a.runner.Start(ctx, kind, work)
	if err != nil {
		return nil, err
	}

	var done *events.Completion
	if a.flags.tui {
		done, err = tui.Run(ctx, title, job)
		if err != nil {
			job.Cancel()
			<-job.Done()
			return nil, err
		}
	} else {
		done = follow(cmd.OutOrStdout(), job.Events())
	}
	<-job.Done()

	if done == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("job ended without a result")
	}
	if !done.Success {
		if done.Err != nil {
			return nil, fmt.Errorf("%s: %w", done.Message, done.Err)
		}
		return nil, errors.New(done.Message)
	}
	return done.Result, nil
}

// follow prints log entries and the completion line as they arrive.
// Progress is shown as a log line whenever it moves.
func follow(w io.Writer, ch <-chan events.Event) *events.Completion {
	var (
		done *events.Completion
		last = -1
	)
	for ev := range ch {
		switch ev := ev.(type) {
		case events.LogEntry:
			fmt.Fprintln(w, tui.FormatLog(ev))
		case events.ProgressUpdate:
			if ev.Percent != last {
				last = ev.Percent
				fmt.Fprintln(w, tui.MutedStyle.Render(fmt.Sprintf("%3d%%", ev.Percent)))
			}
		case events.Completion:
			fmt.Fprintln(w, tui.FormatCompletion(ev))
			done = &ev
		}
	}
	return done
}

// password returns the --password value, falling back to ZTX_PASSWORD.
func password(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(PasswordEnv)
}

// str reads a string setting, ignoring values of other types.
func str(values map[string]any, key string) string {
	s, _ := values[key].(string)
	return s
}

// firstOf returns the first non-empty value.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
