package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/pgchurn/pgchurn/internal/config"
	"github.com/pgchurn/pgchurn/internal/dashboard"
	"github.com/pgchurn/pgchurn/internal/diagnose"
	"github.com/pgchurn/pgchurn/internal/metrics"
	"github.com/pgchurn/pgchurn/internal/output"
	"github.com/pgchurn/pgchurn/internal/runner"
	"github.com/pgchurn/pgchurn/internal/store"
	"github.com/pgchurn/pgchurn/internal/threshold"
	"github.com/pgchurn/pgchurn/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DumpConfig {
		return dumpConfig(os.Stdout, cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Diagnose {
		report := diagnose.New(cfg).Run(ctx)
		report.Render(os.Stdout, cfg)
		if report.Failed() {
			return errors.New("connection diagnostics failed")
		}
		return nil
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	st, err := store.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if !cfg.SkipSetup {
		opts := store.SetupOptions{
			InitialRecords: cfg.InitialRecords,
			PayloadSize:    cfg.PayloadSize,
			Recreate:       cfg.RecreateTable,
			Status:         setupStatus(statusWriter(cfg)),
		}
		if err := st.Setup(ctx, opts); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}
	if cfg.SetupOnly {
		return nil
	}

	collector := metrics.NewCollector(cfg.WindowSize)
	runID := ulid.Make().String()

	recorder := output.NewRecorder(selectSink(cfg))

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboardRunConfig(cfg), func() dashboard.PoolStat {
			return st.PoolStat()
		}, cancel)
		if err != nil {
			return fmt.Errorf("starting dashboard: %w", err)
		}
		dash.Start()
	}

	opts := runner.Options{
		Workers:        cfg.Workers,
		Duration:       cfg.Duration,
		ReportInterval: cfg.ReportInterval,
		PayloadSize:    cfg.PayloadSize,
		Store:          st,
		Collector:      collector,
		Sink:           recorder,
		Tracer:         provider.Tracer(),
		RunID:          runID,
	}
	if cfg.LogErrors && !cfg.Dashboard {
		opts.FailureLogger = &stderrFailureLogger{}
	}

	result, runErr := runner.New(opts).Run(ctx)
	if dash != nil {
		dash.Stop()
	}
	if runErr != nil {
		return runErr
	}

	final, ok := recorder.FinalStats()
	if !ok {
		final = collector.Stats(result.Duration)
		final.WorkerOps = result.WorkerOps
		final.RunID = runID
	}

	// The dashboard owned the terminal during the run, so nothing has been
	// printed yet. Emit the regular report now that the screen is restored.
	if dash != nil {
		output.PrintReport(os.Stdout, final)
	}

	var thresholdResults []threshold.Result
	if len(cfg.Thresholds) > 0 {
		parsed, perr := threshold.ParseMultiple(cfg.Thresholds)
		if perr != nil {
			return perr
		}
		thresholdResults = threshold.NewEvaluator(parsed).Evaluate(final)
		printThresholds(statusWriter(cfg), thresholdResults)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg, st.Table(), final, recorder.History(), thresholdResults); err != nil {
			return fmt.Errorf("writing HTML report: %w", err)
		}
		fmt.Fprintf(statusWriter(cfg), "HTML report written to %s\n", cfg.HTMLOutput)
	}

	if failed := countFailed(thresholdResults); failed > 0 {
		return fmt.Errorf("%d of %d thresholds failed", failed, len(thresholdResults))
	}
	return nil
}

// dumpConfig prints the effective configuration as YAML with the password
// masked, then exits without touching the database.
func dumpConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// statusWriter returns the stream for human-readable chatter. JSON mode keeps
// stdout machine-parseable, so everything else moves to stderr.
func statusWriter(cfg *config.Config) io.Writer {
	if cfg.JSONOutput {
		return os.Stderr
	}
	return os.Stdout
}

func setupStatus(w io.Writer) store.StatusFunc {
	return func(format string, args ...interface{}) {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// selectSink picks where live progress and the final report go. In dashboard
// mode the terminal belongs to termui, so the recorder runs with no
// downstream sink and the report is printed after the screen is restored.
func selectSink(cfg *config.Config) output.Sink {
	switch {
	case cfg.Dashboard:
		return nil
	case cfg.JSONOutput:
		return output.NewJSONSink(os.Stdout)
	default:
		return output.NewTextSink(os.Stdout)
	}
}

func targetLabel(cfg *config.Config) string {
	return fmt.Sprintf("%s/%s", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), cfg.Database)
}

func dashboardRunConfig(cfg *config.Config) dashboard.RunConfig {
	return dashboard.RunConfig{
		Target:       targetLabel(cfg),
		Table:        cfg.Table,
		Workers:      cfg.Workers,
		PoolSize:     cfg.PoolSize,
		Duration:     cfg.Duration,
		PayloadSize:  cfg.PayloadSize,
		QueryTimeout: cfg.QueryTimeout,
		ConfigFile:   cfg.ConfigFile,
	}
}

func printThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, res := range results {
		fmt.Fprintf(w, "  %s\n", res.Message)
	}
}

func countFailed(results []threshold.Result) int {
	failed := 0
	for _, res := range results {
		if !res.Pass {
			failed++
		}
	}
	return failed
}

func writeHTMLReport(cfg *config.Config, table string, final metrics.Stats, history []metrics.Stats, thresholdResults []threshold.Result) error {
	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return err
	}
	defer f.Close()

	meta := output.ReportMetadata{
		Target:      targetLabel(cfg),
		Table:       table,
		Workers:     cfg.Workers,
		PoolSize:    cfg.PoolSize,
		PayloadSize: cfg.PayloadSize,
	}
	return output.GenerateHTMLReport(f, final, history, thresholdResults, meta)
}

// stderrFailureLogger reports individual failed operations to stderr as they
// happen. Serialized so concurrent workers do not interleave lines.
type stderrFailureLogger struct {
	mu sync.Mutex
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[pgchurn] operation failed: %v\n", err)
}
