package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pgchurn",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Connection flags
	flags.String("host", "", "Database host to churn")
	flags.Int("port", 5432, "Database port")
	flags.String("database", "postgres", "Database name")
	flags.String("username", "postgres", "Database username")
	flags.String("password", "", "Database password (falls back to "+EnvPassword+")")
	flags.String("sslmode", "require", "TLS mode: disable, allow, prefer, require, verify-ca or verify-full")
	flags.Int("pool-size", 50, "Maximum connections in the pool")
	flags.Duration("query-timeout", 30*time.Second, "Per-query timeout applied by the store")

	// Workload flags
	flags.IntP("workers", "w", 10, "Number of concurrent workers")
	flags.DurationP("duration", "d", time.Minute, "How long to run the test (0 means until interrupted)")
	flags.Duration("report-interval", 10*time.Second, "Interval between interim metric samples")
	flags.Int("window-size", 1000, "How many recent operation outcomes to retain")
	flags.Int("payload-size", 1024, "Bytes of fresh random payload written per operation")

	// Test data flags
	flags.String("table", "vehicles", "Table name to create and churn")
	flags.Int("initial-records", 10_000_000, "Rows to populate before the run")
	flags.Bool("recreate-table", false, "Drop and recreate the table before populating")
	flags.Bool("setup-only", false, "Create and populate the table, then exit")
	flags.Bool("skip-setup", false, "Assume the table exists and is populated")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed operation to stderr")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'db_op_duration:p95 < 500')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("otlp-endpoint", "", "OTLP exporter endpoint (enables tracing)")
	flags.String("otlp-protocol", "", "OTLP exporter protocol: 'grpc' or 'http'")
	flags.Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("trace-sample-rate", 1.0, "Fraction of attempts to trace (0.0-1.0)")

	// Mode flags
	flags.Bool("diagnose", false, "Run connectivity diagnostics and exit")
	flags.Bool("dump-config", false, "Print the effective configuration and exit")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("host") {
		val, err := fs.GetString("host")
		if err != nil {
			return err
		}
		cfg.Host = strings.TrimSpace(val)
	}
	if fs.Changed("port") {
		val, err := fs.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Port = val
	}
	if fs.Changed("database") {
		val, err := fs.GetString("database")
		if err != nil {
			return err
		}
		cfg.Database = strings.TrimSpace(val)
	}
	if fs.Changed("username") {
		val, err := fs.GetString("username")
		if err != nil {
			return err
		}
		cfg.Username = strings.TrimSpace(val)
	}
	if fs.Changed("password") {
		val, err := fs.GetString("password")
		if err != nil {
			return err
		}
		cfg.Password = val
	}
	if fs.Changed("sslmode") {
		val, err := fs.GetString("sslmode")
		if err != nil {
			return err
		}
		cfg.SSLMode = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("pool-size") {
		val, err := fs.GetInt("pool-size")
		if err != nil {
			return err
		}
		cfg.PoolSize = val
	}
	if fs.Changed("query-timeout") {
		val, err := fs.GetDuration("query-timeout")
		if err != nil {
			return err
		}
		cfg.QueryTimeout = val
	}
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("report-interval") {
		val, err := fs.GetDuration("report-interval")
		if err != nil {
			return err
		}
		cfg.ReportInterval = val
	}
	if fs.Changed("window-size") {
		val, err := fs.GetInt("window-size")
		if err != nil {
			return err
		}
		cfg.WindowSize = val
	}
	if fs.Changed("payload-size") {
		val, err := fs.GetInt("payload-size")
		if err != nil {
			return err
		}
		cfg.PayloadSize = val
	}
	if fs.Changed("table") {
		val, err := fs.GetString("table")
		if err != nil {
			return err
		}
		cfg.Table = strings.TrimSpace(val)
	}
	if fs.Changed("initial-records") {
		val, err := fs.GetInt("initial-records")
		if err != nil {
			return err
		}
		cfg.InitialRecords = val
	}
	if fs.Changed("recreate-table") {
		val, err := fs.GetBool("recreate-table")
		if err != nil {
			return err
		}
		cfg.RecreateTable = val
	}
	if fs.Changed("setup-only") {
		val, err := fs.GetBool("setup-only")
		if err != nil {
			return err
		}
		cfg.SetupOnly = val
	}
	if fs.Changed("skip-setup") {
		val, err := fs.GetBool("skip-setup")
		if err != nil {
			return err
		}
		cfg.SkipSetup = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("otlp-endpoint") {
		val, err := fs.GetString("otlp-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otlp-protocol") {
		val, err := fs.GetString("otlp-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("otlp-insecure") {
		val, err := fs.GetBool("otlp-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("diagnose") {
		val, err := fs.GetBool("diagnose")
		if err != nil {
			return err
		}
		cfg.Diagnose = val
	}
	if fs.Changed("dump-config") {
		val, err := fs.GetBool("dump-config")
		if err != nil {
			return err
		}
		cfg.DumpConfig = val
	}

	return nil
}
