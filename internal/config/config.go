package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// EnvPassword is consulted when no database password is supplied via flag or
// config file.
const EnvPassword = "PGCHURN_DB_PASSWORD"

// Config holds every knob for one churn run. Values come from an optional
// config file (JSON or YAML) with command-line flags layered on top.
type Config struct {
	// Database connection.
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Database     string        `mapstructure:"database" yaml:"database"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	SSLMode      string        `mapstructure:"sslmode" yaml:"sslmode"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`

	// Workload shape.
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	Duration       time.Duration `mapstructure:"duration" yaml:"duration"`
	ReportInterval time.Duration `mapstructure:"report_interval" yaml:"report_interval"`
	WindowSize     int           `mapstructure:"window_size" yaml:"window_size"`
	PayloadSize    int           `mapstructure:"payload_size" yaml:"payload_size"`

	// Test data.
	Table          string `mapstructure:"table" yaml:"table"`
	InitialRecords int    `mapstructure:"initial_records" yaml:"initial_records"`
	RecreateTable  bool   `mapstructure:"recreate_table" yaml:"recreate_table"`
	SetupOnly      bool   `mapstructure:"setup_only" yaml:"setup_only"`
	SkipSetup      bool   `mapstructure:"skip_setup" yaml:"skip_setup"`

	// Output.
	JSONOutput bool     `mapstructure:"json_output" yaml:"json_output"`
	Dashboard  bool     `mapstructure:"dashboard" yaml:"dashboard"`
	LogErrors  bool     `mapstructure:"log_errors" yaml:"log_errors"`
	HTMLOutput string   `mapstructure:"html_output" yaml:"html_output"`
	Thresholds []string `mapstructure:"thresholds" yaml:"thresholds,omitempty"`

	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`

	// Modes.
	Diagnose   bool   `mapstructure:"-" yaml:"-"`
	DumpConfig bool   `mapstructure:"-" yaml:"-"`
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// TracingConfig configures the OpenTelemetry exporter. Tracing is off unless
// an endpoint is supplied here or via OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// Enabled reports whether tracing should be initialized at all.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// tableNamePattern is the identifier whitelist applied before the table name
// is ever interpolated into SQL.
var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidTableName reports whether name is a plain SQL identifier.
func ValidTableName(name string) bool {
	return len(name) <= 63 && tableNamePattern.MatchString(name)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Host) == "" {
		issues = append(issues, "host is required (use --help for usage information)")
	}
	if c.Port < 1 || c.Port > 65535 {
		issues = append(issues, "port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Database) == "" {
		issues = append(issues, "database must not be empty")
	}
	if strings.TrimSpace(c.Username) == "" {
		issues = append(issues, "username must not be empty")
	}
	if !validSSLModes[c.SSLMode] {
		issues = append(issues, fmt.Sprintf("sslmode %q is not supported (disable, allow, prefer, require, verify-ca, verify-full)", c.SSLMode))
	}
	if c.PoolSize < 1 {
		issues = append(issues, "pool-size must be >= 1")
	}
	if c.QueryTimeout < 0 {
		issues = append(issues, "query-timeout must be >= 0")
	}

	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.ReportInterval <= 0 {
		issues = append(issues, "report-interval must be > 0")
	}
	if c.WindowSize < 1 {
		issues = append(issues, "window-size must be >= 1")
	}
	if c.PayloadSize < 1 {
		issues = append(issues, "payload-size must be >= 1")
	}

	if !ValidTableName(c.Table) {
		issues = append(issues, fmt.Sprintf("table %q is not a valid identifier", c.Table))
	}
	if c.InitialRecords < 0 {
		issues = append(issues, "initial-records must be >= 0")
	}
	if c.SetupOnly && c.SkipSetup {
		issues = append(issues, "setup-only and skip-setup are mutually exclusive")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		issues = append(issues, "tracing sample_rate must be between 0.0 and 1.0")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported (grpc or http)", c.Tracing.Protocol))
	}

	if c.RecreateTable && !c.SkipSetup {
		fmt.Fprintf(os.Stderr, "WARNING: --recreate-table will DROP table %q and regenerate its data.\n", c.Table)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Redacted returns a copy safe for display: the password is masked.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}
