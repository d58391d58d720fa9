package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pgchurn/pgchurn/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{"--host", "db.example.com"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "db.example.com" {
		t.Errorf("Host = %q, want db.example.com", cfg.Host)
	}
	if cfg.Port != 5432 {
		t.Errorf("Port = %d, want 5432", cfg.Port)
	}
	if cfg.Database != "postgres" {
		t.Errorf("Database = %q, want postgres", cfg.Database)
	}
	if cfg.Username != "postgres" {
		t.Errorf("Username = %q, want postgres", cfg.Username)
	}
	if cfg.SSLMode != "require" {
		t.Errorf("SSLMode = %q, want require", cfg.SSLMode)
	}
	if cfg.PoolSize != 50 {
		t.Errorf("PoolSize = %d, want 50", cfg.PoolSize)
	}
	if cfg.QueryTimeout != 30*time.Second {
		t.Errorf("QueryTimeout = %s, want 30s", cfg.QueryTimeout)
	}
	if cfg.Workers != 10 {
		t.Errorf("Workers = %d, want 10", cfg.Workers)
	}
	if cfg.Duration != time.Minute {
		t.Errorf("Duration = %s, want 1m", cfg.Duration)
	}
	if cfg.ReportInterval != 10*time.Second {
		t.Errorf("ReportInterval = %s, want 10s", cfg.ReportInterval)
	}
	if cfg.WindowSize != 1000 {
		t.Errorf("WindowSize = %d, want 1000", cfg.WindowSize)
	}
	if cfg.PayloadSize != 1024 {
		t.Errorf("PayloadSize = %d, want 1024", cfg.PayloadSize)
	}
	if cfg.Table != "vehicles" {
		t.Errorf("Table = %q, want vehicles", cfg.Table)
	}
	if cfg.InitialRecords != 10_000_000 {
		t.Errorf("InitialRecords = %d, want 10000000", cfg.InitialRecords)
	}
	if cfg.JSONOutput {
		t.Errorf("JSONOutput = true, want false")
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
}

func TestLoadEmptyArgsShowsHelp(t *testing.T) {
	loader := config.NewLoader()

	_, err := loader.Load([]string{})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"host": "aurora.cluster.local",
		"port": 5433,
		"database": "fleet",
		"username": "churn",
		"password": "hunter2",
		"sslmode": "verify-full",
		"pool_size": 80,
		"workers": 100,
		"duration": "5m",
		"report_interval": "2s",
		"table": "vehicles_bench",
		"initial_records": 50000,
		"json_output": true
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "--workers", "16", "--threshold", "db_ops:rate>100"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "aurora.cluster.local" {
		t.Errorf("Host = %q, want aurora.cluster.local", cfg.Host)
	}
	if cfg.Port != 5433 {
		t.Errorf("Port = %d, want 5433", cfg.Port)
	}
	if cfg.Database != "fleet" {
		t.Errorf("Database = %q, want fleet", cfg.Database)
	}
	if cfg.Username != "churn" {
		t.Errorf("Username = %q, want churn", cfg.Username)
	}
	if cfg.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", cfg.Password)
	}
	if cfg.SSLMode != "verify-full" {
		t.Errorf("SSLMode = %q, want verify-full", cfg.SSLMode)
	}
	if cfg.PoolSize != 80 {
		t.Errorf("PoolSize = %d, want 80", cfg.PoolSize)
	}
	if cfg.Workers != 16 {
		t.Errorf("Workers = %d, want 16 (flag wins)", cfg.Workers)
	}
	if cfg.Duration != 5*time.Minute {
		t.Errorf("Duration = %s, want 5m", cfg.Duration)
	}
	if cfg.ReportInterval != 2*time.Second {
		t.Errorf("ReportInterval = %s, want 2s", cfg.ReportInterval)
	}
	if cfg.Table != "vehicles_bench" {
		t.Errorf("Table = %q, want vehicles_bench", cfg.Table)
	}
	if cfg.InitialRecords != 50000 {
		t.Errorf("InitialRecords = %d, want 50000", cfg.InitialRecords)
	}
	if !cfg.JSONOutput {
		t.Errorf("JSONOutput = false, want true")
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0] != "db_ops:rate>100" {
		t.Errorf("Thresholds = %v, want [db_ops:rate>100]", cfg.Thresholds)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"host: replica.example.com",
		"database: telemetry",
		"workers: 25",
		"duration: 90s",
		"payload_size: 4096",
		"thresholds:",
		"  - db_op_duration:p95<150",
		"  - db_op_failed:rate<0.05",
		"tracing:",
		"  endpoint: otel:4317",
		"  insecure: true",
		"  sample_rate: 0.1",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Host != "replica.example.com" {
		t.Errorf("Host = %q, want replica.example.com", cfg.Host)
	}
	if cfg.Database != "telemetry" {
		t.Errorf("Database = %q, want telemetry", cfg.Database)
	}
	if cfg.Workers != 25 {
		t.Errorf("Workers = %d, want 25", cfg.Workers)
	}
	if cfg.Duration != 90*time.Second {
		t.Errorf("Duration = %s, want 90s", cfg.Duration)
	}
	if cfg.PayloadSize != 4096 {
		t.Errorf("PayloadSize = %d, want 4096", cfg.PayloadSize)
	}
	if len(cfg.Thresholds) != 2 {
		t.Fatalf("len(Thresholds) = %d, want 2", len(cfg.Thresholds))
	}
	if cfg.Thresholds[0] != "db_op_duration:p95<150" {
		t.Errorf("Thresholds[0] = %q, want db_op_duration:p95<150", cfg.Thresholds[0])
	}
	if cfg.Tracing.Endpoint != "otel:4317" {
		t.Errorf("Tracing.Endpoint = %q, want otel:4317", cfg.Tracing.Endpoint)
	}
	if !cfg.Tracing.Insecure {
		t.Errorf("Tracing.Insecure = false, want true")
	}
	if cfg.Tracing.SampleRate != 0.1 {
		t.Errorf("Tracing.SampleRate = %v, want 0.1", cfg.Tracing.SampleRate)
	}
}

func TestPasswordFallsBackToEnv(t *testing.T) {
	t.Setenv(config.EnvPassword, "env-secret")

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--host", "db"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Password != "env-secret" {
		t.Errorf("Password = %q, want env-secret", cfg.Password)
	}
}

func TestPasswordFlagBeatsEnv(t *testing.T) {
	t.Setenv(config.EnvPassword, "env-secret")

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--host", "db", "--password", "flag-secret"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Password != "flag-secret" {
		t.Errorf("Password = %q, want flag-secret", cfg.Password)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Host:           "db.example.com",
			Port:           5432,
			Database:       "postgres",
			Username:       "postgres",
			SSLMode:        "require",
			PoolSize:       10,
			Workers:        4,
			ReportInterval: time.Second,
			WindowSize:     100,
			PayloadSize:    64,
			Table:          "vehicles",
		}
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "missing host",
			mutate: func(c *config.Config) { c.Host = "" },
			want:   []string{"host"},
		},
		{
			name:   "bad port",
			mutate: func(c *config.Config) { c.Port = 70000 },
			want:   []string{"port"},
		},
		{
			name:   "bad sslmode",
			mutate: func(c *config.Config) { c.SSLMode = "sometimes" },
			want:   []string{"sslmode"},
		},
		{
			name: "non positive sizes",
			mutate: func(c *config.Config) {
				c.PoolSize = 0
				c.Workers = 0
				c.WindowSize = 0
				c.PayloadSize = 0
			},
			want: []string{"pool-size", "workers", "window-size", "payload-size"},
		},
		{
			name:   "sql injection table",
			mutate: func(c *config.Config) { c.Table = "vehicles; DROP TABLE users" },
			want:   []string{"table"},
		},
		{
			name: "setup mode conflict",
			mutate: func(c *config.Config) {
				c.SetupOnly = true
				c.SkipSetup = true
			},
			want: []string{"setup-only"},
		},
		{
			name: "output mode conflict",
			mutate: func(c *config.Config) {
				c.Dashboard = true
				c.JSONOutput = true
			},
			want: []string{"dashboard"},
		},
		{
			name:   "sample rate out of range",
			mutate: func(c *config.Config) { c.Tracing.SampleRate = 1.5 },
			want:   []string{"sample_rate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})
}

func TestValidTableName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"vehicles", true},
		{"vehicles_test", true},
		{"_private", true},
		{"Vehicles2", true},
		{"", false},
		{"2fast", false},
		{"vehicles;drop", false},
		{"veh icles", false},
		{strings.Repeat("v", 64), false},
		{strings.Repeat("v", 63), true},
	}

	for _, tt := range tests {
		if got := config.ValidTableName(tt.name); got != tt.want {
			t.Errorf("ValidTableName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRedactedMasksPassword(t *testing.T) {
	cfg := config.Config{Host: "db", Password: "hunter2"}

	red := cfg.Redacted()
	if red.Password != "********" {
		t.Errorf("Redacted().Password = %q, want masked", red.Password)
	}
	if cfg.Password != "hunter2" {
		t.Errorf("original Password mutated to %q", cfg.Password)
	}

	empty := config.Config{Host: "db"}.Redacted()
	if empty.Password != "" {
		t.Errorf("Redacted().Password = %q, want empty kept empty", empty.Password)
	}
}

func TestTracingEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if (config.TracingConfig{}).Enabled() {
		t.Errorf("Enabled() = true for empty config, want false")
	}
	if !(config.TracingConfig{Endpoint: "collector:4317"}).Enabled() {
		t.Errorf("Enabled() = false with endpoint, want true")
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	if !(config.TracingConfig{}).Enabled() {
		t.Errorf("Enabled() = false with env endpoint, want true")
	}
}
