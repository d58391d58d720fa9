package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := defaultConfig()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Table = strings.TrimSpace(cfg.Table)
	cfg.SSLMode = strings.ToLower(strings.TrimSpace(cfg.SSLMode))

	// Fallback to environment variable if password is empty
	if cfg.Password == "" {
		if envPassword := os.Getenv(EnvPassword); envPassword != "" {
			cfg.Password = envPassword
		}
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Port:           5432,
		Database:       "postgres",
		Username:       "postgres",
		SSLMode:        "require",
		PoolSize:       50,
		QueryTimeout:   30 * time.Second,
		Workers:        10,
		Duration:       time.Minute,
		ReportInterval: 10 * time.Second,
		WindowSize:     1000,
		PayloadSize:    1024,
		Table:          "vehicles",
		InitialRecords: 10_000_000,
		Tracing:        TracingConfig{SampleRate: 1.0},
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "host"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("host: %w", err)
		}
		cfg.Host = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "port"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = val
	}

	if raw, ok := lookupSetting(settings, "database"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if val != "" {
			cfg.Database = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "username"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("username: %w", err)
		}
		if val != "" {
			cfg.Username = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "password"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}
		cfg.Password = val
	}

	if raw, ok := lookupSetting(settings, "sslmode", "ssl_mode", "ssl-mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("sslmode: %w", err)
		}
		if val != "" {
			cfg.SSLMode = strings.ToLower(strings.TrimSpace(val))
		}
	}

	if raw, ok := lookupSetting(settings, "poolsize", "pool_size", "pool-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("poolSize: %w", err)
		}
		cfg.PoolSize = val
	}

	if raw, ok := lookupSetting(settings, "querytimeout", "query_timeout", "query-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("queryTimeout: %w", err)
		}
		cfg.QueryTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "reportinterval", "report_interval", "report-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("reportInterval: %w", err)
		}
		cfg.ReportInterval = dur
	}

	if raw, ok := lookupSetting(settings, "windowsize", "window_size", "window-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("windowSize: %w", err)
		}
		cfg.WindowSize = val
	}

	if raw, ok := lookupSetting(settings, "payloadsize", "payload_size", "payload-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("payloadSize: %w", err)
		}
		cfg.PayloadSize = val
	}

	if raw, ok := lookupSetting(settings, "table", "table_name", "table-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("table: %w", err)
		}
		if val != "" {
			cfg.Table = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "initialrecords", "initial_records", "initial-records"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("initialRecords: %w", err)
		}
		cfg.InitialRecords = val
	}

	if raw, ok := lookupSetting(settings, "recreatetable", "recreate_table", "recreate-table"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("recreateTable: %w", err)
		}
		cfg.RecreateTable = val
	}

	if raw, ok := lookupSetting(settings, "setuponly", "setup_only", "setup-only"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("setupOnly: %w", err)
		}
		cfg.SetupOnly = val
	}

	if raw, ok := lookupSetting(settings, "skipsetup", "skip_setup", "skip-setup"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("skipSetup: %w", err)
		}
		cfg.SkipSetup = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		if tracing.SampleRate == 0 && !tracing.sampleRateSet {
			tracing.SampleRate = cfg.Tracing.SampleRate
		}
		cfg.Tracing = tracing.TracingConfig
	}

	return nil
}

// parsedTracing carries whether sample_rate appeared explicitly, so an absent
// key keeps the default instead of silencing every span.
type parsedTracing struct {
	TracingConfig
	sampleRateSet bool
}

func parseTracing(value interface{}) (parsedTracing, error) {
	if value == nil {
		return parsedTracing{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return parsedTracing{}, err
	}

	var tracing parsedTracing
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return parsedTracing{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return parsedTracing{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return parsedTracing{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return parsedTracing{}, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
		tracing.sampleRateSet = true
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return parsedTracing{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	return tracing, nil
}
