package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/gsmscope/internal/bandplan"
	"github.com/RMahshie/gsmscope/internal/monitor"
	"github.com/RMahshie/gsmscope/internal/scanner"
	"github.com/RMahshie/gsmscope/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Env      string
	Scan     ScanConfig
	Monitor  MonitorConfig
	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Export   ExportConfig
	Log      LogConfig
}

// ScanConfig holds rtl_power settings
type ScanConfig struct {
	ToolPath      string
	Gain          string
	BinWidthHz    int
	Interval      time.Duration
	Timeout       time.Duration
	NoiseFloorDBm *float64
	TempDir       string
}

// MonitorConfig holds refresh loop settings
type MonitorConfig struct {
	Period                 time.Duration
	MaxConsecutiveFailures int
	TrendPrecision         float64
	BandplanFile           string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration. An empty URL disables the history store.
type DatabaseConfig struct {
	URL string
}

// AWSConfig holds AWS/S3 configuration. An empty bucket disables uploads.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// ExportConfig holds results file settings
type ExportConfig struct {
	Path      string
	Prefix    string
	Retention int // uploads kept in S3, 0 keeps all
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
	File  string
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"rtl-power":    "RTL_POWER_PATH",
	"gain":         "GAIN",
	"interval":     "INTEGRATION_INTERVAL",
	"noise-floor":  "NOISE_FLOOR_DBM",
	"period":       "REFRESH_PERIOD",
	"max-failures": "MAX_CONSECUTIVE_FAILURES",
	"bandplan":     "BANDPLAN_FILE",
	"port":         "PORT",
	"export":       "EXPORT_PATH",
	"log-level":    "LOG_LEVEL",
	"log-file":     "LOG_FILE",
}

// Load loads configuration from defaults, .env files, an optional YAML file,
// environment variables and flags, in increasing order of precedence.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("RTL_POWER_PATH", "rtl_power")
	v.SetDefault("GAIN", "40")
	v.SetDefault("BIN_WIDTH_HZ", 200_000)
	v.SetDefault("INTEGRATION_INTERVAL", "1s")
	v.SetDefault("SCAN_TIMEOUT", "0s")
	v.SetDefault("NOISE_FLOOR_DBM", "")
	v.SetDefault("SCAN_TEMP_DIR", "")
	v.SetDefault("REFRESH_PERIOD", "5s")
	v.SetDefault("MAX_CONSECUTIVE_FAILURES", 3)
	v.SetDefault("TREND_PRECISION", 0.01)
	v.SetDefault("BANDPLAN_FILE", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("EXPORT_PATH", "")
	v.SetDefault("EXPORT_PREFIX", "exports")
	v.SetDefault("EXPORT_RETENTION", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "gsmscope.log")

	// Environment variables override file values
	v.SetEnvPrefix("GSMSCOPE")
	v.AutomaticEnv()

	// Credentials also come from the standard variable names
	v.BindEnv("DATABASE_URL", "GSMSCOPE_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("AWS_REGION", "GSMSCOPE_AWS_REGION", "AWS_REGION")
	v.BindEnv("AWS_ACCESS_KEY_ID", "GSMSCOPE_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	v.BindEnv("AWS_SECRET_ACCESS_KEY", "GSMSCOPE_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")

	// Read from .env files based on environment
	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	v.SetConfigName(".env." + env)
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // file may not exist

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	config.Env = env
	config.Scan.ToolPath = v.GetString("RTL_POWER_PATH")
	config.Scan.Gain = v.GetString("GAIN")
	config.Scan.BinWidthHz = v.GetInt("BIN_WIDTH_HZ")
	config.Scan.Interval = v.GetDuration("INTEGRATION_INTERVAL")
	config.Scan.Timeout = v.GetDuration("SCAN_TIMEOUT")
	config.Scan.TempDir = v.GetString("SCAN_TEMP_DIR")
	if s := strings.TrimSpace(v.GetString("NOISE_FLOOR_DBM")); s != "" {
		floor, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid noise floor %q: %w", s, err)
		}
		config.Scan.NoiseFloorDBm = &floor
	}
	config.Monitor.Period = v.GetDuration("REFRESH_PERIOD")
	config.Monitor.MaxConsecutiveFailures = v.GetInt("MAX_CONSECUTIVE_FAILURES")
	config.Monitor.TrendPrecision = v.GetFloat64("TREND_PRECISION")
	config.Monitor.BandplanFile = v.GetString("BANDPLAN_FILE")
	config.Server.Port = v.GetString("PORT")
	config.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	config.Database.URL = v.GetString("DATABASE_URL")
	config.AWS.Region = v.GetString("AWS_REGION")
	config.AWS.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = v.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = v.GetString("S3_ENDPOINT")
	config.Export.Path = v.GetString("EXPORT_PATH")
	config.Export.Prefix = v.GetString("EXPORT_PREFIX")
	config.Export.Retention = v.GetInt("EXPORT_RETENTION")
	config.Log.Level = v.GetString("LOG_LEVEL")
	config.Log.File = v.GetString("LOG_FILE")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("env", config.Env).
		Str("gain", config.Scan.Gain).
		Dur("period", config.Monitor.Period).
		Bool("history", config.Database.URL != "").
		Bool("upload", config.AWS.S3Bucket != "").
		Msg("Configuration loaded")

	return &config, nil
}

// Validate checks the settings the refresh loop cannot run without
func (c *Config) Validate() error {
	if c.Scan.ToolPath == "" {
		return fmt.Errorf("rtl_power path is required")
	}
	if g := c.Scan.Gain; g != "" && !strings.EqualFold(g, "auto") {
		if _, err := strconv.ParseFloat(g, 64); err != nil {
			return fmt.Errorf("gain must be a number or \"auto\", got %q", g)
		}
	}
	if c.Scan.BinWidthHz <= 0 {
		return fmt.Errorf("bin width must be positive, got %d", c.Scan.BinWidthHz)
	}
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("integration interval must be positive, got %s", c.Scan.Interval)
	}
	if c.Scan.Timeout < 0 || (c.Scan.Timeout > 0 && c.Scan.Timeout <= c.Scan.Interval) {
		return fmt.Errorf("scan timeout %s must exceed the integration interval %s", c.Scan.Timeout, c.Scan.Interval)
	}
	if c.Monitor.Period <= 0 {
		return fmt.Errorf("refresh period must be positive, got %s", c.Monitor.Period)
	}
	if c.Monitor.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max consecutive failures must be at least 1, got %d", c.Monitor.MaxConsecutiveFailures)
	}
	if c.Monitor.TrendPrecision < 0 {
		return fmt.Errorf("trend precision must not be negative, got %g", c.Monitor.TrendPrecision)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Export.Retention < 0 {
		return fmt.Errorf("export retention must not be negative, got %d", c.Export.Retention)
	}
	if c.AWS.S3Bucket != "" && c.AWS.Region == "" {
		return fmt.Errorf("AWS region is required when an S3 bucket is set")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// ScannerConfig returns the rtl_power adapter settings
func (c *Config) ScannerConfig() scanner.Config {
	sc := scanner.DefaultConfig()
	sc.ToolPath = c.Scan.ToolPath
	sc.Gain = c.Scan.Gain
	sc.BinWidthHz = c.Scan.BinWidthHz
	sc.Interval = c.Scan.Interval
	sc.Timeout = c.Scan.Timeout
	sc.NoiseFloorDBm = c.Scan.NoiseFloorDBm
	sc.TempDir = c.Scan.TempDir
	return sc
}

// Bandplan returns the operator table, read from BandplanFile when set
func (c *Config) Bandplan() (*bandplan.Plan, error) {
	if c.Monitor.BandplanFile == "" {
		return bandplan.Default(), nil
	}
	return bandplan.Load(c.Monitor.BandplanFile)
}

// MonitorConfig returns the refresh loop settings for plan
func (c *Config) MonitorConfig(plan *bandplan.Plan) monitor.Config {
	mc := monitor.DefaultConfig()
	mc.Period = c.Monitor.Period
	mc.MaxConsecutiveFailures = c.Monitor.MaxConsecutiveFailures
	mc.TrendPrecision = c.Monitor.TrendPrecision
	mc.Bands = plan.Bands()
	mc.Operators = plan.Operators()
	return mc
}

// S3Config returns the upload storage settings
func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Bucket:    c.AWS.S3Bucket,
		Endpoint:  c.AWS.S3Endpoint,
		Region:    c.AWS.Region,
		AccessKey: c.AWS.AccessKeyID,
		SecretKey: c.AWS.SecretAccessKey,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
