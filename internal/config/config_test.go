package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "rtl_power", cfg.Scan.ToolPath)
	assert.Equal(t, "40", cfg.Scan.Gain)
	assert.Equal(t, 200_000, cfg.Scan.BinWidthHz)
	assert.Equal(t, time.Second, cfg.Scan.Interval)
	assert.Nil(t, cfg.Scan.NoiseFloorDBm)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Period)
	assert.Equal(t, 3, cfg.Monitor.MaxConsecutiveFailures)
	assert.Equal(t, 0.01, cfg.Monitor.TrendPrecision)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.AWS.S3Bucket)
	assert.Equal(t, "gsmscope.log", cfg.Log.File)
	assert.Equal(t, "exports", cfg.Export.Prefix)
	assert.Zero(t, cfg.Export.Retention)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GSMSCOPE_GAIN", "auto")
	t.Setenv("GSMSCOPE_REFRESH_PERIOD", "10s")
	t.Setenv("GSMSCOPE_NOISE_FLOOR_DBM", "-60")
	t.Setenv("DATABASE_URL", "postgres://localhost/gsmscope")
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("GSMSCOPE_EXPORT_RETENTION", "24")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Scan.Gain)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Period)
	require.NotNil(t, cfg.Scan.NoiseFloorDBm)
	assert.Equal(t, -60.0, *cfg.Scan.NoiseFloorDBm)
	assert.Equal(t, "postgres://localhost/gsmscope", cfg.Database.URL)
	assert.Equal(t, "key", cfg.AWS.AccessKeyID)
	assert.Equal(t, 24, cfg.Export.Retention)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.dev"), []byte("GAIN=28\nS3_BUCKET=gsm-results\n"), 0644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "28", cfg.Scan.Gain)
	assert.Equal(t, "gsm-results", cfg.AWS.S3Bucket)
}

func TestLoad_ConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	file := filepath.Join(dir, "gsmscope.yaml")
	require.NoError(t, os.WriteFile(file, []byte("gain: \"33\"\nrefresh_period: 7s\nport: \"9090\"\n"), 0644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("gain", "", "")
	flags.String("port", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "9100"}))

	cfg, err := Load(file, flags)
	require.NoError(t, err)

	assert.Equal(t, "33", cfg.Scan.Gain, "unset flags do not override the file")
	assert.Equal(t, 7*time.Second, cfg.Monitor.Period)
	assert.Equal(t, "9100", cfg.Server.Port, "set flags win")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("does-not-exist.yaml", nil)
	assert.Error(t, err)
}

func TestLoad_InvalidNoiseFloor(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GSMSCOPE_NOISE_FLOOR_DBM", "loud")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "noise floor")
}

func validConfig() *Config {
	return &Config{
		Scan:    ScanConfig{ToolPath: "rtl_power", Gain: "40", BinWidthHz: 200_000, Interval: time.Second},
		Monitor: MonitorConfig{Period: 5 * time.Second, MaxConsecutiveFailures: 3, TrendPrecision: 0.01},
		Server:  ServerConfig{Port: "8080"},
		AWS:     AWSConfig{Region: "us-east-1"},
		Log:     LogConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "auto gain", modify: func(c *Config) { c.Scan.Gain = "AUTO" }},
		{name: "bad gain", modify: func(c *Config) { c.Scan.Gain = "high" }, errMsg: "gain"},
		{name: "zero period", modify: func(c *Config) { c.Monitor.Period = 0 }, errMsg: "refresh period"},
		{name: "no failures allowed", modify: func(c *Config) { c.Monitor.MaxConsecutiveFailures = 0 }, errMsg: "max consecutive failures"},
		{name: "timeout below interval", modify: func(c *Config) { c.Scan.Timeout = 500 * time.Millisecond }, errMsg: "scan timeout"},
		{name: "negative retention", modify: func(c *Config) { c.Export.Retention = -1 }, errMsg: "export retention"},
		{name: "bucket without region", modify: func(c *Config) { c.AWS.S3Bucket = "b"; c.AWS.Region = "" }, errMsg: "region"},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "chatty" }, errMsg: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	c := validConfig()
	c.Scan.Gain = "auto"

	sc := c.ScannerConfig()
	assert.Equal(t, "auto", sc.Gain)
	assert.Equal(t, 5*time.Second, sc.StartupAllowance, "allowances keep their defaults")

	plan, err := c.Bandplan()
	require.NoError(t, err)
	mc := c.MonitorConfig(plan)
	assert.Equal(t, models.CanonicalOperators, mc.Operators)
	assert.Len(t, mc.Bands, 2)
	assert.Equal(t, 3, mc.MaxConsecutiveFailures)
}
