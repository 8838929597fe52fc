// gsmscope - GSM downlink signal strength monitor
// Runs rtl_power over the GSM-900 and GSM-1800 downlink bands, averages the power
// per mobile operator and shows a refreshing dashboard with trends.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RMahshie/gsmscope/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	serveHTTP  bool
	printJSON  bool
)

// rootCmd represents the base command; without a subcommand it runs the dashboard
var rootCmd = &cobra.Command{
	Use:   "gsmscope",
	Short: "GSM downlink signal strength monitor",
	Long: `gsmscope scans the GSM-900 and GSM-1800 downlink bands with rtl_power,
averages the received power per mobile operator and shows it as a refreshing
bar display with trend arrows.

Commands:
  monitor    Terminal dashboard (default)
  scan       Run one cycle and print the readings
  serve      Run the refresh loop headless behind an HTTP status API
  bandplan   Print the operator frequency table in effect`,
	SilenceUsage: true,
	RunE:         runMonitor,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show the terminal dashboard",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan cycle and print the readings",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh loop with the HTTP status API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var bandplanCmd = &cobra.Command{
	Use:   "bandplan",
	Short: "Print the operator frequency table as YAML",
	Args:  cobra.NoArgs,
	RunE:  runBandplan,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	pf.String("rtl-power", "", "rtl_power executable (default \"rtl_power\")")
	pf.StringP("gain", "g", "", "tuner gain in dB or \"auto\" (default \"40\")")
	pf.Duration("interval", 0, "rtl_power integration interval (default 1s)")
	pf.String("noise-floor", "", "drop bins at or below this power in dBm")
	pf.DurationP("period", "p", 0, "refresh period (default 5s)")
	pf.Int("max-failures", 0, "stop after this many failed cycles in a row (default 3)")
	pf.StringP("bandplan", "b", "", "YAML band plan replacing the built-in operator table")
	pf.String("port", "", "HTTP port (default \"8080\")")
	pf.StringP("export", "o", "", "write the results JSON to this file after every successful cycle")
	pf.String("log-level", "", "log level (default \"info\")")
	pf.String("log-file", "", "log file used while the dashboard owns the terminal (default \"gsmscope.log\")")

	rootCmd.Flags().BoolVar(&serveHTTP, "http", false, "also serve the HTTP status API")
	monitorCmd.Flags().BoolVar(&serveHTTP, "http", false, "also serve the HTTP status API")
	scanCmd.Flags().BoolVar(&printJSON, "json", false, "print the results document instead of the table")

	rootCmd.AddCommand(monitorCmd, scanCmd, serveCmd, bandplanCmd)
}

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging applies the configured level. While the dashboard owns the terminal
// log lines go to the log file instead of stderr.
func setupLogging(cfg *config.Config, toFile bool) (func(), error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	if !toFile || cfg.Log.File == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true})
	return func() { f.Close() }, nil
}
