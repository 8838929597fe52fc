package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RMahshie/gsmscope/internal/display"
	"github.com/RMahshie/gsmscope/internal/export"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runMonitor shows the terminal dashboard until the user quits
func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveHTTP {
		srv := a.startServer()
		defer shutdown(srv)
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- a.monitor.Run(loopCtx)
	}()

	// The dashboard stays up after the loop gives up so the failed state is visible
	termErr := display.RunTerminal(ctx, a.monitor)
	cancelLoop()
	runErr := <-loopErr

	if termErr != nil {
		return termErr
	}
	return runErr
}

// runServe runs the refresh loop headless behind the HTTP API
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := a.startServer()
	defer shutdown(srv)

	err = a.monitor.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Refresh loop stopped")
	}
	return err
}

// runScan performs one cycle and prints it. A failed scan exits non-zero.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, scanErr := a.monitor.RunOnce(ctx)
	if snap == nil {
		return scanErr
	}

	out := cmd.OutOrStdout()
	if printJSON && scanErr == nil {
		data, err := export.Build(snap, cfg.Scan.Gain).Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else if err := display.NewTextSink(out).Render(snap); err != nil {
		return err
	}
	return scanErr
}

// runBandplan prints the effective operator table in the band plan file format
func runBandplan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	plan, err := cfg.Bandplan()
	if err != nil {
		return err
	}
	data, err := plan.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
