package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"strobe/internal/config"
	"strobe/internal/logging"
	"strobe/internal/registry"
	"strobe/internal/runner"
	"strobe/internal/store"
	"strobe/internal/tracer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "strobed:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("strobed", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to daemon.toml (defaults to the user data dir)")
	dataDirFlag := fs.String("data-dir", "", "override the data directory holding events.db and settings.json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	daemonCfgPath := *configPath
	if daemonCfgPath == "" {
		p, err := config.DaemonConfigPath()
		if err != nil {
			return err
		}
		daemonCfgPath = p
	}
	daemonCfg, err := config.LoadDaemonConfig(daemonCfgPath)
	if err != nil {
		return fmt.Errorf("loading daemon config: %w", err)
	}
	log := logging.New(os.Stderr, logging.ParseLevel(daemonCfg.LogLevel))

	dataDir := *dataDirFlag
	if dataDir == "" {
		dataDir = daemonCfg.DataDir
	}
	if dataDir == "" {
		d, err := config.DataDir()
		if err != nil {
			return err
		}
		dataDir = d
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	globalSettingsPath := config.GlobalSettingsPath(dataDir)
	settings := config.Resolve(log, globalSettingsPath, "")

	dbPath := config.EventStorePath(dataDir)
	events, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening event store at %s: %w", dbPath, err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn("event store close failed", logging.F("err", err.Error()))
		}
	}()

	tracerClient := tracer.NewFake()
	sessions := registry.New(tracerClient, log)
	// testRunner is the composition root's handle for dispatching
	// DebugTestRequest calls once a transport is wired in front of it;
	// the JSON-RPC transport itself is a documented contract, not code
	// this binary implements yet.
	testRunner := runner.New(events, sessions, tracerClient, settings, tracer.CPUTime, log)
	_ = testRunner

	log.Info("strobed started",
		logging.F("bindAddress", daemonCfg.BindAddress),
		logging.F("dataDir", dataDir),
		logging.F("eventsMaxPerSession", settings.EventsMaxPerSession))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("strobed shutting down")
	return nil
}
