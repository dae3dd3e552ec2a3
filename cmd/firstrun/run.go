package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/firstrun/internal/adapter"
	"github.com/mattjoyce/firstrun/internal/api"
	"github.com/mattjoyce/firstrun/internal/apps"
	"github.com/mattjoyce/firstrun/internal/dispatch"
	"github.com/mattjoyce/firstrun/internal/events"
	"github.com/mattjoyce/firstrun/internal/journal"
	"github.com/mattjoyce/firstrun/internal/lock"
	"github.com/mattjoyce/firstrun/internal/log"
	"github.com/mattjoyce/firstrun/internal/report"
	"github.com/mattjoyce/firstrun/internal/storage"
	"github.com/mattjoyce/firstrun/internal/tui"
)

func runBatch(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	appsFlag := fs.String("apps", "", "Comma-separated app identifiers, in dispatch order")
	serialFlag := fs.String("serial", "", "adb serial of the device under test")
	showTUI := fs.Bool("tui", false, "Show live progress on stderr")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	status := report.NewStatusWriter(os.Stdout, nil)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		reportConfigurationError(status, err)
		return 1
	}
	if *appsFlag != "" {
		cfg.Apps = *appsFlag
	}
	if *serialFlag != "" {
		cfg.Device.Serial = *serialFlag
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")

	// Nothing touches the device until the request parses.
	requested, err := dispatch.ParseRequest(cfg.Apps)
	if err != nil {
		logger.Error("invalid batch request", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportConfigurationError(status, err)
		return 1
	}

	specs, err := apps.Specs(cfg.Adapters)
	if err != nil {
		logger.Error("invalid adapter overrides", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportConfigurationError(status, err)
		return 1
	}
	registry, err := apps.RegistryFor(specs)
	if err != nil {
		logger.Error("failed to build adapter registry", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportConfigurationError(status, err)
		return 1
	}

	if err := storage.RequireLocalFilesystem(cfg.State.Path); err != nil {
		logger.Error("state directory is not usable", "path", cfg.State.Path, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportEnvironmentError(status, err)
		return 1
	}
	devLock, err := lock.AcquireDevice(filepath.Dir(cfg.State.Path), cfg.Device.Serial)
	if err != nil {
		logger.Error("failed to acquire device lock (another batch may be running)", "serial", cfg.Device.Serial, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportEnvironmentError(status, err)
		return 1
	}
	defer devLock.Release()
	logger.Debug("acquired device lock", "path", devLock.Path())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportEnvironmentError(status, err)
		return 1
	}
	defer db.Close()

	j := journal.New(db)
	if n, err := j.RecoverInterrupted(ctx, cfg.Device.Serial); err != nil {
		logger.Warn("failed to recover interrupted batches", "error", err)
	} else if n > 0 {
		logger.Warn("marked interrupted batches", "count", n)
	}

	configHash, err := cfg.Fingerprint()
	if err != nil {
		logger.Warn("failed to fingerprint config", "path", cfg.SourcePath, "error", err)
	}
	batchID, err := j.Begin(ctx, journal.BeginRequest{
		Requested:  requested,
		Serial:     cfg.Device.Serial,
		ConfigHash: configHash,
	})
	if err != nil {
		logger.Error("failed to record batch", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		reportEnvironmentError(status, err)
		return 1
	}
	batchLogger := log.WithBatch(batchID)

	hub := events.NewHub(256)
	sink := report.Multi(
		status,
		report.NewHubSink(hub, batchID),
		j.Sink(batchID, batchLogger),
	)

	if cfg.API.Enabled {
		apiCtx, cancelAPI := context.WithCancel(context.Background())
		defer cancelAPI()
		srv := api.New(api.Config{Listen: cfg.API.Listen, APIKey: cfg.API.APIKey}, specs, j, hub, log.WithComponent("api"))
		go func() {
			if err := srv.Start(apiCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("api server failed", "error", err)
			}
		}()
	}

	var tuiDone chan struct{}
	if *showTUI {
		ch, unsubscribe := hub.Subscribe()
		defer unsubscribe()
		program := tea.NewProgram(
			tui.New(ch, requested, tui.WithInterrupt(stop)),
			tea.WithOutput(os.Stderr),
			tea.WithInput(os.Stdin),
		)
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				logger.Error("tui failed", "error", err)
			}
		}()
	}

	hub.Publish(events.TypeBatchStarted, events.BatchStarted{
		BatchID: batchID,
		Apps:    requested,
		Serial:  cfg.Device.Serial,
	})

	host := adapter.Host{
		Driver: newDriver(cfg),
		Logger: batchLogger.With("component", "adapter"),
		Settle: cfg.Device.Settle,
	}

	engine := dispatch.New(registry, sink).WithLogger(batchLogger.With("component", "dispatch"))
	out, err := engine.RunBatch(ctx, requested, host)
	if tuiDone != nil {
		<-tuiDone
	}
	if err != nil {
		// RunBatch emits nothing for a rejected request.
		logger.Error("batch rejected", "error", err)
		reportConfigurationError(status, err)
		return 1
	}
	if !out.Succeeded() {
		fmt.Fprintf(os.Stderr, "Batch %s failed: %v\n", batchID, out.Err)
		return 1
	}
	return 0
}

// reportConfigurationError ends the status stream for a batch that never
// started, so the host runner is not left waiting for a result.
func reportConfigurationError(status *report.StatusWriter, err error) {
	status.Complete(report.Completion{
		Status: report.StatusFailed,
		Kind:   dispatch.KindConfiguration.String(),
		Err:    err,
	})
}

// reportEnvironmentError ends the status stream for a batch that could not
// start on this host.
func reportEnvironmentError(status *report.StatusWriter, err error) {
	status.Complete(report.Completion{
		Status: report.StatusFailed,
		Kind:   report.KindEnvironment,
		Err:    err,
	})
}
