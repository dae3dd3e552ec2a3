package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/firstrun/internal/api"
	"github.com/mattjoyce/firstrun/internal/apps"
	"github.com/mattjoyce/firstrun/internal/journal"
	"github.com/mattjoyce/firstrun/internal/log"
	"github.com/mattjoyce/firstrun/internal/storage"
)

func runAppsNoun(args []string) int {
	if len(args) == 0 || isHelpToken(args[0]) {
		printAppsNounHelp(os.Stdout)
		return 0
	}
	switch args[0] {
	case "list":
		return runAppsList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown apps action: %s\n", args[0])
		printAppsNounHelp(os.Stderr)
		return 1
	}
}

func runAppsList(args []string) int {
	fs := flag.NewFlagSet("apps list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	specs, err := apps.Specs(cfg.Adapters)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		return printJSON(specs)
	}
	for _, s := range specs {
		marker := " "
		if _, ok := cfg.Adapters[s.ID]; ok {
			marker = "*"
		}
		fmt.Printf("%s %-14s %s (%d steps)\n", marker, s.ID, s.Package, len(s.Steps))
	}
	return 0
}

func runBatchNoun(args []string) int {
	if len(args) == 0 || isHelpToken(args[0]) {
		printBatchNounHelp(os.Stdout)
		return 0
	}
	switch args[0] {
	case "list":
		return runBatchList(args[1:])
	case "show":
		return runBatchShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown batch action: %s\n", args[0])
		printBatchNounHelp(os.Stderr)
		return 1
	}
}

func openJournal(ctx context.Context, configPath string) (*journal.Journal, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log.Setup(cfg.Service.LogLevel)
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return journal.New(db), func() { _ = db.Close() }, nil
}

func runBatchList(args []string) int {
	fs := flag.NewFlagSet("batch list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	limit := fs.Int("limit", 20, "Maximum number of batches to show")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --limit must be positive")
		return 1
	}

	ctx := context.Background()
	j, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	batches, err := j.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		return printJSON(batches)
	}
	if len(batches) == 0 {
		fmt.Println("No batches recorded.")
		return 0
	}
	for _, b := range batches {
		fmt.Printf("%s  %-11s  %s  %s\n", b.ID, b.Status, b.StartedAt.Local().Format(time.DateTime), strings.Join(b.Requested, ","))
	}
	return 0
}

func runBatchShow(args []string) int {
	fs := flag.NewFlagSet("batch show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON")

	// Accept the id before or after flags.
	var batchID string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		batchID, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if batchID == "" && fs.NArg() > 0 {
		batchID = fs.Arg(0)
	}
	if batchID == "" {
		fmt.Fprintln(os.Stderr, "Usage: firstrun batch show <id> [--config PATH] [--json]")
		return 1
	}

	ctx := context.Background()
	j, closeFn, err := openJournal(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	b, err := j.Get(ctx, batchID)
	if errors.Is(err, journal.ErrBatchNotFound) {
		fmt.Fprintf(os.Stderr, "Batch not found: %s\n", batchID)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		return printJSON(b)
	}
	fmt.Printf("batch:      %s\n", b.ID)
	fmt.Printf("status:     %s\n", b.Status)
	fmt.Printf("requested:  %s\n", strings.Join(b.Requested, ","))
	if b.Serial != "" {
		fmt.Printf("device:     %s\n", b.Serial)
	}
	fmt.Printf("started:    %s\n", b.StartedAt.Local().Format(time.DateTime))
	if b.CompletedAt != nil {
		fmt.Printf("duration:   %s\n", b.Duration)
	}
	for _, d := range b.Dismissed {
		fmt.Printf("  [%d] %s dismissed at %s\n", d.Position, d.App, d.DismissedAt.Local().Format(time.TimeOnly))
	}
	if b.ErrorKind != nil {
		fmt.Printf("error_kind: %s\n", *b.ErrorKind)
	}
	if b.FailedApp != nil {
		fmt.Printf("failed_app: %s\n", *b.FailedApp)
	}
	if b.FailedPhase != nil {
		fmt.Printf("phase:      %s\n", *b.FailedPhase)
	}
	if b.LastError != nil {
		fmt.Printf("error:      %s\n", *b.LastError)
	}
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	listen := fs.String("listen", "", "Listen address (overrides api.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}
	if cfg.API.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: api.api_key is required to serve the API")
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()

	specs, err := apps.Specs(cfg.Adapters)
	if err != nil {
		logger.Error("invalid adapter overrides", "error", err)
		return 1
	}

	srv := api.New(api.Config{Listen: cfg.API.Listen, APIKey: cfg.API.APIKey}, specs, journal.New(db), nil, log.WithComponent("api"))
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("api server failed", "error", err)
		return 1
	}
	logger.Info("firstrun api stopped")
	return 0
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}
