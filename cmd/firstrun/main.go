package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mattjoyce/firstrun/internal/config"
	"github.com/mattjoyce/firstrun/internal/device"
	"github.com/mattjoyce/firstrun/internal/log"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// newDriver builds the device driver for a run. Tests replace it.
var newDriver = func(cfg *config.Config) device.Driver {
	return device.NewADB(cfg.Device.ADBPath, cfg.Device.Serial,
		device.WithCommandTimeout(cfg.Device.CommandTimeout),
		device.WithLogger(log.WithComponent("adb")),
	)
}

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "run":
		if hasHelpFlag(args) {
			printRunHelp()
			return 0
		}
		return runBatch(args)
	case "apps":
		return runAppsNoun(args)
	case "batch":
		return runBatchNoun(args)
	case "check":
		if hasHelpFlag(args) {
			printCheckHelp()
			return 0
		}
		return runCheck(args)
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: firstrun version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("firstrun %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, resolvedBuildTime); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// loadConfig loads the config at path, or the discovered one, or defaults.
// Environment overrides apply in every case.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			return nil, err
		}
		if discovered == "" {
			cfg := config.Defaults()
			config.ApplyEnv(cfg)
			return cfg, nil
		}
		path = discovered
	}
	return config.Load(path)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`firstrun - clear first-run dialogs from a battery of apps before a test suite

Usage:
  firstrun <command> [flags]

Commands:
  run               Dismiss first-run dialogs for the requested apps
  apps list         Show the adapter catalog
  batch list        Show recent batches from the journal
  batch show <id>   Show one batch and the apps it dismissed
  check             Validate the configuration before a run
  serve             Serve the read-only HTTP API over the journal

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

The run command writes one JSON status line per dismissed app to stdout,
then one result line. Logs go to stderr. Exit code is 0 only when every
requested app was dismissed.
`)
}

func printRunHelp() {
	fmt.Print(`Usage: firstrun run [--config PATH] [--apps A,B,C] [--serial SERIAL] [--tui]

  --config   Config file or directory (default: discovered, then built-in defaults)
  --apps     Comma-separated app identifiers, in dispatch order (env FIRSTRUN_APPS)
  --serial   adb serial of the device under test (env FIRSTRUN_SERIAL)
  --tui      Show live progress on stderr
`)
}

func printCheckHelp() {
	fmt.Println("Usage: firstrun check [--config PATH] [--apps A,B,C] [--json]")
}

func printServeHelp() {
	fmt.Println("Usage: firstrun serve [--config PATH] [--listen ADDR]")
}

func printAppsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: firstrun apps list [--config PATH] [--json]")
}

func printBatchNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: firstrun batch <list|show> [flags]")
	fmt.Fprintln(w, "  list [--config PATH] [--limit N] [--json]")
	fmt.Fprintln(w, "  show <id> [--config PATH] [--json]")
}
