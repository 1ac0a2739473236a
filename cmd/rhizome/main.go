package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" -o rhizome ./cmd/rhizome
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// osExit is a package-level indirection over os.Exit so tests can
// intercept process termination.
var osExit = os.Exit

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		printUsage()
		osExit(1)
		return
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version", "--version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		osExit(1)
	}
}

func printVersion() {
	fmt.Printf("rhizome %s (%s) built %s\n", version, commit, buildDate)
	fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Println("Usage: rhizome <command> [options]")
	fmt.Println()
	fmt.Println("  init                                      Generate an identity key and a starter config")
	fmt.Println("  serve [--config path]                     Start the gossip service (C3)")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  config validate [--config path]           Validate config")
	fmt.Println("  config show     [--config path]           Show resolved config")
	fmt.Println("  config rollback [--config path]           Restore last-known-good config")
	fmt.Println("  config apply <new> [--confirm-timeout]    Apply with auto-revert")
	fmt.Println("  config confirm  [--config path]           Confirm applied config")
	fmt.Println()
	fmt.Println("  status [--config path]                    Show node identity and config summary")
	fmt.Println("  version                                   Show version information")
	fmt.Println()
	fmt.Println("All commands support --config <path> to specify a config file.")
	fmt.Println("Without --config, rhizome searches: ./rhizome.yaml, ~/.config/rhizome/config.yaml")
	fmt.Println()
	fmt.Println("Get started:  rhizome init")
}
