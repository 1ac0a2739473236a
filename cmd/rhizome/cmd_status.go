package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rhizome-dev/rhizome/internal/config"
	"github.com/rhizome-dev/rhizome/internal/identity"
)

func runStatus(args []string) {
	if err := doStatus(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doStatus(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFlag := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile, err := config.FindConfigFile(*configFlag)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	config.ResolveConfigPaths(cfg, filepath.Dir(cfgFile))

	validationErr := config.Validate(cfg)

	nid, err := identity.NodeIdFromKeyFile(cfg.Identity.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load identity from %s: %w", cfg.Identity.KeyFile, err)
	}

	fmt.Fprintf(stdout, "Config file: %s\n", cfgFile)
	fmt.Fprintf(stdout, "Node id:     %s\n", nid)
	if cfg.Identity.Alias != "" {
		fmt.Fprintf(stdout, "Alias:       %s\n", cfg.Identity.Alias)
	}
	fmt.Fprintf(stdout, "Listen:      %v\n", cfg.Network.ListenAddresses)
	fmt.Fprintf(stdout, "Connect:     %v\n", cfg.Network.Connect)
	fmt.Fprintf(stdout, "Seeding:     %s\n", cfg.Seeding.Policy)
	if validationErr != nil {
		fmt.Fprintf(stdout, "Validation:  FAIL: %v\n", validationErr)
	} else {
		fmt.Fprintln(stdout, "Validation:  OK")
	}

	if config.HasArchive(cfgFile) {
		fmt.Fprintf(stdout, "Archive:     %s\n", config.ArchivePath(cfgFile))
	} else {
		fmt.Fprintln(stdout, "Archive:     none")
	}

	deadline, err := config.CheckPending(cfgFile)
	if err == nil && !deadline.IsZero() {
		fmt.Fprintf(stdout, "Pending:     commit-confirmed awaiting confirm by %s\n", deadline)
	}
	return nil
}
