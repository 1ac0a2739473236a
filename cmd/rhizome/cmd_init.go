package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rhizome-dev/rhizome/internal/config"
	"github.com/rhizome-dev/rhizome/internal/identity"
)

func runInit(args []string) {
	if err := doInit(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

func doInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", ".", "directory to initialize")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgPath := filepath.Join(*dir, "rhizome.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	if err := os.MkdirAll(*dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", *dir, err)
	}

	keyPath := filepath.Join(*dir, "node.key")
	nid, err := identity.NodeIdFromKeyFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Identity.KeyFile = "node.key"
	cfg.Network.ListenAddresses = []string{"/ip4/0.0.0.0/udp/0/quic-v1"}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cfgPath, out, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}

	fmt.Fprintf(stdout, "Generated identity %s\n", nid)
	fmt.Fprintf(stdout, "Wrote key file:    %s\n", keyPath)
	fmt.Fprintf(stdout, "Wrote config file: %s\n", cfgPath)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Edit network.listen_addresses and seeding.seeding_policy, then:")
	fmt.Fprintln(stdout, "  rhizome config validate")
	fmt.Fprintln(stdout, "  rhizome serve")
	return nil
}
