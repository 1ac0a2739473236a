package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfigYAML = `
identity:
  key_file: "identity.key"
network:
  listen_addresses:
    - "/ip4/0.0.0.0/udp/0/quic-v1"
  connect:
    - "12D3KooWRzaGMTqQbRHNMZkAYj8ALUXoK99qSjhiFLanDoVWK9An@203.0.113.50:7777"
gossip:
  target_outbound_peers: 12
  relay: true
seeding:
  seeding_policy: Followed
  preferred_seeds:
    - "12D3KooWPrmh163sTHW3mYQm7YsLsSR2wr71fPp4g6yjuGv3sGQt"
`

func writeTestConfig(t testing.TB, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Identity.KeyFile != "identity.key" {
		t.Errorf("KeyFile = %q, want %q", cfg.Identity.KeyFile, "identity.key")
	}
	if len(cfg.Network.ListenAddresses) != 1 {
		t.Fatalf("ListenAddresses = %v, want 1 entry", cfg.Network.ListenAddresses)
	}
	if cfg.Gossip.TargetOutboundPeers != 12 {
		t.Errorf("TargetOutboundPeers = %d, want 12 (overridden)", cfg.Gossip.TargetOutboundPeers)
	}
	// IdleInterval wasn't set in the YAML, so it should carry the default.
	if cfg.Gossip.IdleInterval != DefaultConfig().Gossip.IdleInterval {
		t.Errorf("IdleInterval = %v, want default %v", cfg.Gossip.IdleInterval, DefaultConfig().Gossip.IdleInterval)
	}
	if cfg.Seeding.Policy != SeedingFollowed {
		t.Errorf("Policy = %q, want %q", cfg.Seeding.Policy, SeedingFollowed)
	}
	if len(cfg.Seeding.PreferredSeeds) != 1 {
		t.Errorf("PreferredSeeds = %v, want 1 entry", cfg.Seeding.PreferredSeeds)
	}
	// Fetch wasn't present in the YAML at all; every field should be the default.
	if cfg.Fetch.SpecialRefsLimit != "5MB" {
		t.Errorf("SpecialRefsLimit = %q, want default %q", cfg.Fetch.SpecialRefsLimit, "5MB")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML+"\nbogus_top_level_key: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on a config with an unknown top-level key, want error")
	}
}

func TestLoadRejectsUnknownNestedKey(t *testing.T) {
	dir := t.TempDir()
	content := `
identity:
  key_file: "identity.key"
  bogus_nested_key: true
network:
  listen_addresses: ["/ip4/0.0.0.0/udp/0/quic-v1"]
`
	path := writeTestConfig(t, dir, content)

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on a config with an unknown nested key, want error")
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	content := "version: 99\nidentity:\n  key_file: k\nnetwork:\n  listen_addresses: [\"a\"]\n"
	path := writeTestConfig(t, dir, content)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load succeeded with a config version newer than supported, want error")
	}
}

func TestLoadRejectsBadSeedingPolicy(t *testing.T) {
	dir := t.TempDir()
	content := strings.Replace(testConfigYAML, "seeding_policy: Followed", "seeding_policy: Nonsense", 1)
	path := writeTestConfig(t, dir, content)

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with an invalid seeding policy, want error")
	}
}

func TestLoadRejectsBadDataSize(t *testing.T) {
	dir := t.TempDir()
	content := testConfigYAML + "\nfetch:\n  special_refs_limit: \"not-a-size\"\n"
	path := writeTestConfig(t, dir, content)

	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with an unparseable data size, want error")
	}
}

func TestValidateRequiresKeyFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.ListenAddresses = []string{"/ip4/0.0.0.0/udp/0/quic-v1"}
	if err := Validate(&cfg); err == nil {
		t.Fatal("Validate succeeded with no identity.key_file, want error")
	}
}

func TestValidateRequiresListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.KeyFile = "k"
	if err := Validate(&cfg); err == nil {
		t.Fatal("Validate succeeded with no listen addresses, want error")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.KeyFile = "k"
	cfg.Network.ListenAddresses = []string{"/ip4/0.0.0.0/udp/0/quic-v1"}
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFindConfigFileExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, testConfigYAML)

	found, err := FindConfigFile(path)
	if err != nil {
		t.Fatalf("FindConfigFile: %v", err)
	}
	if found != path {
		t.Errorf("found = %q, want %q", found, path)
	}
}

func TestFindConfigFileMissingExplicitPath(t *testing.T) {
	if _, err := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("FindConfigFile succeeded for a nonexistent explicit path, want error")
	}
}

func TestResolveConfigPathsRewritesRelative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.KeyFile = "identity.key"
	ResolveConfigPaths(&cfg, "/etc/rhizome")
	if cfg.Identity.KeyFile != filepath.Join("/etc/rhizome", "identity.key") {
		t.Errorf("KeyFile = %q, want joined path", cfg.Identity.KeyFile)
	}
}

func TestResolveConfigPathsLeavesAbsolute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.KeyFile = "/abs/identity.key"
	ResolveConfigPaths(&cfg, "/etc/rhizome")
	if cfg.Identity.KeyFile != "/abs/identity.key" {
		t.Errorf("KeyFile = %q, want unchanged", cfg.Identity.KeyFile)
	}
}

func TestParseDataSizeSuffixes(t *testing.T) {
	cases := map[string]int64{
		"128":  128,
		"1B":   1,
		"2KB":  2 * 1024,
		"5MB":  5 * 1024 * 1024,
		"5GB":  5 * 1024 * 1024 * 1024,
		" 3mb": 3 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := ParseDataSize(in)
		if err != nil {
			t.Errorf("ParseDataSize(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDataSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseDataSizeRejectsGarbage(t *testing.T) {
	if _, err := ParseDataSize("not-a-size"); err == nil {
		t.Fatal("ParseDataSize accepted garbage input, want error")
	}
}
