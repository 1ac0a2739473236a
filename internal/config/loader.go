package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// checkConfigFilePermissions returns an error if a config file has overly
// permissive permissions (any group/world bit set), which makes Load fail. The config holds the path to the
// node's private key file and its persistent-connect list.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and parses a node config from path. Unknown top-level or
// nested keys are rejected so a typo in the YAML fails loudly instead of
// silently falling back to a default.
func Load(path string) (*Config, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := DefaultConfig()
	if len(doc.Content) > 0 {
		if err := strictDecoder(doc.Content[0]).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}
	if err := validateSeedingPolicy(cfg.Seeding.Policy); err != nil {
		return nil, err
	}
	if _, err := ParseDataSize(cfg.Fetch.SpecialRefsLimit); err != nil {
		return nil, fmt.Errorf("fetch.special_refs_limit: %w", err)
	}
	if _, err := ParseDataSize(cfg.Fetch.DataRefsLimit); err != nil {
		return nil, fmt.Errorf("fetch.data_refs_limit: %w", err)
	}

	return &cfg, nil
}

// strictDecoder re-marshals a yaml.Node back to bytes and returns a
// yaml.Decoder with KnownFields(true) set, so Decode rejects any key that
// doesn't map to a Config field. Round-tripping through bytes is simpler
// than walking the node tree by hand and costs nothing at config-load
// frequency.
func strictDecoder(n *yaml.Node) *yaml.Decoder {
	data, _ := yaml.Marshal(n)
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	return dec
}

func validateSeedingPolicy(p SeedingPolicy) error {
	switch p {
	case "", SeedingBlock, SeedingAllow, SeedingFollowed:
		return nil
	default:
		return fmt.Errorf("%w: seeding.seeding_policy %q (want Block, Allow, or Followed)", ErrInvalidConfig, p)
	}
}

// Validate checks a Config for completeness beyond what YAML decoding
// already enforces: required paths, at least one listen address, and a
// well-formed seeding policy.
func Validate(cfg *Config) error {
	if cfg.Identity.KeyFile == "" {
		return fmt.Errorf("%w: identity.key_file is required", ErrInvalidConfig)
	}
	if len(cfg.Network.ListenAddresses) == 0 {
		return fmt.Errorf("%w: network.listen_addresses must contain at least one address", ErrInvalidConfig)
	}
	if err := validateSeedingPolicy(cfg.Seeding.Policy); err != nil {
		return err
	}
	return nil
}

// FindConfigFile searches for a node config file in standard locations.
// Search order: explicitPath (if given), ./rhizome.yaml,
// ~/.config/rhizome/config.yaml, /etc/rhizome/config.yaml.
func FindConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	searchPaths := []string{"rhizome.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "rhizome", "config.yaml"))
	}
	searchPaths = append(searchPaths, filepath.Join("/etc", "rhizome", "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w; searched:\n  %s\n\nRun 'rhizome init' to create one, or use --config <path>", ErrConfigNotFound, strings.Join(searchPaths, "\n  "))
}

// ResolveConfigPaths rewrites any relative file path in cfg to be relative
// to configDir, so a config under ~/.config/rhizome/ can reference a key
// file with a relative path.
func ResolveConfigPaths(cfg *Config, configDir string) {
	if cfg.Identity.KeyFile != "" && !filepath.IsAbs(cfg.Identity.KeyFile) {
		cfg.Identity.KeyFile = filepath.Join(configDir, cfg.Identity.KeyFile)
	}
}

// DefaultConfigDir returns the default rhizome config directory
// (~/.config/rhizome).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "rhizome"), nil
}

// ParseDataSize parses a human-readable data size string (e.g. "128KB",
// "64MB", "5GB") and returns the value in bytes. Supported suffixes: B,
// KB, MB, GB (case-insensitive).
func ParseDataSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty data size")
	}

	s = strings.ToUpper(s)
	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	numStr = strings.TrimSpace(numStr)
	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid data size %q: %w", s, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("data size must be non-negative: %s", s)
	}
	return val * multiplier, nil
}
