package config

import (
	"time"

	"github.com/rhizome-dev/rhizome/internal/gossip"
)

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// Config is the root node configuration: identity, network reachability,
// the gossip service's tunable constants, fetch byte/time limits, and
// seeding policy. One Config drives one node process.
type Config struct {
	Version  int            `yaml:"version,omitempty"`
	Identity IdentityConfig `yaml:"identity"`
	Network  NetworkConfig  `yaml:"network"`
	Gossip   GossipConfig   `yaml:"gossip"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Seeding  SeedingConfig  `yaml:"seeding"`
}

// IdentityConfig names the file holding the node's Ed25519 private key.
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
	// Alias is an optional human-readable name gossiped in this node's
	// announcements; purely cosmetic, never used for authorization.
	Alias string `yaml:"alias,omitempty"`
}

// NetworkConfig holds listen/external addresses and the persistent-connect
// list.
type NetworkConfig struct {
	ListenAddresses   []string `yaml:"listen_addresses"`
	ExternalAddresses []string `yaml:"external_addresses,omitempty"`
	// Connect names peers to dial and keep reconnecting to, as
	// "<node-id>@<address>" pairs.
	Connect []string `yaml:"connect,omitempty"`
}

// GossipConfig is the gossip service's own tunable constants, plus
// the routing-table limits and feature bitset that live alongside it in
// the node config rather than inside the service itself.
type GossipConfig struct {
	gossip.Config `yaml:",inline"`

	// RoutingMaxSize bounds the in-memory routing table's total entry
	// count; RoutingMaxAge evicts entries older than this on prune.
	RoutingMaxSize int           `yaml:"routing_max_size,omitempty"`
	RoutingMaxAge  time.Duration `yaml:"routing_max_age,omitempty"`

	// Features is a bitset of optional protocol extensions for this node.
	// It is loaded and kept in the config; no component of this
	// repository reads it.
	Features uint64 `yaml:"features,omitempty"`
}

// FetchConfig holds C4's byte ceilings and timeouts plus the worker pool
// size C5 uses to dial/fetch candidates concurrently.
type FetchConfig struct {
	// SpecialRefsLimit and DataRefsLimit are human-readable sizes (e.g.
	// "5MB", "5GB") parsed with ParseDataSize.
	SpecialRefsLimit string        `yaml:"special_refs_limit,omitempty"`
	DataRefsLimit    string        `yaml:"data_refs_limit,omitempty"`
	ChannelTimeout   time.Duration `yaml:"channel_timeout,omitempty"`
	// Concurrency is the configured number of candidate fetches to drive
	// at once. It is loaded and kept in the config; the orchestrator (C5)
	// does not read it.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// SeedingPolicy is the default seeding scope applied to repositories with
// no explicit per-repo Seed() call.
type SeedingPolicy string

const (
	SeedingBlock    SeedingPolicy = "Block"
	SeedingAllow    SeedingPolicy = "Allow"
	SeedingFollowed SeedingPolicy = "Followed"
)

// SeedingConfig controls which repositories this node accepts and
// replicates.
type SeedingConfig struct {
	Policy SeedingPolicy `yaml:"seeding_policy,omitempty"`
	// PreferredSeeds lists preferred seed node ids. It is loaded and kept
	// in the config; the orchestrator (C5) takes its seed set from its
	// caller and does not read this field.
	PreferredSeeds []string `yaml:"preferred_seeds,omitempty"`
}

// DefaultConfig returns a Config populated with every documented default
// suitable as a starting point before overlaying a YAML file.
func DefaultConfig() Config {
	return Config{
		Version: CurrentConfigVersion,
		Gossip: GossipConfig{
			Config:         gossip.DefaultConfig(),
			RoutingMaxSize: 100_000,
			RoutingMaxAge:  7 * 24 * time.Hour,
		},
		Fetch: FetchConfig{
			SpecialRefsLimit: "5MB",
			DataRefsLimit:    "5GB",
			ChannelTimeout:   30 * time.Second,
			Concurrency:      4,
		},
		Seeding: SeedingConfig{
			Policy: SeedingFollowed,
		},
	}
}
