package gossip

import "time"

// Config holds the gossip service's tunable constants. Field names
// mirror the documented defaults; all are overridable per node.
type Config struct {
	// TargetOutboundPeers is the desired outbound session count.
	TargetOutboundPeers int `yaml:"target_outbound_peers"`

	// IdleInterval is the period of the idle task (outbound dial top-up).
	IdleInterval time.Duration `yaml:"idle_interval"`

	// AnnounceInterval is the period of inventory broadcast.
	AnnounceInterval time.Duration `yaml:"announce_interval"`

	// SyncInterval is the period of the sync hook.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// PruneInterval is the period of routing table prune.
	PruneInterval time.Duration `yaml:"prune_interval"`

	// StaleConnectionTimeout is the configured disconnect threshold for
	// an unanswered Ping. The reactor does not read this field; its
	// staleness check uses session.StaleConnectionTimeout.
	StaleConnectionTimeout time.Duration `yaml:"stale_connection_timeout"`

	// KeepAliveDelta is the configured ping interval. The reactor does
	// not read this field; its ping check uses session.KeepAliveDelta.
	KeepAliveDelta time.Duration `yaml:"keep_alive_delta"`

	// MaxTimeDelta bounds how far into the future an announcement's
	// timestamp may be before it's rejected as clock skew.
	MaxTimeDelta time.Duration `yaml:"max_time_delta"`

	// MaxConnectionAttempts is the configured bound on persistent-peer
	// reconnection retries. Nothing reads this field; the session
	// package's reconnect tracker uses session.MaxConnectionAttempts.
	MaxConnectionAttempts int `yaml:"max_connection_attempts"`

	// Relay enables forwarding admitted announcements to other
	// negotiated sessions (subject to the per-session subscription
	// filter and the never-relay-to-source rule).
	Relay bool `yaml:"relay"`

	// RelayRateLimit and RelayRateBurst bound how many announcements per
	// second, per originating signer, this node will relay. A signer
	// that exceeds the bucket has its excess announcements dropped
	// rather than forwarded, so one noisy or malicious peer can't turn
	// every other session into a fan-out amplifier for it.
	RelayRateLimit float64 `yaml:"relay_rate_limit"`
	RelayRateBurst int     `yaml:"relay_rate_burst"`

	// ConnAttemptRateLimit and ConnAttemptRateBurst bound how many
	// inbound connection attempts per second, per source address, the
	// default admission hook accepts before refusing the rest. Replaced
	// entirely by SetAdmissionHook if the caller wants different policy.
	ConnAttemptRateLimit float64 `yaml:"conn_attempt_rate_limit"`
	ConnAttemptRateBurst int     `yaml:"conn_attempt_rate_burst"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TargetOutboundPeers:    8,
		IdleInterval:           30 * time.Second,
		AnnounceInterval:       30 * time.Second,
		SyncInterval:           60 * time.Second,
		PruneInterval:          30 * time.Minute,
		StaleConnectionTimeout: 60 * time.Second,
		KeepAliveDelta:         30 * time.Second,
		MaxTimeDelta:           60 * time.Minute,
		MaxConnectionAttempts:  3,
		Relay:                  true,
		RelayRateLimit:         20,
		RelayRateBurst:         40,
		ConnAttemptRateLimit:   5,
		ConnAttemptRateBurst:   10,
	}
}
