package config

import (
	"testing"
)

func BenchmarkLoad(b *testing.B) {
	dir := b.TempDir()
	path := writeTestConfig(b, dir, testConfigYAML)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Load(path)
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := &Config{
		Identity: IdentityConfig{KeyFile: "key"},
		Network:  NetworkConfig{ListenAddresses: []string{"/ip4/0.0.0.0/udp/0/quic-v1"}},
		Seeding:  SeedingConfig{Policy: SeedingFollowed},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate(cfg)
	}
}
