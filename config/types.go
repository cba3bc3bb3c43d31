package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as a human readable
// string in TOML and YAML files.
type Duration struct {
	time.Duration
}

// UnmarshalText parses duration strings such as "720h" or "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// AuthConfig controls bearer token verification on the API.
type AuthConfig struct {
	HMACSecret    string   `toml:"HMACSecret" yaml:"hmac_secret"`
	HMACSecretEnv string   `toml:"HMACSecretEnv" yaml:"hmac_secret_env"`
	Issuer        string   `toml:"Issuer" yaml:"issuer"`
	Audience      []string `toml:"Audience" yaml:"audience"`
	ClockSkew     Duration `toml:"ClockSkew" yaml:"clock_skew"`
	TokenTTL      Duration `toml:"TokenTTL" yaml:"token_ttl"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint        string            `toml:"Endpoint" yaml:"endpoint"`
	Insecure        bool              `toml:"Insecure" yaml:"insecure"`
	Headers         map[string]string `toml:"Headers" yaml:"headers"`
	MetricsInterval Duration          `toml:"MetricsInterval" yaml:"metrics_interval"`
}

// RateLimitConfig bounds requests per authenticated caller.
type RateLimitConfig struct {
	PerSecond float64 `toml:"PerSecond" yaml:"per_second"`
	Burst     int     `toml:"Burst" yaml:"burst"`
}

// VestingConfig is the initial stake ledger schedule.
type VestingConfig struct {
	D1Duration Duration `toml:"D1Duration" yaml:"d1_duration"`
	D2Duration Duration `toml:"D2Duration" yaml:"d2_duration"`
	Fees       uint8    `toml:"Fees" yaml:"fees"`
	PrizePool  uint8    `toml:"PrizePool" yaml:"prize_pool"`
	D1Share    uint8    `toml:"D1Share" yaml:"d1_share"`
	D2Share    uint8    `toml:"D2Share" yaml:"d2_share"`
}

// RewardsConfig seeds the reward claim ledger.
type RewardsConfig struct {
	LedgerAddress string `toml:"LedgerAddress" yaml:"ledger_address"`
	TrustedSigner string `toml:"TrustedSigner" yaml:"trusted_signer"`
	InitialEpoch  uint64 `toml:"InitialEpoch" yaml:"initial_epoch"`
}

// StakeConfig seeds the stake ledger.
type StakeConfig struct {
	Token                 string `toml:"Token" yaml:"token"`
	RewardsFundingAddress string `toml:"RewardsFundingAddress" yaml:"rewards_funding_address"`
}

// RolesConfig lists the holders of each capability.
type RolesConfig struct {
	Deposit          []string `toml:"Deposit" yaml:"deposit"`
	Pause            []string `toml:"Pause" yaml:"pause"`
	ConfigureVesting []string `toml:"ConfigureVesting" yaml:"configure_vesting"`
	ConfigureRewards []string `toml:"ConfigureRewards" yaml:"configure_rewards"`
	Upgrade          []string `toml:"Upgrade" yaml:"upgrade"`
}

// GenesisBalance credits an account when the node first boots.
type GenesisBalance struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

// GenesisConfig lists bootstrap-only state.
type GenesisConfig struct {
	Balances []GenesisBalance `toml:"Balances" yaml:"balances"`
}
