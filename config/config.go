package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddress = ":8646"
	defaultDataDir       = "./stakevault-data"
	defaultToken         = "VLT"
	defaultIssuer        = "stakevault"
)

type Config struct {
	ListenAddress string          `toml:"ListenAddress" yaml:"listen_address"`
	DataDir       string          `toml:"DataDir" yaml:"data_dir"`
	Environment   string          `toml:"Environment" yaml:"environment"`
	Auth          AuthConfig      `toml:"Auth" yaml:"auth"`
	Log           LogConfig       `toml:"Log" yaml:"log"`
	Telemetry     TelemetryConfig `toml:"Telemetry" yaml:"telemetry"`
	RateLimit     RateLimitConfig `toml:"RateLimit" yaml:"rate_limit"`
	Vesting       VestingConfig   `toml:"Vesting" yaml:"vesting"`
	Rewards       RewardsConfig   `toml:"Rewards" yaml:"rewards"`
	Stake         StakeConfig     `toml:"Stake" yaml:"stake"`
	Roles         RolesConfig     `toml:"Roles" yaml:"roles"`
	Genesis       GenesisConfig   `toml:"Genesis" yaml:"genesis"`
}

// Default returns a development configuration using the standard vesting
// schedule: 30 and 90 day tiers with a 5/10/40/45 split.
func Default() *Config {
	return &Config{
		ListenAddress: defaultListenAddress,
		DataDir:       defaultDataDir,
		Environment:   "dev",
		Auth: AuthConfig{
			Issuer:    defaultIssuer,
			ClockSkew: Duration{time.Minute},
			TokenTTL:  Duration{time.Hour},
		},
		Log:       LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Telemetry: TelemetryConfig{MetricsInterval: Duration{15 * time.Second}},
		RateLimit: RateLimitConfig{PerSecond: 20, Burst: 40},
		Vesting: VestingConfig{
			D1Duration: Duration{30 * 24 * time.Hour},
			D2Duration: Duration{90 * 24 * time.Hour},
			Fees:       5,
			PrizePool:  10,
			D1Share:    40,
			D2Share:    45,
		},
		Stake: StakeConfig{Token: defaultToken},
	}
}

// Load reads the configuration from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as TOML. A missing TOML file is created
// with defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = def.ListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = def.Environment
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		c.Auth.Issuer = def.Auth.Issuer
	}
	if c.Auth.ClockSkew.Duration == 0 {
		c.Auth.ClockSkew = def.Auth.ClockSkew
	}
	if c.Auth.TokenTTL.Duration == 0 {
		c.Auth.TokenTTL = def.Auth.TokenTTL
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Telemetry.MetricsInterval.Duration == 0 {
		c.Telemetry.MetricsInterval = def.Telemetry.MetricsInterval
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit = def.RateLimit
	}
	if strings.TrimSpace(c.Stake.Token) == "" {
		c.Stake.Token = def.Stake.Token
	}
	c.Stake.Token = strings.ToUpper(strings.TrimSpace(c.Stake.Token))
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ResolveHMACSecret returns the configured token secret, preferring the
// environment variable named by HMACSecretEnv when it is set.
func (c *Config) ResolveHMACSecret() (string, error) {
	if env := strings.TrimSpace(c.Auth.HMACSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value, nil
		}
	}
	secret := strings.TrimSpace(c.Auth.HMACSecret)
	if secret == "" {
		return "", fmt.Errorf("auth: hmac secret not configured")
	}
	return secret, nil
}
