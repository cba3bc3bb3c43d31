package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stakevault/crypto"
	"stakevault/native/common"
)

var testAddr = func() string {
	var addr [20]byte
	addr[0] = 0x42
	addr[19] = 0x24
	return crypto.FormatAddress(addr)
}()

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `ListenAddress = "127.0.0.1:9000"
DataDir = "./data"

[Auth]
HMACSecret = "s3cret"
ClockSkew = "30s"

[Log]
Level = "debug"
File = "/tmp/stakevault.log"

[Vesting]
D1Duration = "720h"
D2Duration = "2160h"
Fees = 5
PrizePool = 10
D1Share = 40
D2Share = 45

[Rewards]
TrustedSigner = "`+testAddr+`"
InitialEpoch = 3

[Stake]
Token = "vlt"

[Roles]
Deposit = ["`+testAddr+`"]
Pause = ["`+testAddr+`"]

[[Genesis.Balances]]
Address = "`+testAddr+`"
Amount = "1000000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.Auth.ClockSkew.Duration != 30*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Stake.Token != "VLT" {
		t.Fatalf("expected token to be normalised, got %q", cfg.Stake.Token)
	}
	schedule, err := cfg.VestingSchedule()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if schedule.D1Duration != 30*24*3600 || schedule.D2Duration != 90*24*3600 {
		t.Fatalf("unexpected schedule %+v", schedule)
	}
	roles, err := cfg.RoleHolders()
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if len(roles[common.RoleDeposit]) != 1 || len(roles[common.RoleConfigureRewards]) != 0 {
		t.Fatalf("unexpected roles %v", roles)
	}
	balances, err := cfg.GenesisBalances()
	if err != nil || len(balances) != 1 || balances[0].Amount.String() != "1000000" {
		t.Fatalf("unexpected balances %v %v", balances, err)
	}
	secret, err := cfg.ResolveHMACSecret()
	if err != nil || secret != "s3cret" {
		t.Fatalf("unexpected secret %q %v", secret, err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `listen_address: ":7000"
vesting:
  d1_duration: 1h
  d2_duration: 2h
  fees: 25
  prize_pool: 25
  d1_share: 25
  d2_share: 25
rewards:
  initial_epoch: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	schedule, err := cfg.VestingSchedule()
	if err != nil || schedule.D1Duration != 3600 || schedule.D2Duration != 7200 {
		t.Fatalf("unexpected schedule %+v %v", schedule, err)
	}
	if cfg.Stake.Token != defaultToken || cfg.Log.Level != "info" {
		t.Fatalf("expected defaults to apply, got %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.toml", "ListenAddress = \":1\"\nBogus = true\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "Bogus") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
	yamlPath := writeFile(t, "config.yml", "bogus: true\n")
	if _, err := Load(yamlPath); err == nil {
		t.Fatalf("expected unknown yaml key error")
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != defaultListenAddress {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Vesting.D2Duration != cfg.Vesting.D2Duration {
		t.Fatalf("round trip changed vesting: %v vs %v", reloaded.Vesting.D2Duration, cfg.Vesting.D2Duration)
	}
}

func TestValidateRejectsBadSections(t *testing.T) {
	cases := map[string]func(*Config){
		"percent sum":      func(c *Config) { c.Vesting.Fees = 6 },
		"duration order":   func(c *Config) { c.Vesting.D1Duration = c.Vesting.D2Duration },
		"fractional":       func(c *Config) { c.Vesting.D1Duration = Duration{1500 * time.Millisecond} },
		"bad role address": func(c *Config) { c.Roles.Pause = []string{"nope"} },
		"bad signer":       func(c *Config) { c.Rewards.TrustedSigner = "0x12" },
		"bad balance":      func(c *Config) { c.Genesis.Balances = []GenesisBalance{{Address: testAddr, Amount: "-1"}} },
		"log level":        func(c *Config) { c.Log.Level = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestResolveHMACSecretPrefersEnv(t *testing.T) {
	t.Setenv("STAKEVAULT_TEST_SECRET", "from-env")
	cfg := Default()
	cfg.Auth.HMACSecret = "from-file"
	cfg.Auth.HMACSecretEnv = "STAKEVAULT_TEST_SECRET"
	secret, err := cfg.ResolveHMACSecret()
	if err != nil || secret != "from-env" {
		t.Fatalf("unexpected secret %q %v", secret, err)
	}
	if _, err := Default().ResolveHMACSecret(); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
