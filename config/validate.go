package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"stakevault/crypto"
	"stakevault/native/common"
	"stakevault/native/stake"
)

var validLogLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddress) == "" {
		errs = append(errs, fmt.Errorf("ListenAddress must not be empty"))
	}
	if _, ok := validLogLevels[strings.ToLower(strings.TrimSpace(c.Log.Level))]; !ok {
		errs = append(errs, fmt.Errorf("log: unknown level %q", c.Log.Level))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("log: rotation limits must not be negative"))
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit: values must not be negative"))
	}
	if c.Auth.ClockSkew.Duration < 0 || c.Auth.TokenTTL.Duration < 0 {
		errs = append(errs, fmt.Errorf("auth: durations must not be negative"))
	}
	if _, err := c.VestingSchedule(); err != nil {
		errs = append(errs, err)
	}
	if _, err := optionalAddress("rewards.LedgerAddress", c.Rewards.LedgerAddress); err != nil {
		errs = append(errs, err)
	}
	if _, err := optionalAddress("rewards.TrustedSigner", c.Rewards.TrustedSigner); err != nil {
		errs = append(errs, err)
	}
	if _, err := optionalAddress("stake.RewardsFundingAddress", c.Stake.RewardsFundingAddress); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RoleHolders(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GenesisBalances(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VestingSchedule converts the vesting section into a validated stake config.
// Durations must be whole seconds.
func (c *Config) VestingSchedule() (stake.Config, error) {
	d1, err := wholeSeconds("vesting.D1Duration", c.Vesting.D1Duration.Duration)
	if err != nil {
		return stake.Config{}, err
	}
	d2, err := wholeSeconds("vesting.D2Duration", c.Vesting.D2Duration.Duration)
	if err != nil {
		return stake.Config{}, err
	}
	cfg := stake.Config{
		D1Duration: d1,
		D2Duration: d2,
		Fees:       c.Vesting.Fees,
		PrizePool:  c.Vesting.PrizePool,
		D1Share:    c.Vesting.D1Share,
		D2Share:    c.Vesting.D2Share,
	}
	if err := cfg.Validate(); err != nil {
		return stake.Config{}, fmt.Errorf("vesting: %w", err)
	}
	return cfg, nil
}

func wholeSeconds(field string, d time.Duration) (uint64, error) {
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("%s must be a whole number of seconds", field)
	}
	return uint64(d / time.Second), nil
}

func optionalAddress(field, raw string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// LedgerAddress returns the configured reward ledger identity, zero when the
// module default should be used.
func (c *Config) LedgerAddress() ([20]byte, error) {
	return optionalAddress("rewards.LedgerAddress", c.Rewards.LedgerAddress)
}

// TrustedSigner returns the initial reward signer, zero when unset.
func (c *Config) TrustedSigner() ([20]byte, error) {
	return optionalAddress("rewards.TrustedSigner", c.Rewards.TrustedSigner)
}

// RewardsFundingAddress returns the initial sweep destination, zero when
// unset.
func (c *Config) RewardsFundingAddress() ([20]byte, error) {
	return optionalAddress("stake.RewardsFundingAddress", c.Stake.RewardsFundingAddress)
}

// RoleHolders parses the roles section.
func (c *Config) RoleHolders() (map[common.Role][][20]byte, error) {
	sections := map[common.Role][]string{
		common.RoleDeposit:          c.Roles.Deposit,
		common.RolePause:            c.Roles.Pause,
		common.RoleConfigureVesting: c.Roles.ConfigureVesting,
		common.RoleConfigureRewards: c.Roles.ConfigureRewards,
		common.RoleUpgrade:          c.Roles.Upgrade,
	}
	out := make(map[common.Role][][20]byte, len(sections))
	for _, role := range common.AllRoles {
		for _, raw := range sections[role] {
			addr, err := crypto.ParseAddress(raw)
			if err != nil {
				return nil, fmt.Errorf("roles.%s: %w", role, err)
			}
			out[role] = append(out[role], addr)
		}
	}
	return out, nil
}

// Balance is a parsed genesis credit.
type Balance struct {
	Address [20]byte
	Amount  *big.Int
}

// GenesisBalances parses the genesis balance list.
func (c *Config) GenesisBalances() ([]Balance, error) {
	out := make([]Balance, 0, len(c.Genesis.Balances))
	for i, entry := range c.Genesis.Balances {
		addr, err := crypto.ParseAddress(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis.balances[%d]: %w", i, err)
		}
		amount, err := parseUintAmount(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("genesis.balances[%d]: %w", i, err)
		}
		out = append(out, Balance{Address: addr, Amount: amount})
	}
	return out, nil
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}
	return amount, nil
}
