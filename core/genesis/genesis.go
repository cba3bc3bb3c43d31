package genesis

import (
	"bytes"
	"fmt"
	"sort"

	"stakevault/config"
	"stakevault/core/state"
	"stakevault/crypto"
	"stakevault/native/bank"
	"stakevault/native/common"
	"stakevault/native/stake"
)

var appliedKey = []byte("genesis/applied")

// Spec is the bootstrap state written the first time a node opens its data
// directory.
type Spec struct {
	Token          string
	Balances       []config.Balance
	Roles          map[common.Role][][20]byte
	Vesting        stake.Config
	FundingAddress [20]byte
	TrustedSigner  [20]byte
	InitialEpoch   uint64
}

// SpecFromConfig builds the bootstrap spec from a validated node config.
func SpecFromConfig(cfg *config.Config) (*Spec, error) {
	if cfg == nil {
		return nil, fmt.Errorf("genesis: config must not be nil")
	}
	vesting, err := cfg.VestingSchedule()
	if err != nil {
		return nil, err
	}
	balances, err := cfg.GenesisBalances()
	if err != nil {
		return nil, err
	}
	roles, err := cfg.RoleHolders()
	if err != nil {
		return nil, err
	}
	funding, err := cfg.RewardsFundingAddress()
	if err != nil {
		return nil, err
	}
	signer, err := cfg.TrustedSigner()
	if err != nil {
		return nil, err
	}
	return &Spec{
		Token:          cfg.Stake.Token,
		Balances:       balances,
		Roles:          roles,
		Vesting:        vesting,
		FundingAddress: funding,
		TrustedSigner:  signer,
		InitialEpoch:   cfg.Rewards.InitialEpoch,
	}, nil
}

// Applied reports whether bootstrap state has already been written.
func Applied(manager *state.Manager) (bool, error) {
	var applied bool
	if _, err := manager.KVGet(appliedKey, &applied); err != nil {
		return false, err
	}
	return applied, nil
}

// Apply writes spec into state in one transaction. It is a no-op returning
// false when bootstrap already ran, so restarting with an edited config never
// overwrites live ledger state.
func Apply(manager *state.Manager, spec *Spec) (bool, error) {
	if manager == nil || spec == nil {
		return false, fmt.Errorf("genesis: manager and spec are required")
	}
	done, err := Applied(manager)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}
	if err := spec.Vesting.Validate(); err != nil {
		return false, fmt.Errorf("genesis: %w", err)
	}
	token, err := bank.NewLedger(manager, spec.Token, crypto.ModuleAddress(stake.ModuleName))
	if err != nil {
		return false, fmt.Errorf("genesis: %w", err)
	}

	err = manager.Atomic(func() error {
		// 1) Balances (sorted by address)
		balances := append([]config.Balance(nil), spec.Balances...)
		sort.SliceStable(balances, func(i, j int) bool {
			return bytes.Compare(balances[i].Address[:], balances[j].Address[:]) < 0
		})
		for _, entry := range balances {
			if err := token.Credit(entry.Address, entry.Amount); err != nil {
				return fmt.Errorf("balance %s: %w", crypto.FormatAddress(entry.Address), err)
			}
		}

		// 2) Roles (canonical role order; addresses deduplicated by SetRole)
		for _, role := range common.AllRoles {
			for _, addr := range spec.Roles[role] {
				if err := manager.SetRole(string(role), addr[:]); err != nil {
					return fmt.Errorf("roles[%s]: %w", role, err)
				}
			}
		}

		// 3) Ledger parameters
		if err := manager.PutStakeConfig(spec.Vesting); err != nil {
			return err
		}
		if spec.FundingAddress != ([20]byte{}) {
			if err := manager.PutStakeFundingAddress(spec.FundingAddress); err != nil {
				return err
			}
		}
		if spec.TrustedSigner != ([20]byte{}) {
			if err := manager.PutRewardsSigner(spec.TrustedSigner); err != nil {
				return err
			}
		}
		if spec.InitialEpoch != 0 {
			if err := manager.PutRewardsEpoch(spec.InitialEpoch); err != nil {
				return err
			}
		}
		return manager.KVPut(appliedKey, true)
	})
	if err != nil {
		return false, fmt.Errorf("genesis: %w", err)
	}
	return true, nil
}
