package main

import (
	"bytes"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stakevault/config"
	"stakevault/crypto"
	"stakevault/native/common"
	"stakevault/native/rewards"
	"stakevault/storage"
)

func testConfig(t *testing.T, admin, buyer [20]byte) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	adminAddr := crypto.FormatAddress(admin)
	cfg.Roles = config.RolesConfig{
		Deposit:          []string{adminAddr, crypto.FormatAddress(buyer)},
		Pause:            []string{adminAddr},
		ConfigureVesting: []string{adminAddr},
		ConfigureRewards: []string{adminAddr},
	}
	cfg.Genesis.Balances = []config.GenesisBalance{
		{Address: crypto.FormatAddress(buyer), Amount: "5000"},
		{Address: crypto.FormatAddress(crypto.ModuleAddress(rewards.ModuleName)), Amount: "1000"},
	}
	cfg.Rewards.InitialEpoch = 2
	return cfg
}

func TestAssembleNodeAppliesBootstrapOnce(t *testing.T) {
	admin := [20]byte{0xad}
	buyer := [20]byte{0xb1}
	cfg := testConfig(t, admin, buyer)
	db := storage.NewMemDB()
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	n, err := assembleNode(db, cfg, logger)
	require.NoError(t, err)
	require.Contains(t, logs.String(), "bootstrap state applied")

	epoch, err := n.rewards.CurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(2), epoch)
	vesting, ok, err := n.stake.Config()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(30*24*time.Hour/time.Second), vesting.D1Duration)

	created, err := n.stake.Deposit(common.Direct(buyer), "buyer-1", big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(1), created.ID)
	require.Contains(t, logs.String(), "stake.created")

	// a second start with a different bootstrap does not reset live state
	cfg.Rewards.InitialEpoch = 9
	logs.Reset()
	again, err := assembleNode(db, cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	epoch, err = again.rewards.CurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(2), epoch)
	total, err := again.stake.TotalStakes()
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)
}

func TestAssembleNodeRejectsBadBootstrap(t *testing.T) {
	cfg := testConfig(t, [20]byte{0xad}, [20]byte{0xb1})
	cfg.Genesis.Balances = append(cfg.Genesis.Balances, config.GenesisBalance{Address: "not-an-address", Amount: "1"})
	_, err := assembleNode(storage.NewMemDB(), cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestOpenNodeUsesLevelDB(t *testing.T) {
	cfg := testConfig(t, [20]byte{0xad}, [20]byte{0xb1})
	n, err := openNode(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	n.Close()

	reopened, err := openNode(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer reopened.Close()
	epoch, err := reopened.rewards.CurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(2), epoch)
}
