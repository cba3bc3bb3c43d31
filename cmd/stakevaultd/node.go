package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/core/genesis"
	"stakevault/core/state"
	"stakevault/crypto"
	"stakevault/native/bank"
	"stakevault/native/rewards"
	"stakevault/native/stake"
	"stakevault/observability"
	"stakevault/storage"
)

// node owns the opened database and both ledger engines.
type node struct {
	db      storage.Database
	state   *state.Manager
	stake   *stake.Engine
	rewards *rewards.Engine
}

func (n *node) Close() {
	if n != nil && n.db != nil {
		n.db.Close()
	}
}

// openNode opens the ledger database under cfg.DataDir, applies bootstrap
// state on first start and wires both engines to the shared state manager.
func openNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	n, err := assembleNode(db, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return n, nil
}

func assembleNode(db storage.Database, cfg *config.Config, logger *slog.Logger) (*node, error) {
	manager := state.NewManager(db)

	spec, err := genesis.SpecFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build bootstrap state: %w", err)
	}
	applied, err := genesis.Apply(manager, spec)
	if err != nil {
		return nil, fmt.Errorf("apply bootstrap state: %w", err)
	}
	if applied {
		logger.Info("bootstrap state applied", slog.Int("balances", len(spec.Balances)), slog.String("token", spec.Token))
	}

	stakeToken, err := bank.NewLedger(manager, cfg.Stake.Token, crypto.ModuleAddress(stake.ModuleName))
	if err != nil {
		return nil, err
	}
	rewardsToken, err := bank.NewLedger(manager, cfg.Stake.Token, crypto.ModuleAddress(rewards.ModuleName))
	if err != nil {
		return nil, err
	}
	emitter := observability.EventCounter{Next: events.LogEmitter{Logger: logger}}

	stakeEngine := stake.NewEngine()
	stakeEngine.SetState(manager)
	stakeEngine.SetToken(stakeToken)
	stakeEngine.SetEmitter(emitter)
	stakeEngine.SetLogger(logger.With(slog.String("module", stake.ModuleName)))

	ledgerAddr, err := cfg.LedgerAddress()
	if err != nil {
		return nil, err
	}
	rewardsEngine := rewards.NewEngine()
	rewardsEngine.SetState(manager)
	rewardsEngine.SetToken(rewardsToken)
	rewardsEngine.SetEmitter(emitter)
	rewardsEngine.SetLogger(logger.With(slog.String("module", rewards.ModuleName)))
	rewardsEngine.SetLedgerAddress(ledgerAddr)

	return &node{db: db, state: manager, stake: stakeEngine, rewards: rewardsEngine}, nil
}
