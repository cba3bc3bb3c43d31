package stake

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"stakevault/core/events"
	"stakevault/native/common"
)

// ModuleName identifies the stake ledger in pause flags and custody
// derivation.
const ModuleName = "stake"

type engineState interface {
	common.PauseStore
	common.RoleView
	Atomic(fn func() error) error
	StakeConfig() (Config, bool, error)
	PutStakeConfig(Config) error
	StakePools() (*Pools, error)
	PutStakePools(*Pools) error
	StakeFundingAddress() ([20]byte, error)
	PutStakeFundingAddress([20]byte) error
	StakeCount() (uint64, error)
	AllocateStakeID() (uint64, error)
	GetStake(id uint64) (*Stake, bool, error)
	PutStake(*Stake) error
	ParticipantStakeCount(participant string) (uint64, error)
	AppendParticipantStake(participant string, id uint64) (uint64, error)
	ParticipantStakeIDs(participant string, offset, limit uint64) ([]uint64, error)
}

// Withdrawal reports the outcome of a successful withdraw.
type Withdrawal struct {
	StakeID uint64
	Amount  *big.Int
	Status  Status
}

// Sweep reports the amounts moved by SweepPools.
type Sweep struct {
	Destination [20]byte
	Amount      *big.Int
	Pools       *Pools
}

// Engine implements the stake ledger: deposits with a two tier vesting
// schedule, time gated withdrawals and pooled fee accounting. Every mutating
// entry point runs inside one state transaction and one reentrancy domain.
type Engine struct {
	state   engineState
	token   common.Token
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() int64
	lock    common.Lock
}

// NewEngine creates a stake engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token the ledger takes custody of.
func (e *Engine) SetToken(token common.Token) { e.token = token }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the logger used for state changes and rejections.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With("module", ModuleName)
}

// run executes fn inside the reentrancy lock and a state transaction. Events
// queued by fn are emitted only after the transaction commits.
func (e *Engine) run(op string, fn func(queue func(events.Event)) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.lock.Enter(); err != nil {
		e.reject(op, err)
		return err
	}
	defer e.lock.Exit()

	var pending []events.Event
	err := e.state.Atomic(func() error {
		return fn(func(evt events.Event) { pending = append(pending, evt) })
	})
	if err != nil {
		e.reject(op, err)
		return err
	}
	for _, evt := range pending {
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) reject(op string, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Debug("stake call rejected", "op", op, "code", ErrorCode(err), "error", err)
}

func (e *Engine) info(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Info(msg, args...)
}

func (e *Engine) now() (uint64, error) {
	var ts int64
	if e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 || uint64(ts) > MaxTimestamp {
		return 0, fmt.Errorf("%w: clock outside the timestamp range", ErrOverflow)
	}
	return uint64(ts), nil
}

func (e *Engine) requireToken() error {
	if e.token == nil {
		return ErrTokenNotConfigured
	}
	return nil
}

func normalizeParticipant(participant string) (string, error) {
	trimmed := strings.TrimSpace(participant)
	if trimmed == "" {
		return "", ErrInvalidParticipant
	}
	return trimmed, nil
}

func (e *Engine) activeConfig() (Config, error) {
	cfg, ok, err := e.state.StakeConfig()
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, fmt.Errorf("%w: vesting config not set", ErrConfigInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Deposit records a stake for participant. The funds are pulled from, and the
// stake is owned by, the transaction origin so that a forwarding component
// holding the deposit capability can deposit on a buyer's behalf. When the
// config assigns nothing to either vesting tier the deposit only feeds the
// pools and the returned stake is nil.
func (e *Engine) Deposit(ctx common.Context, participant string, amount *big.Int) (*Stake, error) {
	var created *Stake
	err := e.run("deposit", func(queue func(events.Event)) error {
		if err := common.Guard(e.state, ModuleName); err != nil {
			return err
		}
		if err := common.Authorize(e.state, common.RoleDeposit, ctx.Sender); err != nil {
			return err
		}
		if err := e.requireToken(); err != nil {
			return err
		}
		cfg, err := e.activeConfig()
		if err != nil {
			return err
		}
		id, err := normalizeParticipant(participant)
		if err != nil {
			return err
		}
		amt, err := toUint256(amount)
		if err != nil {
			return err
		}
		if amt.IsZero() {
			return ErrInvalidAmount
		}
		owner := ctx.OriginOrSender()
		if owner == ([20]byte{}) {
			return ErrInvalidAddress
		}

		fees, err := percentOf(amt, cfg.Fees)
		if err != nil {
			return err
		}
		prize, err := percentOf(amt, cfg.PrizePool)
		if err != nil {
			return err
		}
		pools, err := e.state.StakePools()
		if err != nil {
			return err
		}
		if pools.FeesAccrued, err = checkedAdd(pools.FeesAccrued, fees.ToBig()); err != nil {
			return err
		}
		if pools.PrizePoolAccrued, err = checkedAdd(pools.PrizePoolAccrued, prize.ToBig()); err != nil {
			return err
		}
		if err := e.state.PutStakePools(pools); err != nil {
			return err
		}
		if err := e.token.TransferIn(owner, amt.ToBig()); err != nil {
			return err
		}

		d1, err := percentOf(amt, cfg.D1Share)
		if err != nil {
			return err
		}
		d2, err := percentOf(amt, cfg.D2Share)
		if err != nil {
			return err
		}
		if d1.IsZero() && d2.IsZero() {
			e.info("deposit absorbed into pools", "participant", id, "amount", amt.Dec())
			return nil
		}

		now, err := e.now()
		if err != nil {
			return err
		}
		d1At, err := unlockAt(now, cfg.D1Duration)
		if err != nil {
			return err
		}
		d2At, err := unlockAt(now, cfg.D2Duration)
		if err != nil {
			return err
		}
		stakeID, err := e.state.AllocateStakeID()
		if err != nil {
			return err
		}
		record := &Stake{
			ID:          stakeID,
			Owner:       owner,
			Participant: id,
			Amount:      amt.ToBig(),
			D1Amount:    d1.ToBig(),
			D2Amount:    d2.ToBig(),
			CreatedAt:   now,
			D1At:        d1At,
			D2At:        d2At,
			Status:      StatusActive,
		}
		if err := e.state.PutStake(record); err != nil {
			return err
		}
		if _, err := e.state.AppendParticipantStake(id, stakeID); err != nil {
			return err
		}
		queue(events.StakeCreated{
			StakeID:     record.ID,
			Owner:       record.Owner,
			Participant: record.Participant,
			Amount:      record.Amount,
			D1Amount:    record.D1Amount,
			D2Amount:    record.D2Amount,
			D1At:        record.D1At,
			D2At:        record.D2At,
		})
		e.info("stake created", "stakeId", stakeID, "participant", id, "amount", amt.Dec())
		created = record.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Withdraw releases whatever the vesting schedule allows for the stake at the
// current time. The status change is written before funds leave custody.
func (e *Engine) Withdraw(ctx common.Context, stakeID uint64) (*Withdrawal, error) {
	var result *Withdrawal
	err := e.run("withdraw", func(queue func(events.Event)) error {
		if err := common.Guard(e.state, ModuleName); err != nil {
			return err
		}
		if err := e.requireToken(); err != nil {
			return err
		}
		record, err := e.loadStake(stakeID)
		if err != nil {
			return err
		}
		if ctx.Sender != record.Owner {
			return ErrUnauthorized
		}
		now, err := e.now()
		if err != nil {
			return err
		}
		amount, next, err := record.Release(record.PhaseAt(now))
		if err != nil {
			return err
		}
		record.Status = next
		if err := e.state.PutStake(record); err != nil {
			return err
		}
		if amount.Sign() > 0 {
			if err := e.token.TransferOut(record.Owner, amount); err != nil {
				return err
			}
		}
		queue(events.StakeWithdrawn{
			StakeID: record.ID,
			Owner:   record.Owner,
			Amount:  amount,
			Status:  next.String(),
		})
		e.info("stake withdrawn", "stakeId", record.ID, "amount", amount.String(), "status", next.String())
		result = &Withdrawal{StakeID: record.ID, Amount: new(big.Int).Set(amount), Status: next}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetConfig validates and stores a new vesting config. Existing stakes keep
// the amounts and unlock times fixed at their creation.
func (e *Engine) SetConfig(ctx common.Context, cfg Config) error {
	return e.run("setConfig", func(queue func(events.Event)) error {
		if err := common.Authorize(e.state, common.RoleConfigureVesting, ctx.Sender); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		old, _, err := e.state.StakeConfig()
		if err != nil {
			return err
		}
		if err := e.state.PutStakeConfig(cfg); err != nil {
			return err
		}
		queue(events.StakeConfigUpdated{Old: old.Terms(), New: cfg.Terms()})
		e.info("vesting config updated", "d1Duration", cfg.D1Duration, "d2Duration", cfg.D2Duration,
			"fees", cfg.Fees, "prizePool", cfg.PrizePool, "d1Share", cfg.D1Share, "d2Share", cfg.D2Share)
		return nil
	})
}

// SetRewardsFundingAddress rotates the destination used by SweepPools.
func (e *Engine) SetRewardsFundingAddress(ctx common.Context, addr [20]byte) error {
	return e.run("setRewardsFundingAddress", func(queue func(events.Event)) error {
		if err := common.Authorize(e.state, common.RoleConfigureVesting, ctx.Sender); err != nil {
			return err
		}
		if addr == ([20]byte{}) {
			return ErrInvalidAddress
		}
		old, err := e.state.StakeFundingAddress()
		if err != nil {
			return err
		}
		if old == addr {
			return fmt.Errorf("%w: funding address unchanged", ErrInvalidAddress)
		}
		if err := e.state.PutStakeFundingAddress(addr); err != nil {
			return err
		}
		queue(events.StakeFundingAddressUpdated{Old: old, New: addr})
		e.info("rewards funding address updated")
		return nil
	})
}

// SweepPools transfers every pooled balance to the rewards funding address
// and zeroes the counters.
func (e *Engine) SweepPools(ctx common.Context) (*Sweep, error) {
	var result *Sweep
	err := e.run("sweepPools", func(queue func(events.Event)) error {
		if err := common.Authorize(e.state, common.RoleConfigureVesting, ctx.Sender); err != nil {
			return err
		}
		if err := e.requireToken(); err != nil {
			return err
		}
		dest, err := e.state.StakeFundingAddress()
		if err != nil {
			return err
		}
		if dest == ([20]byte{}) {
			return fmt.Errorf("%w: rewards funding address not set", ErrInvalidAddress)
		}
		pools, err := e.state.StakePools()
		if err != nil {
			return err
		}
		if pools.Accrued().Sign() == 0 {
			return ErrNothingToSweep
		}
		total, err := checkedAdd(pools.Accrued(), pools.PrizePoolDeposited)
		if err != nil {
			return err
		}
		if err := e.state.PutStakePools(nil); err != nil {
			return err
		}
		if err := e.token.TransferOut(dest, total); err != nil {
			return err
		}
		queue(events.StakePoolsSwept{
			Destination:        dest,
			Amount:             total,
			FeesAccrued:        pools.FeesAccrued,
			PrizePoolAccrued:   pools.PrizePoolAccrued,
			PrizePoolDeposited: pools.PrizePoolDeposited,
		})
		e.info("pools swept", "amount", total.String())
		result = &Sweep{Destination: dest, Amount: new(big.Int).Set(total), Pools: pools.Clone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DepositPrizePool tops up the prize pool with funds pulled from the sender.
func (e *Engine) DepositPrizePool(ctx common.Context, amount *big.Int) (*Pools, error) {
	var result *Pools
	err := e.run("depositPrizePool", func(queue func(events.Event)) error {
		if err := common.Guard(e.state, ModuleName); err != nil {
			return err
		}
		if err := common.Authorize(e.state, common.RoleDeposit, ctx.Sender); err != nil {
			return err
		}
		if err := e.requireToken(); err != nil {
			return err
		}
		amt, err := toUint256(amount)
		if err != nil {
			return err
		}
		if amt.IsZero() {
			return ErrInvalidAmount
		}
		pools, err := e.state.StakePools()
		if err != nil {
			return err
		}
		if pools.PrizePoolDeposited, err = checkedAdd(pools.PrizePoolDeposited, amt.ToBig()); err != nil {
			return err
		}
		if err := e.state.PutStakePools(pools); err != nil {
			return err
		}
		if err := e.token.TransferIn(ctx.Sender, amt.ToBig()); err != nil {
			return err
		}
		queue(events.StakePrizePoolFunded{Funder: ctx.Sender, Amount: amt.ToBig(), Total: pools.PrizePoolDeposited})
		e.info("prize pool funded", "amount", amt.Dec())
		result = pools.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Pause blocks deposits and withdrawals until Unpause is called.
func (e *Engine) Pause(ctx common.Context) error { return e.setPaused(ctx, true) }

// Unpause lifts a previous Pause.
func (e *Engine) Unpause(ctx common.Context) error { return e.setPaused(ctx, false) }

func (e *Engine) setPaused(ctx common.Context, paused bool) error {
	op := "unpause"
	if paused {
		op = "pause"
	}
	return e.run(op, func(queue func(events.Event)) error {
		if err := common.Authorize(e.state, common.RolePause, ctx.Sender); err != nil {
			return err
		}
		if e.state.IsPaused(ModuleName) == paused {
			return nil
		}
		if err := e.state.SetPaused(ModuleName, paused); err != nil {
			return err
		}
		queue(events.ModulePauseToggled{Module: ModuleName, By: ctx.Sender, Paused: paused})
		e.info("pause flag changed", "paused", paused)
		return nil
	})
}

// Paused reports whether the ledger is paused.
func (e *Engine) Paused() bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.IsPaused(ModuleName)
}

func (e *Engine) loadStake(id uint64) (*Stake, error) {
	record, ok, err := e.state.GetStake(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// GetStake returns the stake with the given id.
func (e *Engine) GetStake(id uint64) (*Stake, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadStake(id)
}

// StakesOf returns a page of participant's stakes in deposit order together
// with the participant's total stake count.
func (e *Engine) StakesOf(participant string, offset, limit uint64) ([]*Stake, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, ErrNilState
	}
	id, err := normalizeParticipant(participant)
	if err != nil {
		return nil, 0, err
	}
	total, err := e.state.ParticipantStakeCount(id)
	if err != nil {
		return nil, 0, err
	}
	ids, err := e.state.ParticipantStakeIDs(id, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	stakes := make([]*Stake, 0, len(ids))
	for _, stakeID := range ids {
		record, err := e.loadStake(stakeID)
		if err != nil {
			return nil, 0, err
		}
		stakes = append(stakes, record)
	}
	return stakes, total, nil
}

// StakeCount returns the number of stakes recorded for participant.
func (e *Engine) StakeCount(participant string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	id, err := normalizeParticipant(participant)
	if err != nil {
		return 0, err
	}
	return e.state.ParticipantStakeCount(id)
}

// TotalStakes returns the number of stakes recorded across all participants.
func (e *Engine) TotalStakes() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.StakeCount()
}

// Config returns the stored vesting config. ok is false before one is set.
func (e *Engine) Config() (Config, bool, error) {
	if e == nil || e.state == nil {
		return Config{}, false, ErrNilState
	}
	return e.state.StakeConfig()
}

// Pools returns a snapshot of the pool counters.
func (e *Engine) Pools() (*Pools, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.StakePools()
}

// RewardsFundingAddress returns the sweep destination, zero when unset.
func (e *Engine) RewardsFundingAddress() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, ErrNilState
	}
	return e.state.StakeFundingAddress()
}

// Claimable previews what Withdraw would release for the stake at now.
func (e *Engine) Claimable(id uint64, now time.Time) (*Claimable, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, err := e.loadStake(id)
	if err != nil {
		return nil, err
	}
	ts := now.Unix()
	if ts < 0 {
		ts = 0
	}
	phase := record.PhaseAt(uint64(ts))
	out := &Claimable{StakeID: id, Phase: phase, Amount: big.NewInt(0), Next: record.Status}
	amount, next, err := record.Release(phase)
	if err != nil {
		return out, nil
	}
	out.Amount = amount
	out.Next = next
	return out, nil
}
