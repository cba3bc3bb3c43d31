package rewards

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"stakevault/core/events"
	"stakevault/crypto"
	"stakevault/native/common"
)

// ModuleName identifies the reward ledger in pause flags and custody
// derivation.
const ModuleName = "rewards"

type engineState interface {
	common.PauseStore
	common.RoleView
	Atomic(fn func() error) error
	RewardsEpoch() (uint64, error)
	PutRewardsEpoch(epoch uint64) error
	RewardsEpochActivated(epoch uint64) (bool, error)
	RewardsLastClaimed(participant string) (uint64, error)
	PutRewardsLastClaimed(participant string, epoch uint64) error
	RewardsSigner() ([20]byte, error)
	PutRewardsSigner(signer [20]byte) error
}

// Claim reports a successful reward withdrawal.
type Claim struct {
	Participant string
	Recipient   [20]byte
	Amount      *big.Int
	Epoch       uint64
}

// Engine implements the reward claim ledger. Amounts are computed elsewhere;
// the engine only checks the trusted signer's attestation and allows one
// claim per participant per epoch.
type Engine struct {
	state   engineState
	token   common.Token
	emitter events.Emitter
	logger  *slog.Logger
	ledger  [20]byte
	lock    common.Lock
}

// NewEngine creates a reward engine whose identity defaults to the module
// address of the rewards ledger.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		ledger:  crypto.ModuleAddress(ModuleName),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token paid out on claims.
func (e *Engine) SetToken(token common.Token) { e.token = token }

// SetLedgerAddress overrides the identity bound into claim digests.
func (e *Engine) SetLedgerAddress(addr [20]byte) {
	if addr == ([20]byte{}) {
		addr = crypto.ModuleAddress(ModuleName)
	}
	e.ledger = addr
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
	if e.logger != nil {
		e.logger.Debug("rewards call rejected", "op", op, "code", ErrorCode(err), "error", err)
	}
}

func (e *Engine) info(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func normalizeParticipant(participant string) (string, error) {
	trimmed := strings.TrimSpace(participant)
	if trimmed == "" {
		return "", ErrInvalidParticipant
	}
	return trimmed, nil
}

func validateAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return nil, ErrOverflow
	}
	return new(big.Int).Set(amount), nil
}

// Digest returns the message hash the trusted signer must sign to authorise
// amount for participant in epoch on this ledger.
func (e *Engine) Digest(participant string, amount *big.Int, epoch uint64) []byte {
	return ClaimMessage{
		Ledger:      e.ledger,
		Participant: participant,
		Amount:      amount,
		Epoch:       epoch,
	}.Hash()
}

// Claim pays amount to the sender when signature is the trusted signer's
// attestation of (participant, amount, epoch) for the current epoch. The
// claim marker is written before funds leave custody.
func (e *Engine) Claim(ctx common.Context, participant string, amount *big.Int, epoch uint64, signature []byte) (*Claim, error) {
	var result *Claim
	err := e.run("claim", func(queue func(events.Event)) error {
		if err := common.Guard(e.state, ModuleName); err != nil {
			return err
		}
		if e.token == nil {
			return ErrTokenNotConfigured
		}
		id, err := normalizeParticipant(participant)
		if err != nil {
			return err
		}
		amt, err := validateAmount(amount)
		if err != nil {
			return err
		}
		if ctx.Sender == ([20]byte{}) {
			return ErrInvalidAddress
		}
		current, err := e.state.RewardsEpoch()
		if err != nil {
			return err
		}
		if current == 0 {
			return fmt.Errorf("%w: no epoch has been activated", ErrEpochExpired)
		}
		last, err := e.state.RewardsLastClaimed(id)
		if err != nil {
			return err
		}
		if last == current {
			return ErrAlreadyClaimed
		}
		if epoch != current {
			return fmt.Errorf("%w: got %d, current %d", ErrEpochExpired, epoch, current)
		}
		signer, err := e.state.RewardsSigner()
		if err != nil {
			return err
		}
		if !crypto.NewVerifier(signer).Verify(e.Digest(id, amt, epoch), signature) {
			return ErrInvalidSignature
		}
		if err := e.state.PutRewardsLastClaimed(id, epoch); err != nil {
			return err
		}
		if err := e.token.TransferOut(ctx.Sender, amt); err != nil {
			return err
		}
		queue(events.RewardClaimed{Participant: id, Recipient: ctx.Sender, Amount: amt, Epoch: epoch})
		e.info("reward claimed", "participant", id, "amount", amt.String(), "epoch", epoch)
		result = &Claim{Participant: id, Recipient: ctx.Sender, Amount: new(big.Int).Set(amt), Epoch: epoch}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdvanceEpoch makes newEpoch current. An epoch value can be activated only
// once, so a closed claim window never reopens.
func (e *Engine) AdvanceEpoch(ctx common.Context, newEpoch uint64) error {
	return e.run("advanceEpoch", func(queue func(events.Event)) error {
		if err := common.Authorize(e.state, common.RoleConfigureRewards, ctx.Sender); err != nil {
			return err
		}
		if newEpoch == 0 {
			return ErrInvalidEpoch
		}
		activated, err := e.state.RewardsEpochActivated(newEpoch)
		if err != nil {
			return err
		}
		if activated {
			return fmt.Errorf("%w: %d", ErrEpochAlreadySet, newEpoch)
		}
		old, err := e.state.RewardsEpoch()
		if err != nil {
			return err
		}
		if err := e.state.PutRewardsEpoch(newEpoch); err != nil {
			return err
		}
		queue(events.RewardEpochAdvanced{Old: old, New: newEpoch})
		e.info("epoch advanced", "old", old, "new", newEpoch)
		return nil
	})
}

// SetTrustedSigner rotates the identity whose signatures authorise claims.
func (e *Engine) SetTrustedSigner(ctx common.Context, signer [20]byte) error {
	return e.run("setTrustedSigner", func(queue func(events.Event)) error {
		if err := common.Authorize(e.state, common.RoleConfigureRewards, ctx.Sender); err != nil {
			return err
		}
		if signer == ([20]byte{}) {
			return ErrInvalidAddress
		}
		old, err := e.state.RewardsSigner()
		if err != nil {
			return err
		}
		if old == signer {
			return fmt.Errorf("%w: signer unchanged", ErrInvalidAddress)
		}
		if err := e.state.PutRewardsSigner(signer); err != nil {
			return err
		}
		queue(events.RewardSignerUpdated{Old: old, New: signer})
		e.info("trusted signer updated", "signer", crypto.FormatAddress(signer))
		return nil
	})
}

// Pause blocks claims until Unpause is called.
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

// Paused reports whether claims are paused.
func (e *Engine) Paused() bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.IsPaused(ModuleName)
}

// CurrentEpoch returns the active epoch, zero before the first activation.
func (e *Engine) CurrentEpoch() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.RewardsEpoch()
}

// LastClaimedEpoch returns the epoch participant last claimed in.
func (e *Engine) LastClaimedEpoch(participant string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	id, err := normalizeParticipant(participant)
	if err != nil {
		return 0, err
	}
	return e.state.RewardsLastClaimed(id)
}

// EpochActivated reports whether epoch has ever been current.
func (e *Engine) EpochActivated(epoch uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.RewardsEpochActivated(epoch)
}

// TrustedSigner returns the configured signer, zero when unset.
func (e *Engine) TrustedSigner() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, ErrNilState
	}
	return e.state.RewardsSigner()
}

// LedgerAddress returns the identity bound into claim digests.
func (e *Engine) LedgerAddress() [20]byte { return e.ledger }
