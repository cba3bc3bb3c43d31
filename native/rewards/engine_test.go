package rewards_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/crypto"
	"stakevault/native/bank"
	"stakevault/native/common"
	"stakevault/native/rewards"
	"stakevault/storage"
)

var (
	admin    = [20]byte{0xad}
	claimant = [20]byte{0xc1}
)

type fixture struct {
	engine   *rewards.Engine
	state    *state.Manager
	ledger   *bank.Ledger
	signer   *crypto.PrivateKey
	recorder *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	custody := crypto.ModuleAddress(rewards.ModuleName)
	ledger, err := bank.NewLedger(mgr, "VLT", custody)
	require.NoError(t, err)
	require.NoError(t, ledger.Credit(custody, big.NewInt(100_000)))
	for _, role := range []common.Role{common.RoleConfigureRewards, common.RolePause} {
		require.NoError(t, mgr.SetRole(string(role), admin[:]))
	}
	signer, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	f := &fixture{state: mgr, ledger: ledger, signer: signer, recorder: &events.Recorder{}}
	f.engine = rewards.NewEngine()
	f.engine.SetState(mgr)
	f.engine.SetToken(ledger)
	f.engine.SetEmitter(f.recorder)
	require.NoError(t, f.engine.SetTrustedSigner(common.Direct(admin), signer.PubKey().Address().Array()))
	f.recorder.Reset()
	return f
}

func (f *fixture) sign(t *testing.T, participant string, amount int64, epoch uint64) []byte {
	t.Helper()
	sig, err := crypto.SignDigest(f.signer, f.engine.Digest(participant, big.NewInt(amount), epoch))
	require.NoError(t, err)
	return sig
}

func TestScenarioClaimOncePerEpoch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 7))

	sig := f.sign(t, "participant-1", 500, 7)
	claim, err := f.engine.Claim(common.Direct(claimant), "participant-1", big.NewInt(500), 7, sig)
	require.NoError(t, err)
	require.Equal(t, uint64(7), claim.Epoch)
	require.Equal(t, claimant, claim.Recipient)

	last, err := f.engine.LastClaimedEpoch("participant-1")
	require.NoError(t, err)
	require.Equal(t, uint64(7), last)
	bal, err := f.ledger.BalanceOf(claimant)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), bal)
	require.Len(t, f.recorder.OfType(events.TypeRewardClaimed), 1)

	_, err = f.engine.Claim(common.Direct(claimant), "participant-1", big.NewInt(500), 7, sig)
	require.ErrorIs(t, err, rewards.ErrAlreadyClaimed)
	require.Equal(t, rewards.CodeAlreadyClaimed, rewards.ErrorCode(err))

	// a different, validly signed amount is still a second claim
	_, err = f.engine.Claim(common.Direct(claimant), "participant-1", big.NewInt(1), 7, f.sign(t, "participant-1", 1, 7))
	require.ErrorIs(t, err, rewards.ErrAlreadyClaimed)

	bal, err = f.ledger.BalanceOf(claimant)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), bal)
}

func TestScenarioEpochCannotBeReactivated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 7))
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 8))

	err := f.engine.AdvanceEpoch(common.Direct(admin), 7)
	require.ErrorIs(t, err, rewards.ErrEpochAlreadySet)
	require.Equal(t, rewards.CodeEpochAlreadySet, rewards.ErrorCode(err))
	require.ErrorIs(t, f.engine.AdvanceEpoch(common.Direct(admin), 8), rewards.ErrEpochAlreadySet)

	current, err := f.engine.CurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(8), current)

	require.ErrorIs(t, f.engine.AdvanceEpoch(common.Direct(admin), 0), rewards.ErrInvalidEpoch)
	require.ErrorIs(t, f.engine.AdvanceEpoch(common.Direct(claimant), 9), common.ErrMissingRole)

	activated, err := f.engine.EpochActivated(7)
	require.NoError(t, err)
	require.True(t, activated)
	require.Len(t, f.recorder.OfType(events.TypeRewardEpochAdvanced), 2)
}

func TestClaimAgainstStaleOrFutureEpoch(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 0, f.sign(t, "p", 10, 0))
	require.ErrorIs(t, err, rewards.ErrEpochExpired)

	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 3))
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 4))

	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 3, f.sign(t, "p", 10, 3))
	require.ErrorIs(t, err, rewards.ErrEpochExpired)
	require.Equal(t, rewards.CodeEpochExpired, rewards.ErrorCode(err))

	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 5, f.sign(t, "p", 10, 5))
	require.ErrorIs(t, err, rewards.ErrEpochExpired)

	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 4, f.sign(t, "p", 10, 4))
	require.NoError(t, err)
}

func TestClaimRejectsBadSignatures(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 1))

	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	forged, err := crypto.SignDigest(other, f.engine.Digest("p", big.NewInt(10), 1))
	require.NoError(t, err)

	cases := map[string][]byte{
		"wrong signer":      forged,
		"different sum":     f.sign(t, "p", 11, 1),
		"other participant": f.sign(t, "q", 10, 1),
		"truncated":         f.sign(t, "p", 10, 1)[:64],
		"empty":             nil,
		"garbage":           make([]byte, crypto.SignatureLength),
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, sig)
			require.ErrorIs(t, err, rewards.ErrInvalidSignature)
			require.Equal(t, rewards.CodeInvalidSignature, rewards.ErrorCode(err))
		})
	}
	last, err := f.engine.LastClaimedEpoch("p")
	require.NoError(t, err)
	require.Zero(t, last)
}

func TestClaimSignatureBoundToLedger(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 1))
	sig := f.sign(t, "p", 10, 1)

	f.engine.SetLedgerAddress([20]byte{0x99})
	_, err := f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, sig)
	require.ErrorIs(t, err, rewards.ErrInvalidSignature)
}

func TestClaimInputValidation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 1))

	_, err := f.engine.Claim(common.Direct(claimant), " ", big.NewInt(10), 1, nil)
	require.ErrorIs(t, err, rewards.ErrInvalidParticipant)
	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(0), 1, nil)
	require.ErrorIs(t, err, rewards.ErrInvalidAmount)
	_, err = f.engine.Claim(common.Direct(claimant), "p", new(big.Int).Lsh(big.NewInt(1), 256), 1, nil)
	require.ErrorIs(t, err, rewards.ErrOverflow)

	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(200_000), 1, f.sign(t, "p", 200_000, 1))
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
	last, err := f.engine.LastClaimedEpoch("p")
	require.NoError(t, err)
	require.Zero(t, last, "failed payout must roll back the claim marker")
}

func TestTrustedSignerRotation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 1))
	oldSig := f.sign(t, "p", 10, 1)

	next, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	nextAddr := next.PubKey().Address().Array()
	require.ErrorIs(t, f.engine.SetTrustedSigner(common.Direct(claimant), nextAddr), common.ErrMissingRole)
	require.ErrorIs(t, f.engine.SetTrustedSigner(common.Direct(admin), [20]byte{}), rewards.ErrInvalidAddress)
	require.NoError(t, f.engine.SetTrustedSigner(common.Direct(admin), nextAddr))
	require.ErrorIs(t, f.engine.SetTrustedSigner(common.Direct(admin), nextAddr), rewards.ErrInvalidAddress)
	require.Len(t, f.recorder.OfType(events.TypeRewardSignerUpdated), 1)

	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, oldSig)
	require.ErrorIs(t, err, rewards.ErrInvalidSignature)

	sig, err := crypto.SignDigest(next, f.engine.Digest("p", big.NewInt(10), 1))
	require.NoError(t, err)
	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, sig)
	require.NoError(t, err)

	got, err := f.engine.TrustedSigner()
	require.NoError(t, err)
	require.Equal(t, nextAddr, got)
}

func TestPauseBlocksClaims(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 1))
	require.ErrorIs(t, f.engine.Pause(common.Direct(claimant)), common.ErrMissingRole)
	require.NoError(t, f.engine.Pause(common.Direct(admin)))
	require.True(t, f.engine.Paused())

	_, err := f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, f.sign(t, "p", 10, 1))
	require.ErrorIs(t, err, common.ErrModulePaused)
	require.Equal(t, rewards.CodePaused, rewards.ErrorCode(err))

	require.NoError(t, f.engine.Unpause(common.Direct(admin)))
	_, err = f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, f.sign(t, "p", 10, 1))
	require.NoError(t, err)
}

type reentrantToken struct {
	inner   common.Token
	reenter func() error
	seen    []error
}

func (r *reentrantToken) TransferIn(from [20]byte, amount *big.Int) error {
	return r.inner.TransferIn(from, amount)
}

func (r *reentrantToken) TransferOut(to [20]byte, amount *big.Int) error {
	if r.reenter != nil {
		r.seen = append(r.seen, r.reenter())
	}
	return r.inner.TransferOut(to, amount)
}

func TestReentrantClaimIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.AdvanceEpoch(common.Direct(admin), 1))
	sig := f.sign(t, "p", 10, 1)
	otherSig := f.sign(t, "q", 10, 1)

	token := &reentrantToken{inner: f.ledger}
	token.reenter = func() error {
		_, err := f.engine.Claim(common.Direct(claimant), "q", big.NewInt(10), 1, otherSig)
		return err
	}
	f.engine.SetToken(token)

	_, err := f.engine.Claim(common.Direct(claimant), "p", big.NewInt(10), 1, sig)
	require.NoError(t, err)
	require.Len(t, token.seen, 1)
	require.ErrorIs(t, token.seen[0], common.ErrReentrant)

	last, err := f.engine.LastClaimedEpoch("q")
	require.NoError(t, err)
	require.Zero(t, last)
}

func TestDigestIsCanonical(t *testing.T) {
	msg := rewards.ClaimMessage{Ledger: [20]byte{0x01}, Participant: " p ", Amount: big.NewInt(5), Epoch: 2}
	require.Equal(t, msg.Hash(), rewards.ClaimMessage{Ledger: [20]byte{0x01}, Participant: "p", Amount: big.NewInt(5), Epoch: 2}.Hash())
	require.NotEqual(t, msg.Hash(), rewards.ClaimMessage{Ledger: [20]byte{0x02}, Participant: "p", Amount: big.NewInt(5), Epoch: 2}.Hash())
	require.Len(t, msg.Hash(), 32)
}
