package bank

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"stakevault/core/state"
	"stakevault/native/common"
	"stakevault/storage"
)

func newTestLedger(t *testing.T) (*Ledger, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger, err := NewLedger(mgr, "vlt", [20]byte{0xcc})
	require.NoError(t, err)
	return ledger, mgr
}

func TestLedgerTransfers(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := [20]byte{0x01}
	require.Equal(t, "VLT", ledger.Symbol())
	require.NoError(t, ledger.Credit(alice, big.NewInt(100)))

	require.NoError(t, ledger.TransferIn(alice, big.NewInt(60)))
	custody, err := ledger.BalanceOf(ledger.Custody())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(60), custody)

	err = ledger.TransferIn(alice, big.NewInt(41))
	require.True(t, errors.Is(err, common.ErrInsufficientFunds))

	require.NoError(t, ledger.TransferOut(alice, big.NewInt(10)))
	bal, err := ledger.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), bal)

	require.NoError(t, ledger.TransferOut(alice, big.NewInt(0)))
	require.Error(t, ledger.TransferOut(alice, big.NewInt(-1)))
	require.Error(t, ledger.Transfer(alice, alice, big.NewInt(1)))
}

func TestNewLedgerValidation(t *testing.T) {
	mgr := state.NewManager(storage.NewMemDB())
	_, err := NewLedger(nil, "VLT", [20]byte{1})
	require.Error(t, err)
	_, err = NewLedger(mgr, " ", [20]byte{1})
	require.Error(t, err)
	_, err = NewLedger(mgr, "VLT", [20]byte{})
	require.Error(t, err)
}
