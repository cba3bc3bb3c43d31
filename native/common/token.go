package common

import (
	"errors"
	"math/big"
)

// ErrInsufficientFunds is returned by token implementations when a transfer
// exceeds the available balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Token moves the ledger's single asset between accounts and a ledger's
// custody. Implementations may call back into the ledger; such callbacks are
// rejected by the ledger's Lock.
type Token interface {
	// TransferIn pulls amount from the given account into custody.
	TransferIn(from [20]byte, amount *big.Int) error
	// TransferOut pays amount from custody to the given account.
	TransferOut(to [20]byte, amount *big.Int) error
}
