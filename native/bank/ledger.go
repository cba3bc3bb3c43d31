package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"stakevault/native/common"
)

var (
	errNilStore     = errors.New("bank: balance store not configured")
	errNegative     = errors.New("bank: negative transfer amount")
	errEmptySymbol  = errors.New("bank: token symbol required")
	errZeroCustody  = errors.New("bank: custody address required")
	errSelfTransfer = errors.New("bank: sender and recipient are the same account")
)

// BalanceStore persists per-account balances keyed by token symbol.
type BalanceStore interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
}

// Ledger is a single-asset token whose custody account belongs to one ledger
// module. It implements common.Token.
type Ledger struct {
	store   BalanceStore
	symbol  string
	custody [20]byte
}

var _ common.Token = (*Ledger)(nil)

// NewLedger binds the token symbol to the custody account of a module.
func NewLedger(store BalanceStore, symbol string, custody [20]byte) (*Ledger, error) {
	if store == nil {
		return nil, errNilStore
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, errEmptySymbol
	}
	if custody == ([20]byte{}) {
		return nil, errZeroCustody
	}
	return &Ledger{store: store, symbol: normalized, custody: custody}, nil
}

// Symbol returns the normalised token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Custody returns the address holding the module's funds.
func (l *Ledger) Custody() [20]byte { return l.custody }

// TransferIn moves amount from the account into custody.
func (l *Ledger) TransferIn(from [20]byte, amount *big.Int) error {
	return l.Transfer(from, l.custody, amount)
}

// TransferOut moves amount from custody to the account.
func (l *Ledger) TransferOut(to [20]byte, amount *big.Int) error {
	return l.Transfer(l.custody, to, amount)
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return l.store.Balance(addr[:], l.symbol)
}

// Credit adds amount to addr. It is used to seed balances at bootstrap.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegative
	}
	current, err := l.store.Balance(addr[:], l.symbol)
	if err != nil {
		return err
	}
	return l.store.SetBalance(addr[:], l.symbol, new(big.Int).Add(current, amount))
}

// Transfer moves amount between two accounts. A zero amount is a no-op.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegative
	}
	if from == to {
		return errSelfTransfer
	}
	fromBal, err := l.store.Balance(from[:], l.symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %s balance %s below %s: %w", l.symbol, fromBal, amount, common.ErrInsufficientFunds)
	}
	toBal, err := l.store.Balance(to[:], l.symbol)
	if err != nil {
		return err
	}
	if err := l.store.SetBalance(from[:], l.symbol, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.store.SetBalance(to[:], l.symbol, new(big.Int).Add(toBal, amount))
}
