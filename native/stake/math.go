package stake

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var hundred = uint256.NewInt(percentTotal)

// toUint256 converts a caller supplied amount, rejecting negative values and
// anything wider than 256 bits.
func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: amount exceeds 256 bits", ErrOverflow)
	}
	return out, nil
}

// percentOf returns floor(amount * pct / 100).
func percentOf(amount *uint256.Int, pct uint8) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(uint64(pct)))
	if overflow {
		return nil, fmt.Errorf("%w: percentage split", ErrOverflow)
	}
	return product.Div(product, hundred), nil
}

// checkedAdd returns a+b, failing when the sum leaves the 256-bit range.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	x, err := toUint256(cloneBigInt(a))
	if err != nil {
		return nil, err
	}
	y, err := toUint256(cloneBigInt(b))
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: pool counter", ErrOverflow)
	}
	return sum.ToBig(), nil
}

// unlockAt returns base+duration bounded by MaxTimestamp.
func unlockAt(base, duration uint64) (uint64, error) {
	if base > MaxTimestamp || duration > MaxTimestamp-base {
		return 0, fmt.Errorf("%w: unlock time exceeds %d", ErrOverflow, MaxTimestamp)
	}
	return base + duration, nil
}
