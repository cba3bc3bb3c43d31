package events

import (
	"math/big"
	"strconv"

	"stakevault/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func zeroAddress(addr [20]byte) bool { return addr == [20]byte{} }

func formatAddress(addr [20]byte) string {
	if zeroAddress(addr) {
		return ""
	}
	return crypto.MustNewAddress(crypto.AccountPrefix, addr[:]).String()
}
