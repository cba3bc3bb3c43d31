package rewards

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ClaimDomainV1 prefixes every reward claim digest.
const ClaimDomainV1 = "STAKEVAULT_REWARD_CLAIM_V1"

// ClaimMessage is the payload the trusted signer attests to. Binding the
// ledger address stops a signature issued for one deployment from being
// replayed against another.
type ClaimMessage struct {
	Ledger      [20]byte
	Participant string
	Amount      *big.Int
	Epoch       uint64
}

// Hash reconstructs the canonical digest signed by the trusted signer.
func (m ClaimMessage) Hash() []byte {
	amountStr := "0"
	if m.Amount != nil {
		amountStr = m.Amount.String()
	}
	payload := fmt.Sprintf("%s|ledger=%s|participant=%s|amount=%s|epoch=%d",
		ClaimDomainV1,
		hex.EncodeToString(m.Ledger[:]),
		strings.TrimSpace(m.Participant),
		amountStr,
		m.Epoch,
	)
	return ethcrypto.Keccak256([]byte(payload))
}
