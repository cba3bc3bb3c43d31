package crypto

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of a recoverable [R || S || V] signature.
const SignatureLength = 65

var errInvalidDigest = errors.New("crypto: digest must be 32 bytes")

// RecoverSigner returns the address that produced sig over digest. Any
// malformed input, including a high-s signature, yields ok=false so callers
// cannot tell a malformed signature apart from a wrong signer.
func RecoverSigner(digest, sig []byte) (addr [20]byte, ok bool) {
	if len(digest) != 32 || len(sig) != SignatureLength {
		return addr, false
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	v := normalized[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return addr, false
	}
	normalized[64] = v
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !ethcrypto.ValidateSignatureValues(v, r, s, true) {
		return addr, false
	}
	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil || pub == nil {
		return addr, false
	}
	return ethcrypto.PubkeyToAddress(*pub), true
}

// Verifier matches recovered signers against a single trusted identity.
type Verifier struct {
	trusted [20]byte
}

// NewVerifier binds a verifier to the trusted signer address.
func NewVerifier(trusted [20]byte) Verifier {
	return Verifier{trusted: trusted}
}

// Trusted returns the configured signer.
func (v Verifier) Trusted() [20]byte { return v.trusted }

// Verify reports whether sig over digest was produced by the trusted signer.
// An unset trusted signer never matches.
func (v Verifier) Verify(digest, sig []byte) bool {
	if v.trusted == ([20]byte{}) {
		return false
	}
	recovered, ok := RecoverSigner(digest, sig)
	return ok && recovered == v.trusted
}

// SignDigest produces a 65 byte recoverable signature with V in {27, 28}.
func SignDigest(key *PrivateKey, digest []byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	if len(digest) != 32 {
		return nil, errInvalidDigest
	}
	sig, err := ethcrypto.Sign(digest, key.PrivateKey)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
