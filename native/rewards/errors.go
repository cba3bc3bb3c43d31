package rewards

import (
	"errors"

	"stakevault/native/common"
)

var (
	ErrAlreadyClaimed     = errors.New("rewards: participant already claimed this epoch")
	ErrEpochExpired       = errors.New("rewards: epoch is not the current epoch")
	ErrInvalidSignature   = errors.New("rewards: signature does not match the trusted signer")
	ErrEpochAlreadySet    = errors.New("rewards: epoch was already activated")
	ErrInvalidEpoch       = errors.New("rewards: epoch must be non-zero")
	ErrInvalidParticipant = errors.New("rewards: participant id required")
	ErrInvalidAmount      = errors.New("rewards: amount must be positive")
	ErrInvalidAddress     = errors.New("rewards: address must not be zero")
	ErrOverflow           = errors.New("rewards: amount exceeds 256 bits")
	ErrNilState           = errors.New("rewards: state not configured")
	ErrTokenNotConfigured = errors.New("rewards: token not configured")
)

const (
	CodeAlreadyClaimed     = "AlreadyClaimed"
	CodeEpochExpired       = "EpochExpired"
	CodeInvalidSignature   = "InvalidSignature"
	CodeEpochAlreadySet    = "EpochAlreadySet"
	CodeInvalidEpoch       = "InvalidEpoch"
	CodeInvalidParticipant = "InvalidParticipant"
	CodeInvalidAmount      = "InvalidAmount"
	CodeInvalidAddress     = "InvalidAddress"
	CodeOverflow           = "Overflow"
	CodeUnauthorized       = "Unauthorized"
	CodePaused             = "Paused"
	CodeReentrant          = "Reentrant"
	CodeInsufficientFunds  = "InsufficientFunds"
	CodeInternal           = "Internal"
)

var codeTable = []struct {
	err  error
	code string
}{
	{ErrAlreadyClaimed, CodeAlreadyClaimed},
	{ErrEpochExpired, CodeEpochExpired},
	{ErrInvalidSignature, CodeInvalidSignature},
	{ErrEpochAlreadySet, CodeEpochAlreadySet},
	{ErrInvalidEpoch, CodeInvalidEpoch},
	{ErrInvalidParticipant, CodeInvalidParticipant},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidAddress, CodeInvalidAddress},
	{ErrOverflow, CodeOverflow},
	{common.ErrMissingRole, CodeUnauthorized},
	{common.ErrModulePaused, CodePaused},
	{common.ErrReentrant, CodeReentrant},
	{common.ErrInsufficientFunds, CodeInsufficientFunds},
}

// ErrorCode maps an error produced by the engine to its stable code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
