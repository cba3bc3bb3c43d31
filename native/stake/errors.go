package stake

import (
	"errors"

	"stakevault/native/common"
)

var (
	ErrConfigInvalid      = errors.New("stake: invalid vesting config")
	ErrNotFound           = errors.New("stake: stake not found")
	ErrUnauthorized       = errors.New("stake: caller is not the stake owner")
	ErrAlreadyWithdrawn   = errors.New("stake: stake already fully withdrawn")
	ErrNothingClaimable   = errors.New("stake: nothing claimable yet")
	ErrInvalidAmount      = errors.New("stake: amount must be positive")
	ErrInvalidAddress     = errors.New("stake: address must not be zero")
	ErrInvalidParticipant = errors.New("stake: participant id required")
	ErrNothingToSweep     = errors.New("stake: no accrued pool balance to sweep")
	ErrOverflow           = errors.New("stake: arithmetic overflow")
	ErrNilState           = errors.New("stake: state not configured")
	ErrTokenNotConfigured = errors.New("stake: token not configured")
)

// Stable error codes returned to callers across the transport boundary.
const (
	CodeConfigInvalid      = "ConfigInvalid"
	CodeNotFound           = "NotFound"
	CodeUnauthorized       = "Unauthorized"
	CodeAlreadyWithdrawn   = "AlreadyWithdrawn"
	CodeNothingClaimable   = "NothingClaimable"
	CodePaused             = "Paused"
	CodeReentrant          = "Reentrant"
	CodeInvalidAmount      = "InvalidAmount"
	CodeInvalidAddress     = "InvalidAddress"
	CodeInvalidParticipant = "InvalidParticipant"
	CodeNothingToSweep     = "NothingToSweep"
	CodeOverflow           = "Overflow"
	CodeInsufficientFunds  = "InsufficientFunds"
	CodeInternal           = "Internal"
)

var codeTable = []struct {
	err  error
	code string
}{
	{ErrConfigInvalid, CodeConfigInvalid},
	{ErrNotFound, CodeNotFound},
	{ErrUnauthorized, CodeUnauthorized},
	{common.ErrMissingRole, CodeUnauthorized},
	{ErrAlreadyWithdrawn, CodeAlreadyWithdrawn},
	{ErrNothingClaimable, CodeNothingClaimable},
	{common.ErrModulePaused, CodePaused},
	{common.ErrReentrant, CodeReentrant},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidAddress, CodeInvalidAddress},
	{ErrInvalidParticipant, CodeInvalidParticipant},
	{ErrNothingToSweep, CodeNothingToSweep},
	{ErrOverflow, CodeOverflow},
	{common.ErrInsufficientFunds, CodeInsufficientFunds},
}

// ErrorCode maps an error produced by the engine to its stable code. Unknown
// errors map to CodeInternal and nil maps to the empty string.
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
