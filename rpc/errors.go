package rpc

import (
	"encoding/json"
	"net/http"

	"stakevault/native/rewards"
	"stakevault/native/stake"
)

// Transport level error codes. Ledger rejections use the codes exported by
// the stake and rewards packages.
const (
	codeInvalidRequest  = "InvalidRequest"
	codeUnauthenticated = "Unauthenticated"
	codeRateLimited     = "RateLimited"
	codeNotFound        = "NotFound"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

var statusByCode = map[string]int{
	codeInvalidRequest:           http.StatusBadRequest,
	stake.CodeConfigInvalid:      http.StatusBadRequest,
	stake.CodeInvalidAmount:      http.StatusBadRequest,
	stake.CodeInvalidAddress:     http.StatusBadRequest,
	stake.CodeInvalidParticipant: http.StatusBadRequest,
	stake.CodeOverflow:           http.StatusBadRequest,
	rewards.CodeInvalidEpoch:     http.StatusBadRequest,
	codeUnauthenticated:          http.StatusUnauthorized,
	stake.CodeUnauthorized:       http.StatusForbidden,
	rewards.CodeInvalidSignature: http.StatusForbidden,
	codeNotFound:                 http.StatusNotFound,
	stake.CodeAlreadyWithdrawn:   http.StatusConflict,
	stake.CodeNothingToSweep:     http.StatusConflict,
	stake.CodeInsufficientFunds:  http.StatusConflict,
	stake.CodeReentrant:          http.StatusConflict,
	rewards.CodeAlreadyClaimed:   http.StatusConflict,
	rewards.CodeEpochExpired:     http.StatusConflict,
	rewards.CodeEpochAlreadySet:  http.StatusConflict,
	stake.CodePaused:             http.StatusLocked,
	stake.CodeNothingClaimable:   http.StatusTooEarly,
	codeRateLimited:              http.StatusTooManyRequests,
}

// statusForCode maps a stable error code onto the HTTP status returned to
// clients. Unknown codes are internal failures.
func statusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ledgerErrorCode resolves err against both ledgers' code tables.
func ledgerErrorCode(err error) string {
	if code := stake.ErrorCode(err); code != stake.CodeInternal {
		return code
	}
	return rewards.ErrorCode(err)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code, message string) {
	writeJSON(w, statusForCode(code), errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}
