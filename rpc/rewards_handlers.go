package rpc

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stakevault/crypto"
	"stakevault/native/rewards"
)

type claimResult struct {
	Participant string `json:"participant"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Epoch       uint64 `json:"epoch"`
}

type epochResult struct {
	CurrentEpoch  uint64 `json:"currentEpoch"`
	TrustedSigner string `json:"trustedSigner,omitempty"`
	LedgerAddress string `json:"ledgerAddress"`
	Paused        bool   `json:"paused"`
}

type participantResult struct {
	Participant      string `json:"participant"`
	LastClaimedEpoch uint64 `json:"lastClaimedEpoch"`
	CurrentEpoch     uint64 `json:"currentEpoch"`
	Claimed          bool   `json:"claimedCurrentEpoch"`
}

func decodeSignature(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not hex", rewards.ErrInvalidSignature)
	}
	return sig, nil
}

func (s *Server) handleRewardsClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	sig, err := decodeSignature(req.Signature)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	caller, _ := CallerFromContext(r.Context())
	var claim *rewards.Claim
	err = s.call(r.Context(), rewards.ModuleName, "claim", true, func() error {
		var callErr error
		claim, callErr = s.rewards.Claim(caller.Context(), req.Participant, amount, req.Epoch, sig)
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResult{
		Participant: claim.Participant,
		Recipient:   crypto.FormatAddress(claim.Recipient),
		Amount:      formatAmount(claim.Amount),
		Epoch:       claim.Epoch,
	})
}

func (s *Server) handleRewardsEpoch(w http.ResponseWriter, r *http.Request) {
	var result epochResult
	err := s.call(r.Context(), rewards.ModuleName, "epoch", false, func() error {
		epoch, callErr := s.rewards.CurrentEpoch()
		if callErr != nil {
			return callErr
		}
		signer, callErr := s.rewards.TrustedSigner()
		if callErr != nil {
			return callErr
		}
		result.CurrentEpoch = epoch
		if signer != ([20]byte{}) {
			result.TrustedSigner = crypto.FormatAddress(signer)
		}
		result.LedgerAddress = crypto.FormatAddress(s.rewards.LedgerAddress())
		result.Paused = s.rewards.Paused()
		return nil
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRewardsParticipant(w http.ResponseWriter, r *http.Request) {
	participant := strings.TrimSpace(chi.URLParam(r, "participant"))
	var result participantResult
	err := s.call(r.Context(), rewards.ModuleName, "participant", false, func() error {
		last, callErr := s.rewards.LastClaimedEpoch(participant)
		if callErr != nil {
			return callErr
		}
		current, callErr := s.rewards.CurrentEpoch()
		if callErr != nil {
			return callErr
		}
		result = participantResult{
			Participant:      participant,
			LastClaimedEpoch: last,
			CurrentEpoch:     current,
			Claimed:          current != 0 && last == current,
		}
		return nil
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
