package rpc

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stakevault/crypto"
	"stakevault/native/common"
	"stakevault/native/rewards"
	"stakevault/native/stake"
)

type sweepResult struct {
	Destination string    `json:"destination"`
	Amount      string    `json:"amount"`
	Swept       PoolsView `json:"swept"`
}

type pauseResult struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleAdminSetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigView
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	caller, _ := CallerFromContext(r.Context())
	cfg := req.config()
	err := s.call(r.Context(), stake.ModuleName, "setConfig", true, func() error {
		return s.stake.SetConfig(caller.Context(), cfg)
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configResult{Configured: true, Config: &req})
}

func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var result *stake.Sweep
	err := s.call(r.Context(), stake.ModuleName, "sweepPools", true, func() error {
		var callErr error
		result, callErr = s.stake.SweepPools(caller.Context())
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResult{
		Destination: crypto.FormatAddress(result.Destination),
		Amount:      formatAmount(result.Amount),
		Swept:       newPoolsView(result.Pools, [20]byte{}),
	})
}

// parseAddressBody decodes {"address": ...}. Unparseable addresses are
// reported with the ledger's InvalidAddress code.
func (s *Server) parseAddressBody(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	var req addressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return [20]byte{}, false
	}
	addr, err := crypto.ParseAddress(req.Address)
	if err != nil {
		writeError(w, r, stake.CodeInvalidAddress, err.Error())
		return [20]byte{}, false
	}
	return addr, true
}

func (s *Server) handleAdminFundingAddress(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.parseAddressBody(w, r)
	if !ok {
		return
	}
	caller, _ := CallerFromContext(r.Context())
	err := s.call(r.Context(), stake.ModuleName, "setFundingAddress", true, func() error {
		return s.stake.SetRewardsFundingAddress(caller.Context(), addr)
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addressRequest{Address: crypto.FormatAddress(addr)})
}

func (s *Server) handleAdminSetSigner(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.parseAddressBody(w, r)
	if !ok {
		return
	}
	caller, _ := CallerFromContext(r.Context())
	err := s.call(r.Context(), rewards.ModuleName, "setTrustedSigner", true, func() error {
		return s.rewards.SetTrustedSigner(caller.Context(), addr)
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addressRequest{Address: crypto.FormatAddress(addr)})
}

func (s *Server) handleAdminAdvanceEpoch(w http.ResponseWriter, r *http.Request) {
	var req epochRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	caller, _ := CallerFromContext(r.Context())
	err := s.call(r.Context(), rewards.ModuleName, "advanceEpoch", true, func() error {
		return s.rewards.AdvanceEpoch(caller.Context(), req.Epoch)
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, epochRequest{Epoch: req.Epoch})
}

type pausable interface {
	Pause(common.Context) error
	Unpause(common.Context) error
	Paused() bool
}

func (s *Server) handleAdminPause(w http.ResponseWriter, r *http.Request) {
	module := strings.ToLower(chi.URLParam(r, "module"))
	action := strings.ToLower(chi.URLParam(r, "action"))
	var target pausable
	switch module {
	case stake.ModuleName:
		target = s.stake
	case rewards.ModuleName:
		target = s.rewards
	default:
		writeError(w, r, codeNotFound, "unknown module")
		return
	}
	if action != "pause" && action != "unpause" {
		writeError(w, r, codeNotFound, "unknown action")
		return
	}
	caller, _ := CallerFromContext(r.Context())
	var paused bool
	err := s.call(r.Context(), module, action, true, func() error {
		var callErr error
		if action == "pause" {
			callErr = target.Pause(caller.Context())
		} else {
			callErr = target.Unpause(caller.Context())
		}
		paused = target.Paused()
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pauseResult{Module: module, Paused: paused})
}
