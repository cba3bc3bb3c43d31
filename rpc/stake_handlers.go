package rpc

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stakevault/native/stake"
)

type depositResult struct {
	Recorded bool       `json:"recorded"`
	Stake    *StakeView `json:"stake,omitempty"`
}

type withdrawResult struct {
	StakeID uint64 `json:"stakeId"`
	Amount  string `json:"amount"`
	Status  string `json:"status"`
}

type stakesPage struct {
	Participant string       `json:"participant"`
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Stakes      []*StakeView `json:"stakes"`
}

type claimableResult struct {
	StakeID uint64 `json:"stakeId"`
	Phase   string `json:"phase"`
	Amount  string `json:"amount"`
	Next    string `json:"next"`
}

type configResult struct {
	Configured bool        `json:"configured"`
	Config     *ConfigView `json:"config,omitempty"`
	Paused     bool        `json:"paused"`
}

func (s *Server) handleStakeDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	caller, _ := CallerFromContext(r.Context())
	var record *stake.Stake
	err = s.call(r.Context(), stake.ModuleName, "deposit", true, func() error {
		var callErr error
		record, callErr = s.stake.Deposit(caller.Context(), req.Participant, amount)
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, depositResult{Recorded: record != nil, Stake: newStakeView(record)})
}

func (s *Server) handleStakeWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	caller, _ := CallerFromContext(r.Context())
	var result *stake.Withdrawal
	err := s.call(r.Context(), stake.ModuleName, "withdraw", true, func() error {
		var callErr error
		result, callErr = s.stake.Withdraw(caller.Context(), req.StakeID)
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResult{
		StakeID: result.StakeID,
		Amount:  formatAmount(result.Amount),
		Status:  result.Status.String(),
	})
}

func (s *Server) handleStakePrizePool(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	caller, _ := CallerFromContext(r.Context())
	var (
		pools   *stake.Pools
		funding [20]byte
	)
	err = s.call(r.Context(), stake.ModuleName, "depositPrizePool", true, func() error {
		var callErr error
		if pools, callErr = s.stake.DepositPrizePool(caller.Context(), amount); callErr != nil {
			return callErr
		}
		funding, callErr = s.stake.RewardsFundingAddress()
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolsView(pools, funding))
}

func (s *Server) handleStakeGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, codeInvalidRequest, "invalid stake id")
		return
	}
	var record *stake.Stake
	err = s.call(r.Context(), stake.ModuleName, "getStake", false, func() error {
		var callErr error
		record, callErr = s.stake.GetStake(id)
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStakeView(record))
}

func (s *Server) handleStakeClaimable(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, codeInvalidRequest, "invalid stake id")
		return
	}
	var preview *stake.Claimable
	err = s.call(r.Context(), stake.ModuleName, "claimable", false, func() error {
		var callErr error
		preview, callErr = s.stake.Claimable(id, s.now())
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	amount := preview.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	writeJSON(w, http.StatusOK, claimableResult{
		StakeID: preview.StakeID,
		Phase:   preview.Phase.String(),
		Amount:  amount.String(),
		Next:    preview.Next.String(),
	})
}

func (s *Server) handleStakesOf(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePage(r)
	if err != nil {
		writeError(w, r, codeInvalidRequest, err.Error())
		return
	}
	participant := chi.URLParam(r, "participant")
	var (
		records []*stake.Stake
		total   uint64
	)
	err = s.call(r.Context(), stake.ModuleName, "stakesOf", false, func() error {
		var callErr error
		records, total, callErr = s.stake.StakesOf(participant, offset, limit)
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	page := stakesPage{
		Participant: participant,
		Offset:      offset,
		Limit:       limit,
		Total:       total,
		Stakes:      make([]*StakeView, 0, len(records)),
	}
	for _, record := range records {
		page.Stakes = append(page.Stakes, newStakeView(record))
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleStakeConfig(w http.ResponseWriter, r *http.Request) {
	var result configResult
	err := s.call(r.Context(), stake.ModuleName, "config", false, func() error {
		cfg, ok, callErr := s.stake.Config()
		if callErr != nil {
			return callErr
		}
		result.Configured = ok
		if ok {
			view := newConfigView(cfg)
			result.Config = &view
		}
		result.Paused = s.stake.Paused()
		return nil
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStakePools(w http.ResponseWriter, r *http.Request) {
	var (
		pools   *stake.Pools
		funding [20]byte
	)
	err := s.call(r.Context(), stake.ModuleName, "pools", false, func() error {
		var callErr error
		if pools, callErr = s.stake.Pools(); callErr != nil {
			return callErr
		}
		funding, callErr = s.stake.RewardsFundingAddress()
		return callErr
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolsView(pools, funding))
}
