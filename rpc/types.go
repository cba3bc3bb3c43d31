package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"stakevault/crypto"
	"stakevault/native/stake"
)

type amountRequest struct {
	Amount string `json:"amount"`
}

type depositRequest struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
}

type withdrawRequest struct {
	StakeID uint64 `json:"stakeId"`
}

type claimRequest struct {
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
	Epoch       uint64 `json:"epoch"`
	Signature   string `json:"signature"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type epochRequest struct {
	Epoch uint64 `json:"epoch"`
}

// StakeView is the JSON rendering of a stake record.
type StakeView struct {
	ID          uint64 `json:"id"`
	Owner       string `json:"owner"`
	Participant string `json:"participant"`
	Amount      string `json:"amount"`
	D1Amount    string `json:"d1Amount"`
	D2Amount    string `json:"d2Amount"`
	CreatedAt   uint64 `json:"createdAt"`
	D1At        uint64 `json:"d1At"`
	D2At        uint64 `json:"d2At"`
	Status      string `json:"status"`
}

func newStakeView(record *stake.Stake) *StakeView {
	if record == nil {
		return nil
	}
	return &StakeView{
		ID:          record.ID,
		Owner:       crypto.FormatAddress(record.Owner),
		Participant: record.Participant,
		Amount:      formatAmount(record.Amount),
		D1Amount:    formatAmount(record.D1Amount),
		D2Amount:    formatAmount(record.D2Amount),
		CreatedAt:   record.CreatedAt,
		D1At:        record.D1At,
		D2At:        record.D2At,
		Status:      record.Status.String(),
	}
}

// ConfigView renders the vesting schedule. Durations are seconds.
type ConfigView struct {
	D1Duration uint64 `json:"d1Duration"`
	D2Duration uint64 `json:"d2Duration"`
	Fees       uint8  `json:"fees"`
	PrizePool  uint8  `json:"prizePool"`
	D1Share    uint8  `json:"d1Share"`
	D2Share    uint8  `json:"d2Share"`
}

func newConfigView(cfg stake.Config) ConfigView {
	return ConfigView{
		D1Duration: cfg.D1Duration,
		D2Duration: cfg.D2Duration,
		Fees:       cfg.Fees,
		PrizePool:  cfg.PrizePool,
		D1Share:    cfg.D1Share,
		D2Share:    cfg.D2Share,
	}
}

func (v ConfigView) config() stake.Config {
	return stake.Config{
		D1Duration: v.D1Duration,
		D2Duration: v.D2Duration,
		Fees:       v.Fees,
		PrizePool:  v.PrizePool,
		D1Share:    v.D1Share,
		D2Share:    v.D2Share,
	}
}

// PoolsView renders the pooled balances.
type PoolsView struct {
	FeesAccrued        string `json:"feesAccrued"`
	PrizePoolAccrued   string `json:"prizePoolAccrued"`
	PrizePoolDeposited string `json:"prizePoolDeposited"`
	FundingAddress     string `json:"fundingAddress,omitempty"`
}

func newPoolsView(pools *stake.Pools, funding [20]byte) PoolsView {
	pools = pools.Clone()
	view := PoolsView{
		FeesAccrued:        formatAmount(pools.FeesAccrued),
		PrizePoolAccrued:   formatAmount(pools.PrizePoolAccrued),
		PrizePoolDeposited: formatAmount(pools.PrizePoolDeposited),
	}
	if funding != ([20]byte{}) {
		view.FundingAddress = crypto.FormatAddress(funding)
	}
	return view
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

var errInvalidAmountFormat = errors.New("amount must be a base-10 integer string")

// parseAmount accepts any base-10 integer; sign and range checks belong to
// the ledgers.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errInvalidAmountFormat
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errInvalidAmountFormat
	}
	return value, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

func parseUintParam(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}

func parsePage(r *http.Request) (uint64, uint64, error) {
	query := r.URL.Query()
	var offset, limit uint64 = 0, defaultPageLimit
	if raw := query.Get("offset"); raw != "" {
		value, err := parseUintParam(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid offset")
		}
		offset = value
	}
	if raw := query.Get("limit"); raw != "" {
		value, err := parseUintParam(raw)
		if err != nil || value == 0 {
			return 0, 0, fmt.Errorf("invalid limit")
		}
		limit = value
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit, nil
}
