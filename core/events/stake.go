package events

import (
	"math/big"
	"strconv"
	"strings"

	"stakevault/core/types"
)

const (
	// TypeStakeCreated is emitted when a deposit records a new vesting stake.
	TypeStakeCreated = "stake.created"
	// TypeStakeWithdrawn captures a vested release and the resulting status.
	TypeStakeWithdrawn = "stake.withdrawn"
	// TypeStakeConfigUpdated records a vesting configuration change.
	TypeStakeConfigUpdated = "stake.configUpdated"
	// TypeStakePoolsSwept is emitted when the pool buckets are moved to the
	// rewards funding address.
	TypeStakePoolsSwept = "stake.poolsSwept"
	// TypeStakePrizePoolFunded captures an external prize pool top-up.
	TypeStakePrizePoolFunded = "stake.prizePoolFunded"
	// TypeStakeFundingAddressUpdated records a rewards funding address rotation.
	TypeStakeFundingAddressUpdated = "stake.fundingAddressUpdated"
)

// StakeCreated captures a freshly recorded stake.
type StakeCreated struct {
	StakeID     uint64
	Owner       [20]byte
	Participant string
	Amount      *big.Int
	D1Amount    *big.Int
	D2Amount    *big.Int
	D1At        uint64
	D2At        uint64
}

// EventType satisfies the Event interface.
func (StakeCreated) EventType() string { return TypeStakeCreated }

// Event converts the structured payload into a broadcastable event.
func (e StakeCreated) Event() *types.Event {
	attrs := map[string]string{
		"stakeId":  formatUint(e.StakeID),
		"owner":    formatAddress(e.Owner),
		"amount":   formatAmount(e.Amount),
		"d1Amount": formatAmount(e.D1Amount),
		"d2Amount": formatAmount(e.D2Amount),
		"d1At":     formatUint(e.D1At),
		"d2At":     formatUint(e.D2At),
	}
	if participant := strings.TrimSpace(e.Participant); participant != "" {
		attrs["participant"] = participant
	}
	return &types.Event{Type: TypeStakeCreated, Attributes: attrs}
}

// StakeWithdrawn captures a release from a stake.
type StakeWithdrawn struct {
	StakeID uint64
	Owner   [20]byte
	Amount  *big.Int
	Status  string
}

// EventType satisfies the Event interface.
func (StakeWithdrawn) EventType() string { return TypeStakeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e StakeWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeStakeWithdrawn, Attributes: map[string]string{
		"stakeId": formatUint(e.StakeID),
		"owner":   formatAddress(e.Owner),
		"amount":  formatAmount(e.Amount),
		"status":  e.Status,
	}}
}

// VestingTerms mirrors the vesting configuration for event payloads.
type VestingTerms struct {
	D1Duration uint64
	D2Duration uint64
	Fees       uint8
	PrizePool  uint8
	D1Share    uint8
	D2Share    uint8
}

func (t VestingTerms) attributes(prefix string, attrs map[string]string) {
	attrs[prefix+"D1Duration"] = formatUint(t.D1Duration)
	attrs[prefix+"D2Duration"] = formatUint(t.D2Duration)
	attrs[prefix+"Fees"] = strconv.Itoa(int(t.Fees))
	attrs[prefix+"PrizePool"] = strconv.Itoa(int(t.PrizePool))
	attrs[prefix+"D1Share"] = strconv.Itoa(int(t.D1Share))
	attrs[prefix+"D2Share"] = strconv.Itoa(int(t.D2Share))
}

// StakeConfigUpdated records the previous and the new vesting terms.
type StakeConfigUpdated struct {
	Old VestingTerms
	New VestingTerms
}

// EventType satisfies the Event interface.
func (StakeConfigUpdated) EventType() string { return TypeStakeConfigUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StakeConfigUpdated) Event() *types.Event {
	attrs := make(map[string]string, 12)
	e.Old.attributes("old", attrs)
	e.New.attributes("new", attrs)
	return &types.Event{Type: TypeStakeConfigUpdated, Attributes: attrs}
}

// StakePoolsSwept captures the pool sweep totals.
type StakePoolsSwept struct {
	Destination        [20]byte
	Amount             *big.Int
	FeesAccrued        *big.Int
	PrizePoolAccrued   *big.Int
	PrizePoolDeposited *big.Int
}

// EventType satisfies the Event interface.
func (StakePoolsSwept) EventType() string { return TypeStakePoolsSwept }

// Event converts the structured payload into a broadcastable event.
func (e StakePoolsSwept) Event() *types.Event {
	return &types.Event{Type: TypeStakePoolsSwept, Attributes: map[string]string{
		"destination":        formatAddress(e.Destination),
		"amount":             formatAmount(e.Amount),
		"feesAccrued":        formatAmount(e.FeesAccrued),
		"prizePoolAccrued":   formatAmount(e.PrizePoolAccrued),
		"prizePoolDeposited": formatAmount(e.PrizePoolDeposited),
	}}
}

// StakePrizePoolFunded captures an external top-up of the prize pool.
type StakePrizePoolFunded struct {
	Funder [20]byte
	Amount *big.Int
	Total  *big.Int
}

// EventType satisfies the Event interface.
func (StakePrizePoolFunded) EventType() string { return TypeStakePrizePoolFunded }

// Event converts the structured payload into a broadcastable event.
func (e StakePrizePoolFunded) Event() *types.Event {
	return &types.Event{Type: TypeStakePrizePoolFunded, Attributes: map[string]string{
		"funder": formatAddress(e.Funder),
		"amount": formatAmount(e.Amount),
		"total":  formatAmount(e.Total),
	}}
}

// StakeFundingAddressUpdated records a rotation of the sweep destination.
type StakeFundingAddressUpdated struct {
	Old [20]byte
	New [20]byte
}

// EventType satisfies the Event interface.
func (StakeFundingAddressUpdated) EventType() string { return TypeStakeFundingAddressUpdated }

// Event converts the structured payload into a broadcastable event.
func (e StakeFundingAddressUpdated) Event() *types.Event {
	attrs := map[string]string{"new": formatAddress(e.New)}
	if !zeroAddress(e.Old) {
		attrs["old"] = formatAddress(e.Old)
	}
	return &types.Event{Type: TypeStakeFundingAddressUpdated, Attributes: attrs}
}
