package stake

import (
	"fmt"
	"math"
	"math/big"

	"stakevault/core/events"
)

// MaxTimestamp is the largest unlock time a stake may carry. Timestamps are
// unix seconds bounded to the unsigned 32-bit range (February 2106).
const MaxTimestamp uint64 = math.MaxUint32

// percentTotal is the exact sum required across the four configured splits.
const percentTotal = 100

// Status captures the withdrawal progress of a stake.
type Status uint8

const (
	// StatusActive marks a stake with nothing withdrawn yet.
	StatusActive Status = iota
	// StatusD1Claimed marks a stake whose first tier has been released.
	StatusD1Claimed
	// StatusCompleted marks a fully released stake. It is terminal.
	StatusCompleted
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusD1Claimed, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusD1Claimed:
		return "d1Claimed"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Phase classifies a point in time against the two unlock timestamps.
type Phase uint8

const (
	PhaseBeforeD1 Phase = iota
	PhaseAfterD1
	PhaseAfterD2
)

func (p Phase) String() string {
	switch p {
	case PhaseBeforeD1:
		return "before-d1"
	case PhaseAfterD1:
		return "after-d1"
	case PhaseAfterD2:
		return "after-d2"
	default:
		return "unknown"
	}
}

// Config holds the vesting schedule and the percentage split applied to
// every deposit. Durations are in seconds.
type Config struct {
	D1Duration uint64
	D2Duration uint64
	Fees       uint8
	PrizePool  uint8
	D1Share    uint8
	D2Share    uint8
}

// Validate enforces the percentage sum and duration ordering invariants.
func (c Config) Validate() error {
	sum := int(c.Fees) + int(c.PrizePool) + int(c.D1Share) + int(c.D2Share)
	if sum != percentTotal {
		return fmt.Errorf("%w: percentages sum to %d, want %d", ErrConfigInvalid, sum, percentTotal)
	}
	if c.D1Duration == 0 {
		return fmt.Errorf("%w: d1 duration must be positive", ErrConfigInvalid)
	}
	if c.D1Duration >= c.D2Duration {
		return fmt.Errorf("%w: d1 duration must be shorter than d2 duration", ErrConfigInvalid)
	}
	if c.D2Duration > MaxTimestamp {
		return fmt.Errorf("%w: d2 duration exceeds the timestamp range", ErrConfigInvalid)
	}
	return nil
}

// Terms converts the config into its event payload form.
func (c Config) Terms() events.VestingTerms {
	return events.VestingTerms{
		D1Duration: c.D1Duration,
		D2Duration: c.D2Duration,
		Fees:       c.Fees,
		PrizePool:  c.PrizePool,
		D1Share:    c.D1Share,
		D2Share:    c.D2Share,
	}
}

// Stake is a permanent deposit receipt. Only Status changes after creation.
type Stake struct {
	ID          uint64
	Owner       [20]byte
	Participant string
	Amount      *big.Int
	D1Amount    *big.Int
	D2Amount    *big.Int
	CreatedAt   uint64
	D1At        uint64
	D2At        uint64
	Status      Status
}

// Clone returns a deep copy of the stake to avoid mutating shared pointers.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	out := *s
	out.Amount = cloneBigInt(s.Amount)
	out.D1Amount = cloneBigInt(s.D1Amount)
	out.D2Amount = cloneBigInt(s.D2Amount)
	return &out
}

// PhaseAt classifies now against the stake's unlock timestamps.
func (s *Stake) PhaseAt(now uint64) Phase {
	switch {
	case now >= s.D2At:
		return PhaseAfterD2
	case now >= s.D1At:
		return PhaseAfterD1
	default:
		return PhaseBeforeD1
	}
}

// Release applies the withdrawal transition table for the given phase and
// returns the amount to pay out together with the resulting status.
func (s *Stake) Release(phase Phase) (*big.Int, Status, error) {
	if s.Status == StatusCompleted {
		return nil, s.Status, ErrAlreadyWithdrawn
	}
	switch phase {
	case PhaseAfterD1:
		if s.Status == StatusActive {
			return cloneBigInt(s.D1Amount), StatusD1Claimed, nil
		}
		return nil, s.Status, ErrNothingClaimable
	case PhaseAfterD2:
		if s.Status == StatusActive {
			return new(big.Int).Add(cloneBigInt(s.D1Amount), cloneBigInt(s.D2Amount)), StatusCompleted, nil
		}
		return cloneBigInt(s.D2Amount), StatusCompleted, nil
	default:
		return nil, s.Status, ErrNothingClaimable
	}
}

// Pools tracks the pooled accounting buckets.
type Pools struct {
	FeesAccrued        *big.Int
	PrizePoolAccrued   *big.Int
	PrizePoolDeposited *big.Int
}

// Clone returns a deep copy with nil counters normalised to zero.
func (p *Pools) Clone() *Pools {
	if p == nil {
		return &Pools{FeesAccrued: big.NewInt(0), PrizePoolAccrued: big.NewInt(0), PrizePoolDeposited: big.NewInt(0)}
	}
	return &Pools{
		FeesAccrued:        cloneBigInt(p.FeesAccrued),
		PrizePoolAccrued:   cloneBigInt(p.PrizePoolAccrued),
		PrizePoolDeposited: cloneBigInt(p.PrizePoolDeposited),
	}
}

// Accrued returns feesAccrued + prizePoolAccrued.
func (p *Pools) Accrued() *big.Int {
	c := p.Clone()
	return new(big.Int).Add(c.FeesAccrued, c.PrizePoolAccrued)
}

// Total returns the sum of all three counters.
func (p *Pools) Total() *big.Int {
	c := p.Clone()
	return new(big.Int).Add(p.Accrued(), c.PrizePoolDeposited)
}

// Claimable previews what a withdraw would release at a given time.
type Claimable struct {
	StakeID uint64
	Phase   Phase
	Amount  *big.Int
	Next    Status
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
