package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"stakevault/native/stake"
)

var (
	stakeConfigKey        = []byte("stake/config")
	stakePoolsKey         = []byte("stake/pools")
	stakeNextIDKey        = []byte("stake/next-id")
	stakeFundingKey       = []byte("stake/funding-address")
	stakeRecordPrefix     = []byte("stake/record/")
	stakeParticipantIndex = []byte("stake/participant/")
)

func stakeRecordKey(id uint64) []byte {
	buf := make([]byte, len(stakeRecordPrefix)+8)
	copy(buf, stakeRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(stakeRecordPrefix):], id)
	return buf
}

// participantKey length-prefixes the participant so distinct ids never share
// a key regardless of their contents.
func participantKey(participant string, suffix []byte) []byte {
	buf := make([]byte, 0, len(stakeParticipantIndex)+4+len(participant)+len(suffix))
	buf = append(buf, stakeParticipantIndex...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(participant)))
	buf = append(buf, participant...)
	return append(buf, suffix...)
}

func participantCountKey(participant string) []byte {
	return participantKey(participant, []byte("/count"))
}

func participantEntryKey(participant string, index uint64) []byte {
	suffix := binary.BigEndian.AppendUint64([]byte("/entry/"), index)
	return participantKey(participant, suffix)
}

type storedStake struct {
	ID          uint64
	Owner       [20]byte
	Participant string
	Amount      *big.Int
	D1Amount    *big.Int
	D2Amount    *big.Int
	CreatedAt   uint64
	D1At        uint64
	D2At        uint64
	Status      uint8
}

func newStoredStake(s *stake.Stake) *storedStake {
	return &storedStake{
		ID:          s.ID,
		Owner:       s.Owner,
		Participant: s.Participant,
		Amount:      nonNil(s.Amount),
		D1Amount:    nonNil(s.D1Amount),
		D2Amount:    nonNil(s.D2Amount),
		CreatedAt:   s.CreatedAt,
		D1At:        s.D1At,
		D2At:        s.D2At,
		Status:      uint8(s.Status),
	}
}

func (s *storedStake) toStake() (*stake.Stake, error) {
	status := stake.Status(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("state: stake %d has invalid status %d", s.ID, s.Status)
	}
	return &stake.Stake{
		ID:          s.ID,
		Owner:       s.Owner,
		Participant: s.Participant,
		Amount:      nonNil(s.Amount),
		D1Amount:    nonNil(s.D1Amount),
		D2Amount:    nonNil(s.D2Amount),
		CreatedAt:   s.CreatedAt,
		D1At:        s.D1At,
		D2At:        s.D2At,
		Status:      status,
	}, nil
}

type storedStakeConfig struct {
	D1Duration uint64
	D2Duration uint64
	Fees       uint8
	PrizePool  uint8
	D1Share    uint8
	D2Share    uint8
}

type storedPools struct {
	FeesAccrued        *big.Int
	PrizePoolAccrued   *big.Int
	PrizePoolDeposited *big.Int
}

// StakeConfig returns the stored vesting config. ok is false before one has
// been written.
func (m *Manager) StakeConfig() (cfg stake.Config, ok bool, err error) {
	var stored storedStakeConfig
	ok, err = m.KVGet(stakeConfigKey, &stored)
	if err != nil || !ok {
		return stake.Config{}, ok, err
	}
	return stake.Config(stored), true, nil
}

// PutStakeConfig replaces the stored vesting config.
func (m *Manager) PutStakeConfig(cfg stake.Config) error {
	stored := storedStakeConfig(cfg)
	return m.KVPut(stakeConfigKey, &stored)
}

// StakePools returns the pool counters, zeroed when nothing has been stored.
func (m *Manager) StakePools() (*stake.Pools, error) {
	var stored storedPools
	ok, err := m.KVGet(stakePoolsKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (*stake.Pools)(nil).Clone(), nil
	}
	return &stake.Pools{
		FeesAccrued:        nonNil(stored.FeesAccrued),
		PrizePoolAccrued:   nonNil(stored.PrizePoolAccrued),
		PrizePoolDeposited: nonNil(stored.PrizePoolDeposited),
	}, nil
}

// PutStakePools replaces the pool counters.
func (m *Manager) PutStakePools(pools *stake.Pools) error {
	c := pools.Clone()
	return m.KVPut(stakePoolsKey, &storedPools{
		FeesAccrued:        c.FeesAccrued,
		PrizePoolAccrued:   c.PrizePoolAccrued,
		PrizePoolDeposited: c.PrizePoolDeposited,
	})
}

// StakeFundingAddress returns the rewards funding address, zero when unset.
func (m *Manager) StakeFundingAddress() ([20]byte, error) {
	var addr [20]byte
	if _, err := m.KVGet(stakeFundingKey, &addr); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

// PutStakeFundingAddress stores the rewards funding address.
func (m *Manager) PutStakeFundingAddress(addr [20]byte) error {
	return m.KVPut(stakeFundingKey, addr)
}

// StakeCount returns the number of stakes ever created.
func (m *Manager) StakeCount() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(stakeNextIDKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// AllocateStakeID reserves the next stake identifier. Identifiers start at 1
// and increase by one.
func (m *Manager) AllocateStakeID() (uint64, error) {
	count, err := m.StakeCount()
	if err != nil {
		return 0, err
	}
	next := count + 1
	if next == 0 {
		return 0, fmt.Errorf("state: stake id space exhausted")
	}
	if err := m.KVPut(stakeNextIDKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// GetStake loads a stake by id.
func (m *Manager) GetStake(id uint64) (*stake.Stake, bool, error) {
	var stored storedStake
	ok, err := m.KVGet(stakeRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	record, err := stored.toStake()
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// PutStake writes the stake record.
func (m *Manager) PutStake(record *stake.Stake) error {
	if record == nil {
		return fmt.Errorf("state: nil stake")
	}
	if record.ID == 0 {
		return fmt.Errorf("state: stake id must be set")
	}
	return m.KVPut(stakeRecordKey(record.ID), newStoredStake(record))
}

// ParticipantStakeCount returns how many stakes are indexed for participant.
func (m *Manager) ParticipantStakeCount(participant string) (uint64, error) {
	var count uint64
	if _, err := m.KVGet(participantCountKey(participant), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// AppendParticipantStake appends a stake id to the participant's index and
// returns the position it was stored at.
func (m *Manager) AppendParticipantStake(participant string, id uint64) (uint64, error) {
	count, err := m.ParticipantStakeCount(participant)
	if err != nil {
		return 0, err
	}
	if err := m.KVPut(participantEntryKey(participant, count), id); err != nil {
		return 0, err
	}
	if err := m.KVPut(participantCountKey(participant), count+1); err != nil {
		return 0, err
	}
	return count, nil
}

// ParticipantStakeIDs returns up to limit stake ids for participant starting
// at offset, in deposit order.
func (m *Manager) ParticipantStakeIDs(participant string, offset, limit uint64) ([]uint64, error) {
	count, err := m.ParticipantStakeCount(participant)
	if err != nil {
		return nil, err
	}
	if offset >= count || limit == 0 {
		return []uint64{}, nil
	}
	end := count
	if limit < count-offset {
		end = offset + limit
	}
	ids := make([]uint64, 0, end-offset)
	for i := offset; i < end; i++ {
		var id uint64
		ok, err := m.KVGet(participantEntryKey(participant, i), &id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: participant index entry %d missing", i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
