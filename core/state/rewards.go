package state

import "encoding/binary"

var (
	rewardsEpochKey    = []byte("rewards/epoch/current")
	rewardsSignerKey   = []byte("rewards/signer")
	rewardsEpochPrefix = []byte("rewards/epoch/activated/")
	rewardsClaimPrefix = []byte("rewards/claimed/")
)

func rewardsActivatedKey(epoch uint64) []byte {
	buf := make([]byte, len(rewardsEpochPrefix)+8)
	copy(buf, rewardsEpochPrefix)
	binary.BigEndian.PutUint64(buf[len(rewardsEpochPrefix):], epoch)
	return buf
}

func rewardsClaimKey(participant string) []byte {
	buf := make([]byte, 0, len(rewardsClaimPrefix)+len(participant))
	buf = append(buf, rewardsClaimPrefix...)
	return append(buf, participant...)
}

// RewardsEpoch returns the current epoch, zero before any activation.
func (m *Manager) RewardsEpoch() (uint64, error) {
	var epoch uint64
	if _, err := m.KVGet(rewardsEpochKey, &epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}

// PutRewardsEpoch stores the current epoch and marks it as activated.
func (m *Manager) PutRewardsEpoch(epoch uint64) error {
	if err := m.KVPut(rewardsEpochKey, epoch); err != nil {
		return err
	}
	return m.KVPut(rewardsActivatedKey(epoch), true)
}

// RewardsEpochActivated reports whether epoch was ever made current.
func (m *Manager) RewardsEpochActivated(epoch uint64) (bool, error) {
	var activated bool
	if _, err := m.KVGet(rewardsActivatedKey(epoch), &activated); err != nil {
		return false, err
	}
	return activated, nil
}

// RewardsLastClaimed returns the last epoch participant claimed in, zero when
// they never claimed.
func (m *Manager) RewardsLastClaimed(participant string) (uint64, error) {
	var epoch uint64
	if _, err := m.KVGet(rewardsClaimKey(participant), &epoch); err != nil {
		return 0, err
	}
	return epoch, nil
}

// PutRewardsLastClaimed records the epoch participant last claimed in.
func (m *Manager) PutRewardsLastClaimed(participant string, epoch uint64) error {
	return m.KVPut(rewardsClaimKey(participant), epoch)
}

// RewardsSigner returns the trusted signer, zero when unset.
func (m *Manager) RewardsSigner() ([20]byte, error) {
	var signer [20]byte
	if _, err := m.KVGet(rewardsSignerKey, &signer); err != nil {
		return [20]byte{}, err
	}
	return signer, nil
}

// PutRewardsSigner stores the trusted signer.
func (m *Manager) PutRewardsSigner(signer [20]byte) error {
	return m.KVPut(rewardsSignerKey, signer)
}
