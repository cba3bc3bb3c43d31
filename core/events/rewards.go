package events

import (
	"math/big"

	"stakevault/core/types"
)

const (
	// TypeRewardClaimed is emitted when a signed reward claim pays out.
	TypeRewardClaimed = "rewards.claimed"
	// TypeRewardEpochAdvanced records the activation of a new claim epoch.
	TypeRewardEpochAdvanced = "rewards.epochAdvanced"
	// TypeRewardSignerUpdated records a trusted signer rotation.
	TypeRewardSignerUpdated = "rewards.signerUpdated"
)

// RewardClaimed captures a successful claim.
type RewardClaimed struct {
	Participant string
	Recipient   [20]byte
	Amount      *big.Int
	Epoch       uint64
}

// EventType satisfies the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardClaimed, Attributes: map[string]string{
		"participant": e.Participant,
		"recipient":   formatAddress(e.Recipient),
		"amount":      formatAmount(e.Amount),
		"epoch":       formatUint(e.Epoch),
	}}
}

// RewardEpochAdvanced records the epoch ratchet.
type RewardEpochAdvanced struct {
	Old uint64
	New uint64
}

// EventType satisfies the Event interface.
func (RewardEpochAdvanced) EventType() string { return TypeRewardEpochAdvanced }

// Event converts the structured payload into a broadcastable event.
func (e RewardEpochAdvanced) Event() *types.Event {
	return &types.Event{Type: TypeRewardEpochAdvanced, Attributes: map[string]string{
		"old": formatUint(e.Old),
		"new": formatUint(e.New),
	}}
}

// RewardSignerUpdated records a trusted signer rotation.
type RewardSignerUpdated struct {
	Old [20]byte
	New [20]byte
}

// EventType satisfies the Event interface.
func (RewardSignerUpdated) EventType() string { return TypeRewardSignerUpdated }

// Event converts the structured payload into a broadcastable event.
func (e RewardSignerUpdated) Event() *types.Event {
	attrs := map[string]string{"new": formatAddress(e.New)}
	if !zeroAddress(e.Old) {
		attrs["old"] = formatAddress(e.Old)
	}
	return &types.Event{Type: TypeRewardSignerUpdated, Attributes: attrs}
}
