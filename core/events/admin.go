package events

import (
	"strings"

	"stakevault/core/types"
)

const (
	// TypeModulePaused is emitted when a ledger pause flag is raised.
	TypeModulePaused = "module.paused"
	// TypeModuleUnpaused is emitted when a ledger pause flag is cleared.
	TypeModuleUnpaused = "module.unpaused"
)

// ModulePauseToggled captures a pause flag change for a ledger.
type ModulePauseToggled struct {
	Module string
	By     [20]byte
	Paused bool
}

// EventType satisfies the Event interface.
func (e ModulePauseToggled) EventType() string {
	if e.Paused {
		return TypeModulePaused
	}
	return TypeModuleUnpaused
}

// Event converts the structured payload into a broadcastable event.
func (e ModulePauseToggled) Event() *types.Event {
	attrs := map[string]string{"module": strings.TrimSpace(e.Module)}
	if !zeroAddress(e.By) {
		attrs["by"] = formatAddress(e.By)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}
