package common

import (
	"errors"
	"fmt"
	"strings"
)

// Role names a capability checked at ledger entry points.
type Role string

const (
	RoleDeposit          Role = "deposit"
	RolePause            Role = "pause"
	RoleConfigureVesting Role = "configure_vesting"
	RoleConfigureRewards Role = "configure_rewards"
	// RoleUpgrade is reserved for deployment tooling; no ledger operation
	// consults it.
	RoleUpgrade Role = "upgrade"
)

// AllRoles lists every capability in a stable order.
var AllRoles = []Role{RoleDeposit, RolePause, RoleConfigureVesting, RoleConfigureRewards, RoleUpgrade}

var ErrMissingRole = errors.New("missing role")

// ParseRole normalises a configured role name.
func ParseRole(raw string) (Role, error) {
	normalized := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, role := range AllRoles {
		if role == normalized {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

type RoleView interface {
	HasRole(role string, addr []byte) bool
}

// Authorize fails with ErrMissingRole unless addr holds role.
func Authorize(view RoleView, role Role, addr [20]byte) error {
	if view == nil || addr == ([20]byte{}) {
		return fmt.Errorf("%w: %s", ErrMissingRole, role)
	}
	if !view.HasRole(string(role), addr[:]) {
		return fmt.Errorf("%w: %s", ErrMissingRole, role)
	}
	return nil
}
