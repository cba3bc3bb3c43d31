package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stakevault/storage"
)

var errNoTransaction = errors.New("state: no open transaction")

// Manager reads and writes ledger state on top of a key-value database.
// Writes land in a stack of journal levels opened with Begin. Commit folds the
// top level into its parent, and the outermost commit flushes to the database
// as one batch. Rollback discards the top level. Writes issued with no open
// level go straight to the database.
//
// A Manager is not safe for concurrent use; callers serialize access.
type Manager struct {
	db     storage.Database
	levels []map[string][]byte
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	balancePrefix = []byte("balance:")
	rolePrefix    = []byte("role:")
	pausePrefix   = []byte("pause:")
)

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr)
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func pauseKey(module string) []byte {
	buf := make([]byte, len(pausePrefix)+len(module))
	copy(buf, pausePrefix)
	copy(buf[len(pausePrefix):], module)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// Begin opens a new journal level.
func (m *Manager) Begin() {
	m.levels = append(m.levels, make(map[string][]byte))
}

// Depth reports the number of open journal levels.
func (m *Manager) Depth() int {
	return len(m.levels)
}

// Commit closes the top journal level. Nested levels merge into their parent;
// the outermost level is written to the database in a single batch. A failed
// flush leaves the database untouched and the level discarded.
func (m *Manager) Commit() error {
	if len(m.levels) == 0 {
		return errNoTransaction
	}
	top := m.levels[len(m.levels)-1]
	m.levels = m.levels[:len(m.levels)-1]
	if len(m.levels) > 0 {
		parent := m.levels[len(m.levels)-1]
		for k, v := range top {
			parent[k] = v
		}
		return nil
	}
	if len(top) == 0 {
		return nil
	}
	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := storage.NewBatch()
	for _, k := range keys {
		batch.Put([]byte(k), top[k])
	}
	return m.db.Write(batch)
}

// Rollback discards the top journal level.
func (m *Manager) Rollback() {
	if len(m.levels) == 0 {
		return
	}
	m.levels = m.levels[:len(m.levels)-1]
}

// Atomic runs fn inside its own journal level. The level commits when fn
// returns nil and is rolled back on error or panic.
func (m *Manager) Atomic(fn func() error) error {
	m.Begin()
	committed := false
	defer func() {
		if !committed {
			m.Rollback()
		}
	}()
	if err := fn(); err != nil {
		return err
	}
	committed = true
	return m.Commit()
}

func (m *Manager) get(key []byte) ([]byte, error) {
	for i := len(m.levels) - 1; i >= 0; i-- {
		if v, ok := m.levels[i][string(key)]; ok {
			return v, nil
		}
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) put(key, value []byte) error {
	if len(m.levels) == 0 {
		return m.db.Put(key, value)
	}
	m.levels[len(m.levels)-1][string(key)] = append([]byte(nil), value...)
	return nil
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.put(balanceKey(addr, normalized), encoded)
}

// Balance retrieves a token balance for the provided account and token.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	data, err := m.get(balanceKey(addr, strings.ToUpper(strings.TrimSpace(symbol))))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.writeRole(trimmed, members)
}

// RevokeRole removes an address from the specified role. Revoking an absent
// member is a no-op.
func (m *Manager) RevokeRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(members) {
		return nil
	}
	return m.writeRole(trimmed, kept)
}

func (m *Manager) writeRole(role string, members [][]byte) error {
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.put(roleKey(role), encoded)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Read failures report false.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// IsPaused reports whether the named module is paused. Read failures report
// paused so a corrupted flag never unblocks a module.
func (m *Manager) IsPaused(module string) bool {
	data, err := m.get(pauseKey(strings.ToLower(strings.TrimSpace(module))))
	if err != nil {
		return true
	}
	if len(data) == 0 {
		return false
	}
	var paused bool
	if err := rlp.DecodeBytes(data, &paused); err != nil {
		return true
	}
	return paused
}

// SetPaused stores the pause flag for the named module.
func (m *Manager) SetPaused(module string, paused bool) error {
	normalized := strings.ToLower(strings.TrimSpace(module))
	if normalized == "" {
		return fmt.Errorf("module must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(paused)
	if err != nil {
		return err
	}
	return m.put(pauseKey(normalized), encoded)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
