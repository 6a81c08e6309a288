// Package store provides an in-memory ledger.Store for tests and development.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/elf59535/TsinghuaDashboard/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the state in process with a counter-based version token, so
// tests can exercise the conflict path without a real backend.
type Memory struct {
	mu    sync.Mutex
	seed  *ledger.State
	state *ledger.State
	rev   int
}

// NewMemory creates an empty store that will seed itself on first Load.
func NewMemory(seed *ledger.State) *Memory {
	return &Memory{seed: seed}
}

func (m *Memory) token() ledger.VersionToken {
	return ledger.VersionToken(fmt.Sprintf("rev-%d", m.rev))
}

func (m *Memory) Load(_ context.Context) (*ledger.State, ledger.VersionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		m.state = m.seed.Clone()
		m.rev = 1
	}
	return m.state.Clone(), m.token(), nil
}

func (m *Memory) Save(_ context.Context, st *ledger.State, expected ledger.VersionToken) (ledger.VersionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil && expected != m.token() {
		return "", &ledger.VersionConflictError{Expected: expected, Actual: m.token()}
	}
	m.state = st.Clone()
	m.rev++
	return m.token(), nil
}

func (m *Memory) SupportsVersioning() bool { return true }
