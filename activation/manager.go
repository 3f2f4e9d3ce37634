// Package activation tracks the set of future "activation dates" registered
// by running workflows — the next wall-clock moment at which a workflow
// needs to be woken even though nothing external happened. The scheduler
// consults the manager's aggregate minimum to decide when to next poll a
// workflow that is otherwise idle (§4.2).
package activation

import (
	"sync"
	"time"

	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
)

// Manager aggregates per-token activation dates and reports the minimum
// across all of them. Safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	dates   map[cancel.Token]time.Time
	onMinCh chan struct{}
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{dates: make(map[cancel.Token]time.Time)}
}

// AddActivationDate registers (or overwrites) token's next activation date.
// Registering the zero token is a programmer error and panics, since it
// would be indistinguishable from "no token".
func (m *Manager) AddActivationDate(token cancel.Token, date time.Time) {
	if token == nil {
		panic("activation: nil token")
	}

	m.mu.Lock()
	prevMin, hadPrevMin := m.currentMinLocked()
	m.dates[token] = date
	newMin, _ := m.currentMinLocked()
	changed := !hadPrevMin || !newMin.Equal(prevMin)
	ch := m.onMinCh
	if changed {
		m.resetMinChannelLocked()
	}
	m.mu.Unlock()

	if changed && ch != nil {
		close(ch)
	}
}

// RemoveActivationDate unregisters token's activation date, e.g. once the
// date has been reached and handled, or the registering scope ended.
func (m *Manager) RemoveActivationDate(token cancel.Token) {
	m.mu.Lock()
	if _, ok := m.dates[token]; !ok {
		m.mu.Unlock()
		return
	}
	prevMin, _ := m.currentMinLocked()
	delete(m.dates, token)
	newMin, hasNewMin := m.currentMinLocked()
	changed := !hasNewMin || !newMin.Equal(prevMin)
	ch := m.onMinCh
	if changed {
		m.resetMinChannelLocked()
	}
	m.mu.Unlock()

	if changed && ch != nil {
		close(ch)
	}
}

// OnCancellationTokenCanceled wires token's cancellation to automatically
// remove its registration, so callers never need to remember to clean up
// explicitly on the cancellation path.
func (m *Manager) OnCancellationTokenCanceled(token cancel.Token) {
	token.OnCancel(func() {
		m.RemoveActivationDate(token)
	})
}

// NextActivationDate returns the earliest registered date and true, or the
// zero time and false if nothing is registered.
func (m *Manager) NextActivationDate() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentMinLocked()
}

func (m *Manager) currentMinLocked() (time.Time, bool) {
	var min time.Time
	found := false
	for _, d := range m.dates {
		if !found || d.Before(min) {
			min = d
			found = true
		}
	}
	return min, found
}

// MinChanged returns a channel that closes the next time the aggregate
// minimum activation date changes (including becoming present or absent).
// Each call returns a fresh channel; callers must re-call after it fires to
// observe the next change.
func (m *Manager) MinChanged() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onMinCh == nil {
		m.onMinCh = make(chan struct{})
	}
	return m.onMinCh
}

func (m *Manager) resetMinChannelLocked() {
	m.onMinCh = nil
}
