// Package session tracks per-user conversation state for multi-step flows.
// State is process-lifetime only: losing an in-flight form on restart is
// acceptable, committed data lives in the table.
package session

import (
	"sync"
	"time"
)

// State is the conversation position of a single user. Transitions are driven
// by the bot's handlers; any state returns to Idle on cancel.
type State int

const (
	Idle State = iota
	AwaitingRedemptionCode
	AwaitingStaffID
	AwaitingFeedbackRating
	AwaitingFeedbackText
	AwaitingFeedbackPhotos
	AwaitingMonthSelection
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingRedemptionCode:
		return "awaiting_redemption_code"
	case AwaitingStaffID:
		return "awaiting_staff_id"
	case AwaitingFeedbackRating:
		return "awaiting_feedback_rating"
	case AwaitingFeedbackText:
		return "awaiting_feedback_text"
	case AwaitingFeedbackPhotos:
		return "awaiting_feedback_photos"
	case AwaitingMonthSelection:
		return "awaiting_month_selection"
	default:
		return "unknown"
	}
}

// FeedbackDraft is the scratch object of an in-progress feedback form.
type FeedbackDraft struct {
	Rating int
	Text   string
	Photos []string
}

type entry struct {
	state   State
	draft   *FeedbackDraft
	touched time.Time
}

// Manager owns the per-user session map. Entries expire after the TTL so
// abandoned conversations cannot grow the map without bound.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a session manager with the given idle TTL. ttl <= 0
// disables expiry.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[int64]*entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// State returns the user's current state, Idle if none or expired.
func (m *Manager) State(userID int64) State {
	m.mu.RLock()
	e, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return Idle
	}
	if m.expired(e) {
		m.Clear(userID)
		return Idle
	}
	return e.state
}

// Set moves the user to a new state, keeping any existing draft.
func (m *Manager) Set(userID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok || m.expired(e) {
		e = &entry{}
		m.sessions[userID] = e
	}
	e.state = state
	e.touched = m.now()
}

// Draft returns the user's feedback draft, creating an empty one on first
// use. Touches the session.
func (m *Manager) Draft(userID int64) *FeedbackDraft {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok || m.expired(e) {
		e = &entry{}
		m.sessions[userID] = e
	}
	if e.draft == nil {
		e.draft = &FeedbackDraft{}
	}
	e.touched = m.now()
	return e.draft
}

// Clear is the cancel transition: back to Idle, draft discarded.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// EvictExpired drops every expired session and reports how many were removed.
func (m *Manager) EvictExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len reports the number of live sessions, for tests and diagnostics.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expired(e *entry) bool {
	return m.ttl > 0 && m.now().Sub(e.touched) > m.ttl
}
