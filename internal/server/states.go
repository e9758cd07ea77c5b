package server

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// stateInfo tracks a pending OAuth state for cleanup.
type stateInfo struct {
	issuedAt time.Time
}

// StateManager issues and validates the opaque state tokens that tie an
// OAuth consent redirect back to the request that started it. States are
// single use and expire after the configured timeout.
type StateManager struct {
	states        map[string]*stateInfo
	mu            sync.Mutex
	cleanupTicker *time.Ticker
	cleanupDone   chan bool
	stateTimeout  time.Duration
}

// NewStateManager creates a state manager with the default 10 minute
// expiry.
func NewStateManager() *StateManager {
	return NewStateManagerWithTimeout(10 * time.Minute)
}

// NewStateManagerWithTimeout creates a state manager with a custom expiry.
func NewStateManagerWithTimeout(timeout time.Duration) *StateManager {
	m := &StateManager{
		states:        make(map[string]*stateInfo),
		cleanupTicker: time.NewTicker(time.Minute),
		cleanupDone:   make(chan bool),
		stateTimeout:  timeout,
	}

	go m.cleanupExpiredStates()

	return m
}

// Issue generates a fresh state token and records it as pending.
func (m *StateManager) Issue() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)

	m.mu.Lock()
	m.states[state] = &stateInfo{issuedAt: time.Now()}
	m.mu.Unlock()

	return state, nil
}

// Consume validates a state token from a callback and removes it.
// Returns false for unknown, reused or expired states.
func (m *StateManager) Consume(state string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.states[state]
	if !ok {
		return false
	}
	delete(m.states, state)
	return time.Since(info.issuedAt) <= m.stateTimeout
}

// cleanupExpiredStates periodically removes states that were never
// consumed, so abandoned consent flows don't accumulate.
func (m *StateManager) cleanupExpiredStates() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.mu.Lock()
			now := time.Now()
			for state, info := range m.states {
				if now.Sub(info.issuedAt) > m.stateTimeout {
					delete(m.states, state)
				}
			}
			m.mu.Unlock()
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (m *StateManager) Stop() {
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}
	if m.cleanupDone != nil {
		close(m.cleanupDone)
	}
}
