// Package store provides ConnectionStore implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/partsync/pricesync/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	conns map[engine.AccountID]engine.TenantConnection
}

func NewMemory() *Memory {
	return &Memory{conns: make(map[engine.AccountID]engine.TenantConnection)}
}

func (m *Memory) Get(_ context.Context, accountID engine.AccountID) (*engine.TenantConnection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[accountID]
	if !ok {
		return nil, engine.ErrNotConnected
	}
	// Copy out so callers never alias the stored record.
	return &conn, nil
}

func (m *Memory) Save(_ context.Context, conn engine.TenantConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.conns[conn.AccountID]; ok {
		conn.CreatedAt = existing.CreatedAt
	} else if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	m.conns[conn.AccountID] = conn
	return nil
}

// UpdateTokens rewrites all token fields under one lock acquisition, so a
// concurrent refresh can never observe a half-written record.
func (m *Memory) UpdateTokens(_ context.Context, accountID engine.AccountID, accessToken, refreshToken string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[accountID]
	if !ok {
		return engine.ErrNotConnected
	}
	conn.AccessToken = accessToken
	conn.RefreshToken = refreshToken
	conn.ExpiresAt = expiresAt
	conn.UpdatedAt = time.Now().UTC()
	m.conns[accountID] = conn
	return nil
}

func (m *Memory) Delete(_ context.Context, accountID engine.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conns, accountID)
	return nil
}
