// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores per-connection warehouse DSNs in the OS credential store.
// Every connection name maps to one item keyed "dsn:<name>". The manager is safe for
// concurrent use.
package keychain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when no DSN is stored for a connection.
var ErrNotFound = errors.New("no DSN stored for connection")

// Manager provides thread-safe DSN storage.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend is the macOS security(1) backend.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "compilerd"

const dsnPrefix = "dsn:"

// DSNKey is the item key for a connection's DSN.
func DSNKey(connection string) string { return dsnPrefix + connection }

// NewManager creates a manager backed by the OS credential store.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{backend: backend}, nil
		}
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewWithKeyring creates a manager over an already opened keyring.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the process-wide manager, creating it on first use.
// A failed initialization is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, fmt.Errorf("secure storage not supported on %s", runtime.GOOS)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ring, nil
}

// SaveDSN stores the DSN for a connection, replacing any previous value.
func (m *Manager) SaveDSN(connection, dsn string) error {
	if connection == "" {
		return errors.New("connection name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(DSNKey(connection), dsn)
	}
	return m.ring.Set(keyring.Item{Key: DSNKey(connection), Data: []byte(dsn), Label: ServiceName + " " + connection})
}

// LoadDSN returns the DSN stored for a connection or ErrNotFound.
func (m *Manager) LoadDSN(connection string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		dsn string
		err error
	)
	if m.backend != nil {
		dsn, err = m.backend.Get(DSNKey(connection))
	} else {
		var it keyring.Item
		if it, err = m.ring.Get(DSNKey(connection)); err == nil {
			dsn = string(it.Data)
		}
	}
	if errors.Is(err, keyring.ErrKeyNotFound) || (err == nil && dsn == "") {
		return "", fmt.Errorf("%w %q", ErrNotFound, connection)
	}
	return dsn, err
}

// DeleteDSN removes a connection's DSN. Removing a missing entry is not an error.
func (m *Manager) DeleteDSN(connection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(DSNKey(connection))
	}
	if err := m.ring.Remove(DSNKey(connection)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// Connections lists the connection names with a stored DSN. The macOS security
// backend cannot enumerate items and returns nil.
func (m *Manager) Connections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		return nil, nil
	}
	keys, err := m.ring.Keys()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, k := range keys {
		if name, ok := strings.CutPrefix(k, dsnPrefix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
