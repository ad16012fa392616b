// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package warehouse

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DSNLookup resolves a connection name to a DSN when it is not configured.
type DSNLookup func(name string) (string, error)

// Pool opens warehouses lazily by connection name and keeps them for reuse.
type Pool struct {
	dsns   map[string]string
	lookup DSNLookup
	log    *zap.Logger

	mu     sync.Mutex
	opened map[string]*Warehouse
}

// NewPool creates a pool over the configured DSNs. lookup may be nil.
func NewPool(dsns map[string]string, lookup DSNLookup, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	cp := make(map[string]string, len(dsns))
	for k, v := range dsns {
		cp[k] = v
	}
	return &Pool{dsns: cp, lookup: lookup, log: log, opened: make(map[string]*Warehouse)}
}

// Add registers an already open warehouse under its name.
func (p *Pool) Add(w *Warehouse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened[w.Name()] = w
}

// Get returns the warehouse for name, opening it on first use.
func (p *Pool) Get(ctx context.Context, name string) (*Warehouse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.opened[name]; ok {
		return w, nil
	}
	raw, err := p.resolve(name)
	if err != nil {
		return nil, err
	}
	w, err := Open(ctx, name, raw, p.log)
	if err != nil {
		return nil, err
	}
	p.log.Debug("opened connection", zap.String("connection", name), zap.String("type", string(w.dbType)))
	p.opened[name] = w
	return w, nil
}

func (p *Pool) resolve(name string) (string, error) {
	if raw, ok := p.dsns[name]; ok && raw != "" {
		return raw, nil
	}
	if p.lookup != nil {
		raw, err := p.lookup(name)
		if err == nil && raw != "" {
			return raw, nil
		}
		if err != nil {
			return "", fmt.Errorf("no DSN for connection %q: %w", name, err)
		}
	}
	return "", fmt.Errorf("no DSN for connection %q", name)
}

// Close closes every opened warehouse and returns the first error.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for name, w := range p.opened {
		if err := w.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", name, err)
		}
		delete(p.opened, name)
	}
	return first
}
