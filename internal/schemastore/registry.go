// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schemastore

import (
	"context"
	"sync"

	"compilerd/service/internal/compiler"
)

// Registry resolves connection names to their schema stores, creating stores lazily.
// A registry belongs to exactly one session; nothing is shared across registries.
type Registry struct {
	defaultName string
	stores      map[string]*Store
	// order records non-default connection names in first-seen order
	order []string
	mu    sync.Mutex
}

// NewRegistry creates a registry. An empty defaultName selects DefaultConnection.
func NewRegistry(defaultName string) *Registry {
	if defaultName == "" {
		defaultName = DefaultConnection
	}
	return &Registry{
		defaultName: defaultName,
		stores:      make(map[string]*Store),
	}
}

// DefaultName returns the default connection identity.
func (r *Registry) DefaultName() string { return r.defaultName }

// Resolve returns the store for name, creating it on first use. An empty name
// resolves to the default connection.
func (r *Registry) Resolve(name string) *Store {
	if name == "" {
		name = r.defaultName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	s := newStore(name, r.defaultName)
	r.stores[name] = s
	if name != r.defaultName {
		r.order = append(r.order, name)
	}
	return s
}

// LookupConnection implements compiler.LookupConnection.
func (r *Registry) LookupConnection(_ context.Context, name string) (compiler.Connection, error) {
	return r.Resolve(name), nil
}

// Names returns the distinct non-default connection names seen, in first-seen order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// PutTableSchema routes a schema to its connection. The key's qualifier wins,
// then the schema's own connection name, then the default connection.
func (r *Registry) PutTableSchema(key string, schema *compiler.StructDef) {
	var fallback string
	if schema != nil {
		fallback = schema.StructRelationship.ConnectionName
	}
	conn, canonical := Normalize(key, fallback, r.defaultName)
	r.Resolve(conn).PutTableSchema(canonical, schema)
}

// PutSchemaBlob routes every schema in a blob.
func (r *Registry) PutSchemaBlob(blob *compiler.SchemaBlob) {
	if blob == nil {
		return
	}
	for key, schema := range blob.Schemas {
		r.PutTableSchema(key, schema)
	}
}

// PutSQLBlockSchema routes an SQL block schema to the schema's connection, or the default.
func (r *Registry) PutSQLBlockSchema(name string, schema *compiler.StructDef) {
	var conn string
	if schema != nil {
		conn = schema.StructRelationship.ConnectionName
	}
	r.Resolve(conn).PutSQLBlockSchema(name, schema)
}

// Clear drops every store. Called when the owning stream ends.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		s.clear()
	}
	r.stores = make(map[string]*Store)
	r.order = nil
}
