// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package schemastore holds the session-scoped table and SQL block schemas, partitioned
// by connection, and the registry that hands out one store per connection name.
//
// Stores never fail on a miss. Table lookups return the missing subset so a whole
// compile attempt's misses can be requested at once; SQL block lookups echo the
// block's SQL text back so the client can compute its schema.
package schemastore

import (
	"context"
	"sort"
	"sync"

	"compilerd/service/internal/compiler"
)

// Store caches the schemas of one connection. It implements compiler.Connection.
type Store struct {
	// name is the connection this store belongs to
	name string
	// defaultName is the session's default connection identity
	defaultName string
	// tables maps canonical table key to schema
	tables map[string]*compiler.StructDef
	// sqlBlocks maps SQL block name to schema
	sqlBlocks map[string]*compiler.StructDef
	// mu protects both maps
	mu sync.RWMutex
}

func newStore(name, defaultName string) *Store {
	return &Store{
		name:        name,
		defaultName: defaultName,
		tables:      make(map[string]*compiler.StructDef),
		sqlBlocks:   make(map[string]*compiler.StructDef),
	}
}

// Name implements compiler.Connection.
func (s *Store) Name() string { return s.name }

// IsDefault reports whether this is the default connection's store.
func (s *Store) IsDefault() bool { return s.name == s.defaultName }

// canonicalKey maps any spelling of a key on this connection to its cache slot.
func (s *Store) canonicalKey(key string) string {
	k := ParseTableKey(key)
	return Canonical(s.name, k.Table, s.defaultName)
}

// PutTableSchema stores a table schema, overwriting any previous one for the key.
func (s *Store) PutTableSchema(key string, schema *compiler.StructDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[s.canonicalKey(key)] = schema
}

// GetTablesSchemas looks up every key and returns what was found plus the missing keys.
func (s *Store) GetTablesSchemas(keys []string) (found map[string]*compiler.StructDef, missing []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found = make(map[string]*compiler.StructDef, len(keys))
	for _, key := range keys {
		if schema, ok := s.tables[s.canonicalKey(key)]; ok {
			found[key] = schema
			continue
		}
		missing = append(missing, key)
	}
	return found, missing
}

// FetchSchemaForTables implements compiler.Connection. Tables maps key to table path.
func (s *Store) FetchSchemaForTables(_ context.Context, tables map[string]string) (compiler.TableSchemaResult, error) {
	keys := make([]string, 0, len(tables))
	for key := range tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	found, missing := s.GetTablesSchemas(keys)
	res := compiler.TableSchemaResult{Found: found}
	for _, key := range missing {
		res.Missing = append(res.Missing, compiler.TableRef{
			Key:        s.canonicalKey(key),
			Connection: s.name,
			Table:      tables[key],
		})
	}
	return res, nil
}

// PutSQLBlockSchema stores an SQL block schema by block name.
func (s *Store) PutSQLBlockSchema(name string, schema *compiler.StructDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sqlBlocks[name] = schema
}

// GetSQLBlockSchema returns the block's schema or a *compiler.MissingSQLBlockError
// echoing the block's SQL.
func (s *Store) GetSQLBlockSchema(block compiler.SQLBlock) (*compiler.StructDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if schema, ok := s.sqlBlocks[block.Name]; ok {
		return schema, nil
	}
	return nil, &compiler.MissingSQLBlockError{Block: compiler.MissingSQLBlock{
		Name:       block.Name,
		Connection: s.name,
		SQL:        block.SelectStr,
	}}
}

// FetchSchemaForSQLBlock implements compiler.Connection.
func (s *Store) FetchSchemaForSQLBlock(_ context.Context, block compiler.SQLBlock) (*compiler.StructDef, error) {
	return s.GetSQLBlockSchema(block)
}

// TableCount returns the number of cached table schemas.
func (s *Store) TableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*compiler.StructDef)
	s.sqlBlocks = make(map[string]*compiler.StructDef)
}
