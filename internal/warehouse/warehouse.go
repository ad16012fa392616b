// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package warehouse gives the compile client access to the databases behind its
// connections. It inspects table and SQL block schemas into StructDefs the compiler
// service understands, and executes generated SQL into JSON row sets.
//
// Postgres is reached through the pgx stdlib driver and sqlite through modernc.org/sqlite;
// both are used via database/sql so the rest of the package is driver-agnostic.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"compilerd/service/internal/compiler"
	"compilerd/service/internal/dsn"
)

// Warehouse is one named connection.
type Warehouse struct {
	name   string
	dbType dsn.DBType
	db     *sql.DB
	log    *zap.Logger

	// cache stores table schemas keyed by table path
	cache map[string]*compiler.StructDef
	mu    sync.RWMutex
}

// Open connects to the database behind rawDSN and verifies it with a ping.
func Open(ctx context.Context, name, rawDSN string, log *zap.Logger) (*Warehouse, error) {
	info, err := dsn.ParseInfo(rawDSN)
	if err != nil {
		return nil, err
	}
	driver, source, err := dsn.Open(rawDSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if info.Type == dsn.DBTypeSQLite {
		// one connection keeps :memory: databases and write locks coherent
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return New(name, info.Type, db, log), nil
}

// New wraps an open database.
func New(name string, dbType dsn.DBType, db *sql.DB, log *zap.Logger) *Warehouse {
	if log == nil {
		log = zap.NewNop()
	}
	return &Warehouse{
		name:   name,
		dbType: dbType,
		db:     db,
		log:    log.With(zap.String("connection", name)),
		cache:  make(map[string]*compiler.StructDef),
	}
}

// Name is the connection name.
func (w *Warehouse) Name() string { return w.name }

// DB exposes the underlying handle.
func (w *Warehouse) DB() *sql.DB { return w.db }

// ClearCache forgets inspected table schemas.
func (w *Warehouse) ClearCache() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache = make(map[string]*compiler.StructDef)
}

// Close closes the database.
func (w *Warehouse) Close() error { return w.db.Close() }
