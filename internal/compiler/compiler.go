// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package compiler defines the boundary between the compile service and the model
// compiler it drives. The compiler is treated as an opaque oracle: every attempt is a
// fresh logical invocation that reads documents and schemas through the capability
// objects passed in Env, and either returns an artifact or fails with a *Failure
// (a list of problems) or a *MissingDocumentError.
//
// The service never looks inside the compiler; it only depends on the interfaces and
// value types declared here.
package compiler

import "context"

// URLReader resolves document URLs to source text.
// A miss must be reported as *MissingDocumentError.
type URLReader interface {
	ReadURL(ctx context.Context, url string) (string, error)
}

// TableSchemaResult is the outcome of a batched table schema lookup.
// Found is keyed by table key; Missing lists every key that had no schema.
type TableSchemaResult struct {
	Found   map[string]*StructDef
	Missing []TableRef
}

// Connection is a named data source as seen by the compiler. Implementations
// only answer schema lookups; they never execute SQL.
type Connection interface {
	Name() string
	// FetchSchemaForTables looks up tables keyed by table key; the map values are the
	// table paths. Misses are returned in the result, not as an error.
	FetchSchemaForTables(ctx context.Context, tables map[string]string) (TableSchemaResult, error)
	// FetchSchemaForSQLBlock returns the schema of an SQL block, or *MissingSQLBlockError.
	FetchSchemaForSQLBlock(ctx context.Context, block SQLBlock) (*StructDef, error)
}

// LookupConnection resolves a connection name ("" meaning the default connection).
type LookupConnection interface {
	LookupConnection(ctx context.Context, name string) (Connection, error)
}

// Env carries the session-scoped collaborators for one compile attempt.
type Env struct {
	Reader      URLReader
	Connections LookupConnection
}

// Compiler loads models. Implementations must not retain state between calls.
type Compiler interface {
	LoadModel(url string, env Env) ModelMaterializer
}

// ModelMaterializer is a lazily compiled model.
type ModelMaterializer interface {
	GetModel(ctx context.Context) (Model, error)
	LoadQuery(text string) QueryMaterializer
}

// QueryMaterializer is a lazily prepared ad-hoc query against a model.
type QueryMaterializer interface {
	GetPreparedResult(ctx context.Context) (*PreparedResult, error)
}

// Model is a compiled model.
type Model interface {
	// Definition returns the serializable model definition.
	Definition() *ModelDef
	// Problems returns non-fatal diagnostics (warnings) produced while compiling.
	Problems() []Problem
	// GetPreparedQueryByName prepares a query declared in the model.
	GetPreparedQueryByName(ctx context.Context, name string) (*PreparedQuery, error)
}

// PreparedQuery is a named query together with its prepared result.
type PreparedQuery struct {
	Name           string
	PreparedResult *PreparedResult
}
