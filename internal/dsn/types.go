// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn parses and normalises warehouse connection strings and picks the
// database/sql driver that serves them.
package dsn

import "fmt"

// DBType represents the type of database
type DBType string

const (
	DBTypePostgreSQL DBType = "postgresql"
	DBTypeSQLite     DBType = "sqlite"
	DBTypeUnknown    DBType = "unknown"
)

// Driver returns the database/sql driver name registered for the type.
func (t DBType) Driver() string {
	switch t {
	case DBTypePostgreSQL:
		return "pgx"
	case DBTypeSQLite:
		return "sqlite"
	}
	return ""
}

// Dialect returns the SQL dialect the compiler should quote table paths with.
func (t DBType) Dialect() string {
	switch t {
	case DBTypePostgreSQL, DBTypeSQLite:
		// sqlite quotes identifiers the postgres way
		return "postgres"
	}
	return ""
}

// DSNInfo contains parsed information from a DSN string
type DSNInfo struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Database string
	// Path is the database file for sqlite; ":memory:" for an in-memory database.
	Path     string
	Params   map[string]string
	Original string
}

// String returns the DSN as it was given.
func (d *DSNInfo) String() string {
	return d.Original
}

// Resolver is an interface for database-specific DSN resolution
type Resolver interface {
	// Parse parses a DSN string and returns normalized DSN info
	Parse(dsn string) (*DSNInfo, error)

	// Normalize converts DSN info to the data source name its driver expects
	Normalize(info *DSNInfo) (string, error)

	// Validate checks if the DSN is valid for the database type
	Validate(dsn string) error
}

// ParseError represents an error that occurred during DSN parsing
type ParseError struct {
	DSN    string
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid DSN format: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid DSN format: %s", e.Reason)
}

// NewParseError creates a new ParseError
func NewParseError(dsn, reason, hint string) *ParseError {
	return &ParseError{
		DSN:    dsn,
		Reason: reason,
		Hint:   hint,
	}
}
