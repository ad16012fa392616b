// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compiler

import (
	"fmt"
	"strings"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityDebug   Severity = "debug"
)

// Location is a position inside a document. Line and Column are 0-based.
type Location struct {
	URL    string `json:"url"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Dependency is a typed "this input is missing" marker attached to a problem.
// Compilers that can produce it spare the service from parsing message text.
type Dependency interface {
	dependency()
}

// MissingImport is an imported document that has not been supplied.
type MissingImport struct {
	URL string
}

// MissingTable is a table whose schema has not been supplied.
type MissingTable struct {
	TableRef
}

// MissingSQLBlock is an SQL block whose schema has not been supplied.
type MissingSQLBlock struct {
	Name       string
	Connection string
	SQL        string
}

func (MissingImport) dependency()   {}
func (MissingTable) dependency()    {}
func (MissingSQLBlock) dependency() {}

// Problem is one compiler diagnostic.
type Problem struct {
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	At       *Location  `json:"at,omitempty"`
	Missing  Dependency `json:"-"`
}

// Failure is the structured failure of a compile attempt.
type Failure struct {
	Problems []Problem
}

func (f *Failure) Error() string {
	if len(f.Problems) == 0 {
		return "compile failed"
	}
	msgs := make([]string, 0, len(f.Problems))
	for _, p := range f.Problems {
		msgs = append(msgs, fmt.Sprintf("%s: %s", p.Severity, p.Message))
	}
	return strings.Join(msgs, "\n")
}

// HasErrors reports whether any problem has error severity.
func (f *Failure) HasErrors() bool {
	for _, p := range f.Problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

// MissingDocumentError is returned by URLReader implementations on a cache miss.
type MissingDocumentError struct {
	URL string
}

func (e *MissingDocumentError) Error() string { return e.URL }

// MissingSQLBlockError is returned by Connection.FetchSchemaForSQLBlock on a miss.
type MissingSQLBlockError struct {
	Block MissingSQLBlock
}

func (e *MissingSQLBlockError) Error() string {
	return SQLBlockMissingMessage(e.Block.Name, e.Block.Connection, e.Block.SQL)
}

// Canonical miss messages. Compilers that cannot attach a Dependency must emit
// exactly these forms so the text fallback in the classifier can recover them.

// TableMissingMessage formats a missing table schema.
func TableMissingMessage(key, connection, table string) string {
	return fmt.Sprintf("No schema data available for {%s} {%s} {%s}", key, connection, table)
}

// SQLBlockMissingMessage formats a missing SQL block schema.
func SQLBlockMissingMessage(name, connection, sql string) string {
	return fmt.Sprintf("SQL Block schema missing: [[%s]]{%s}{%s}", name, connection, sql)
}

// ImportMissingMessage formats a missing imported document.
func ImportMissingMessage(url string) string {
	return "import error: " + url
}
