// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines shared data structures for bridge communication.
// It provides the inbound client messages and the outbound dependency requests
// exchanged on a compile stream, independent of the wire encoding.
//
// The types in this package are designed to be transport-agnostic and
// provide a stable interface for the server, the session dispatcher and the client.
package model

import (
	"fmt"

	"compilerd/service/internal/compiler"
)

// InboundType tags a client message.
type InboundType int

const (
	InboundCompile InboundType = iota
	InboundReferences
	InboundTableSchemas
	InboundSQLBlockSchemas
	InboundResults
)

func (t InboundType) String() string {
	switch t {
	case InboundCompile:
		return "COMPILE"
	case InboundReferences:
		return "REFERENCES"
	case InboundTableSchemas:
		return "TABLE_SCHEMAS"
	case InboundSQLBlockSchemas:
		return "SQL_BLOCK_SCHEMAS"
	case InboundResults:
		return "RESULTS"
	}
	return fmt.Sprintf("InboundType(%d)", int(t))
}

// Mode selects whether a completed query must be executed and rendered.
type Mode int

const (
	ModeCompileAndRender Mode = iota
	ModeCompileOnly
)

func (m Mode) String() string {
	if m == ModeCompileOnly {
		return "compile_only"
	}
	return "compile_and_render"
}

// Document is a source document sent by the client.
type Document struct {
	URL     string
	Content string
}

// SQLBlockSchema is a client-computed SQL block schema. Schema holds StructDef JSON.
type SQLBlockSchema struct {
	Name   string
	SQL    string
	Schema string
}

// QueryResult is the outcome of a RUN request. Data holds a JSON array of row objects.
type QueryResult struct {
	Data      string
	TotalRows int
}

// Inbound is one client message on a compile stream.
type Inbound struct {
	Type            InboundType
	Document        *Document
	References      []Document
	Schema          string
	SQLBlockSchemas []SQLBlockSchema
	Query           string
	NamedQuery      string
	Mode            Mode
	QueryResult     *QueryResult
}

// RequestType tags an outbound message.
type RequestType int

const (
	RequestUnknown RequestType = iota
	RequestImport
	RequestTableSchemas
	RequestSQLBlockSchemas
	RequestComplete
	RequestRun
	RequestError
)

func (t RequestType) String() string {
	switch t {
	case RequestUnknown:
		return "UNKNOWN"
	case RequestImport:
		return "IMPORT"
	case RequestTableSchemas:
		return "TABLE_SCHEMAS"
	case RequestSQLBlockSchemas:
		return "SQL_BLOCK_SCHEMAS"
	case RequestComplete:
		return "COMPLETE"
	case RequestRun:
		return "RUN"
	case RequestError:
		return "ERROR"
	}
	return fmt.Sprintf("RequestType(%d)", int(t))
}

// DependencyRequest is one outbound message: a request for more input,
// a final artifact, or a terminal error for the current query.
type DependencyRequest interface {
	Type() RequestType
}

// Import asks for documents.
type Import struct {
	URLs []string
}

// TableSchemas asks for every missing table schema of one attempt.
type TableSchemas struct {
	Tables []compiler.TableRef
}

// SQLBlockRequest asks for one SQL block schema.
type SQLBlockRequest struct {
	Block compiler.MissingSQLBlock
}

// CompileError is a terminal error for the current query. Line is 1-based; 0 means
// unknown. Protocol errors carry no severity.
type CompileError struct {
	Severity compiler.Severity
	Message  string
	Line     int
	Problems []compiler.Problem
}

// Content renders the error as "{severity}: {message}[ at line N]".
func (e CompileError) Content() string {
	if e.Severity == "" {
		return e.Message
	}
	s := fmt.Sprintf("%s: %s", e.Severity, e.Message)
	if e.Line > 0 {
		s += fmt.Sprintf(" at line %d", e.Line)
	}
	return s
}

// Complete carries the final artifact.
type Complete struct {
	// Content is the SQL (query modes) or the serialized model (compile-only).
	Content        string
	Connection     string
	Connections    []string
	PreparedResult string
	RenderContent  string
	Problems       []compiler.Problem
}

// Run asks the client to execute SQL and send back RESULTS.
type Run struct {
	SQL        string
	Connection string
}

// Unknown reports an internal fault. The session stays usable.
type Unknown struct {
	Message string
}

// NoOp is produced by classification when a failure carries only warnings.
// The session answers it with a COMPLETE whose artifact is empty: no Content,
// Connection or PreparedResult, and no RUN in query modes. Problems and the
// known connections are the whole reply.
type NoOp struct {
	Problems []compiler.Problem
}

func (Import) Type() RequestType          { return RequestImport }
func (TableSchemas) Type() RequestType    { return RequestTableSchemas }
func (SQLBlockRequest) Type() RequestType { return RequestSQLBlockSchemas }
func (CompileError) Type() RequestType    { return RequestError }
func (Complete) Type() RequestType        { return RequestComplete }
func (Run) Type() RequestType             { return RequestRun }
func (Unknown) Type() RequestType         { return RequestUnknown }

// NoOp never goes on the wire; it reports as Complete.
func (NoOp) Type() RequestType { return RequestComplete }
