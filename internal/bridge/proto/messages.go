// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package compilerpb holds the wire messages of the malloy.services.v1.Compiler service.
// Messages are encoded in the protobuf binary format with protowire; field numbers
// follow compiler.proto and unknown fields are skipped on decode.
package compilerpb

import "fmt"

// CompileRequest_Type tags an inbound stream message.
type CompileRequest_Type int32

const (
	CompileRequest_COMPILE           CompileRequest_Type = 0
	CompileRequest_REFERENCES        CompileRequest_Type = 1
	CompileRequest_TABLE_SCHEMAS     CompileRequest_Type = 2
	CompileRequest_SQL_BLOCK_SCHEMAS CompileRequest_Type = 3
	CompileRequest_RESULTS           CompileRequest_Type = 4
)

var compileRequestTypeNames = map[CompileRequest_Type]string{
	CompileRequest_COMPILE:           "COMPILE",
	CompileRequest_REFERENCES:        "REFERENCES",
	CompileRequest_TABLE_SCHEMAS:     "TABLE_SCHEMAS",
	CompileRequest_SQL_BLOCK_SCHEMAS: "SQL_BLOCK_SCHEMAS",
	CompileRequest_RESULTS:           "RESULTS",
}

func (t CompileRequest_Type) String() string {
	if s, ok := compileRequestTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("%d", int32(t))
}

// CompileRequest_Mode selects whether the server asks for execution results.
type CompileRequest_Mode int32

const (
	CompileRequest_COMPILE_AND_RENDER CompileRequest_Mode = 0
	CompileRequest_COMPILE_ONLY       CompileRequest_Mode = 1
)

func (m CompileRequest_Mode) String() string {
	switch m {
	case CompileRequest_COMPILE_AND_RENDER:
		return "COMPILE_AND_RENDER"
	case CompileRequest_COMPILE_ONLY:
		return "COMPILE_ONLY"
	}
	return fmt.Sprintf("%d", int32(m))
}

// CompilerRequest_Type tags an outbound stream message.
type CompilerRequest_Type int32

const (
	CompilerRequest_UNKNOWN           CompilerRequest_Type = 0
	CompilerRequest_IMPORT            CompilerRequest_Type = 1
	CompilerRequest_TABLE_SCHEMAS     CompilerRequest_Type = 2
	CompilerRequest_SQL_BLOCK_SCHEMAS CompilerRequest_Type = 3
	CompilerRequest_COMPLETE          CompilerRequest_Type = 4
	CompilerRequest_RUN               CompilerRequest_Type = 5
	CompilerRequest_ERROR             CompilerRequest_Type = 6
)

var compilerRequestTypeNames = map[CompilerRequest_Type]string{
	CompilerRequest_UNKNOWN:           "UNKNOWN",
	CompilerRequest_IMPORT:            "IMPORT",
	CompilerRequest_TABLE_SCHEMAS:     "TABLE_SCHEMAS",
	CompilerRequest_SQL_BLOCK_SCHEMAS: "SQL_BLOCK_SCHEMAS",
	CompilerRequest_COMPLETE:          "COMPLETE",
	CompilerRequest_RUN:               "RUN",
	CompilerRequest_ERROR:             "ERROR",
}

func (t CompilerRequest_Type) String() string {
	if s, ok := compilerRequestTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("%d", int32(t))
}

// CompileDocument is a source document.
type CompileDocument struct {
	Url     string
	Content string
}

// SqlBlockSchema is a client-computed SQL block schema; Schema holds StructDef JSON.
type SqlBlockSchema struct {
	Name   string
	Sql    string
	Schema string
}

// QueryResult carries rows produced for a RUN request.
type QueryResult struct {
	Data      string
	TotalRows int32
}

// CompileRequest is sent by clients, both on the stream and to the unary Compile.
type CompileRequest struct {
	Type            CompileRequest_Type
	Document        *CompileDocument
	References      []*CompileDocument
	Schema          string
	SqlBlockSchemas []*SqlBlockSchema
	Query           string
	NamedQuery      string
	Mode            CompileRequest_Mode
	QueryResult     *QueryResult
}

// CompileResponse is the unary Compile result.
type CompileResponse struct {
	Model string
	Sql   string
}

// TableSchema names a missing table.
type TableSchema struct {
	Key        string
	Connection string
	Table      string
}

// SqlBlock names a missing SQL block schema.
type SqlBlock struct {
	Name       string
	Sql        string
	Connection string
}

// Problem is a compiler diagnostic. Line is 1-based; 0 means unknown.
type Problem struct {
	Severity string
	Message  string
	Line     int32
}

// CompilerRequest is sent by the server on the stream.
type CompilerRequest struct {
	Type           CompilerRequest_Type
	ImportUrls     []string
	TableSchemas   []*TableSchema
	SqlBlock       *SqlBlock
	Connections    []string
	Content        string
	Connection     string
	RenderContent  string
	Problems       []*Problem
	PreparedResult string
}

// GetDocument returns the document or nil.
func (x *CompileRequest) GetDocument() *CompileDocument {
	if x == nil {
		return nil
	}
	return x.Document
}

// GetQueryResult returns the query result or nil.
func (x *CompileRequest) GetQueryResult() *QueryResult {
	if x == nil {
		return nil
	}
	return x.QueryResult
}
