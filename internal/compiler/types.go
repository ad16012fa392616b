// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compiler

import (
	"encoding/json"
	"fmt"
)

// Structure kinds and relationship types found in StructDef JSON.
const (
	StructTypeStruct  = "struct"
	SourceTypeTable   = "table"
	SourceTypeSQL     = "sql"
	RelationBaseTable = "basetable"
	DefaultFieldType  = "string"
	UnsupportedField  = "unsupported"
)

// FieldDef is a single column of a structure.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SQLBlock is an SQL statement whose result shape the compiler needs.
type SQLBlock struct {
	Name       string `json:"name"`
	Connection string `json:"connection,omitempty"`
	SelectStr  string `json:"selectStr"`
}

// StructSource says where a structure's rows come from.
type StructSource struct {
	Type      string    `json:"type"`
	TablePath string    `json:"tablePath,omitempty"`
	SQLBlock  *SQLBlock `json:"sqlBlock,omitempty"`
}

// StructRelationship ties a structure to the connection it lives on.
type StructRelationship struct {
	Type           string `json:"type"`
	ConnectionName string `json:"connectionName,omitempty"`
}

// StructDef is the schema descriptor of a table or SQL block, supplied by clients.
type StructDef struct {
	Type               string             `json:"type"`
	Name               string             `json:"name"`
	Dialect            string             `json:"dialect,omitempty"`
	StructSource       StructSource       `json:"structSource"`
	StructRelationship StructRelationship `json:"structRelationship"`
	Fields             []FieldDef         `json:"fields"`
}

// Field returns the named field and whether it exists.
func (s *StructDef) Field(name string) (FieldDef, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// IsBaseTable reports whether the structure is bound directly to a connection.
func (s *StructDef) IsBaseTable() bool {
	return s.StructRelationship.Type == "" || s.StructRelationship.Type == RelationBaseTable
}

// ParseStructDef decodes a single StructDef from JSON.
func ParseStructDef(raw []byte) (*StructDef, error) {
	var sd StructDef
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, fmt.Errorf("decode struct def: %w", err)
	}
	return &sd, nil
}

// SchemaBlob is the `{schemas: {key: StructDef}}` document clients send with table schemas.
type SchemaBlob struct {
	Schemas map[string]*StructDef `json:"schemas"`
}

// ParseSchemaBlob decodes a schema blob. An empty input yields an empty blob.
func ParseSchemaBlob(raw string) (*SchemaBlob, error) {
	blob := &SchemaBlob{Schemas: map[string]*StructDef{}}
	if raw == "" {
		return blob, nil
	}
	if err := json.Unmarshal([]byte(raw), blob); err != nil {
		return nil, fmt.Errorf("decode schema blob: %w", err)
	}
	if blob.Schemas == nil {
		blob.Schemas = map[string]*StructDef{}
	}
	return blob, nil
}

// TableRef identifies a table as the compiler asked for it.
type TableRef struct {
	Key        string `json:"key"`
	Connection string `json:"connection"`
	Table      string `json:"table"`
}

// SourceDef is a named source in a compiled model.
type SourceDef struct {
	Name      string     `json:"name"`
	Structure *StructDef `json:"structDef"`
}

// QueryDef is a query declared in (or compiled against) a model.
type QueryDef struct {
	Name    string   `json:"name,omitempty"`
	Source  string   `json:"source"`
	Select  []string `json:"select"`
	Where   string   `json:"where,omitempty"`
	OrderBy string   `json:"orderBy,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// ModelDef is the serializable form of a compiled model.
type ModelDef struct {
	URL     string                `json:"url"`
	Sources map[string]*SourceDef `json:"contents"`
	Queries map[string]*QueryDef  `json:"queries"`
	Exports []string              `json:"exports"`
}

// PreparedResult is a fully resolved query plan and its generated SQL.
type PreparedResult struct {
	ConnectionName string     `json:"connectionName"`
	SQL            string     `json:"sql"`
	SourceName     string     `json:"sourceName"`
	Fields         []FieldDef `json:"fields"`
	Query          *QueryDef  `json:"query"`
	Problems       []Problem  `json:"-"`
}
