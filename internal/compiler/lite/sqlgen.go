// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package lite

import (
	"strconv"
	"strings"

	"compilerd/service/internal/compiler"
	"compilerd/service/internal/compiler/dialect"
)

const baseAlias = "base"

// whereKeywords pass through to SQL upper-cased instead of being resolved as fields.
var whereKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "null": true, "is": true,
	"true": true, "false": true, "in": true, "like": true, "between": true,
}

// check validates a query against the model and returns every user error found.
func (m *model) check(q queryExpr, docURL string) []compiler.Problem {
	s, ok := m.sources[q.source]
	if !ok {
		return []compiler.Problem{userError(docURL, q.line, q.col, "source '%s' is not defined", q.source)}
	}
	var problems []compiler.Problem
	field := func(t token) {
		if _, ok := s.structure.Field(t.text); !ok {
			problems = append(problems, userError(docURL, t.line, t.col, "'%s' is not defined in source '%s'", t.text, q.source))
		}
	}
	for _, f := range q.fields {
		field(f)
	}
	for _, t := range q.where {
		if t.kind == tokIdent && !whereKeywords[strings.ToLower(t.text)] {
			field(t)
		}
	}
	if q.orderBy != nil {
		field(*q.orderBy)
	}
	return problems
}

// prepare checks q and generates its SQL.
func (m *model) prepare(q queryExpr, name, docURL string) (*compiler.PreparedResult, error) {
	if problems := m.check(q, docURL); len(problems) > 0 {
		return nil, &compiler.Failure{Problems: problems}
	}
	s := m.sources[q.source]
	d, err := dialect.Lookup(s.structure.Dialect)
	if err != nil {
		return nil, &compiler.Failure{Problems: []compiler.Problem{
			userError(docURL, q.line, q.col, "%v", err),
		}}
	}

	fields := s.structure.Fields
	if !q.selectAll {
		fields = make([]compiler.FieldDef, 0, len(q.fields))
		for _, t := range q.fields {
			f, _ := s.structure.Field(t.text)
			fields = append(fields, f)
		}
	}

	return &compiler.PreparedResult{
		ConnectionName: s.conn,
		SQL:            generateSQL(d, s.structure, fields, q),
		SourceName:     q.source,
		Fields:         fields,
		Query:          queryDef(name, q),
		Problems:       m.warnings,
	}, nil
}

// generateSQL emits SELECT <cols> FROM <from> AS base [WHERE] [ORDER BY] [LIMIT].
func generateSQL(d dialect.Dialect, sd *compiler.StructDef, fields []compiler.FieldDef, q queryExpr) string {
	col := func(name string) string { return baseAlias + "." + d.QuoteIdentifier(name) }

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(fields) == 0 {
		sb.WriteString(baseAlias + ".*")
	}
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col(f.Name))
	}

	sb.WriteString("\nFROM ")
	switch sd.StructSource.Type {
	case compiler.SourceTypeSQL:
		sb.WriteString("(" + sd.StructSource.SQLBlock.SelectStr + ")")
	default:
		sb.WriteString(d.QuoteTablePath(sd.StructSource.TablePath))
	}
	sb.WriteString(" AS " + baseAlias)

	if len(q.where) > 0 {
		parts := make([]string, 0, len(q.where))
		for _, t := range q.where {
			switch {
			case t.kind == tokIdent && whereKeywords[strings.ToLower(t.text)]:
				parts = append(parts, strings.ToUpper(t.text))
			case t.kind == tokIdent:
				parts = append(parts, col(t.text))
			case t.kind == tokString:
				parts = append(parts, "'"+strings.ReplaceAll(t.text, "'", "''")+"'")
			default:
				parts = append(parts, t.text)
			}
		}
		sb.WriteString("\nWHERE " + strings.Join(parts, " "))
	}
	if q.orderBy != nil {
		sb.WriteString("\nORDER BY " + col(q.orderBy.text))
		if q.desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if q.limit > 0 {
		sb.WriteString("\nLIMIT " + strconv.Itoa(q.limit))
	}
	return sb.String()
}

func queryDef(name string, q queryExpr) *compiler.QueryDef {
	def := &compiler.QueryDef{Name: name, Source: q.source, Limit: q.limit}
	if q.selectAll {
		def.Select = []string{"*"}
	}
	for _, f := range q.fields {
		def.Select = append(def.Select, f.text)
	}
	if len(q.where) > 0 {
		parts := make([]string, 0, len(q.where))
		for _, t := range q.where {
			if t.kind == tokString {
				parts = append(parts, "'"+t.text+"'")
				continue
			}
			parts = append(parts, t.text)
		}
		def.Where = strings.Join(parts, " ")
	}
	if q.orderBy != nil {
		def.OrderBy = q.orderBy.text
		if q.desc {
			def.OrderBy += " desc"
		}
	}
	return def
}
