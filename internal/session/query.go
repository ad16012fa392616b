// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

// Query is what a COMPILE asks for: the model alone, a named query, or ad-hoc query text.
// The set of variants is closed.
type Query interface {
	isQuery()
}

// CompileOnly resolves the model definition only.
type CompileOnly struct{}

// NamedQuery prepares a query declared in the model.
type NamedQuery struct {
	Name string
}

// AdHocQuery prepares query text against the model.
type AdHocQuery struct {
	Text string
}

func (CompileOnly) isQuery() {}
func (NamedQuery) isQuery()  {}
func (AdHocQuery) isQuery()  {}

// QueryFor picks the query mode of a COMPILE message. A named query wins over query text.
func QueryFor(namedQuery, text string) Query {
	switch {
	case namedQuery != "":
		return NamedQuery{Name: namedQuery}
	case text != "":
		return AdHocQuery{Text: text}
	}
	return CompileOnly{}
}
