// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dialect holds the SQL dialects the reference compiler can emit.
package dialect

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect controls identifier quoting in generated SQL.
type Dialect interface {
	Name() string
	// QuoteTablePath quotes a (possibly dotted) table path.
	QuoteTablePath(path string) string
	// QuoteIdentifier quotes a single column or alias name.
	QuoteIdentifier(name string) string
}

// Default is used when a schema does not name a dialect.
const Default = "standardsql"

type standardSQL struct{}

func (standardSQL) Name() string                       { return "standardsql" }
func (standardSQL) QuoteTablePath(path string) string  { return "`" + path + "`" }
func (standardSQL) QuoteIdentifier(name string) string { return "`" + name + "`" }

type doubleQuoted struct{ name string }

func (d doubleQuoted) Name() string { return d.name }

func (doubleQuoted) QuoteTablePath(path string) string {
	parts := strings.Split(path, ".")
	for i, p := range parts {
		parts[i] = quoteDouble(p)
	}
	return strings.Join(parts, ".")
}

func (doubleQuoted) QuoteIdentifier(name string) string { return quoteDouble(name) }

func quoteDouble(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// f1 paths are passed through untouched; the engine resolves them itself.
type f1 struct{}

func (f1) Name() string                       { return "f1" }
func (f1) QuoteTablePath(path string) string  { return path }
func (f1) QuoteIdentifier(name string) string { return name }

var registry = map[string]Dialect{
	"standardsql": standardSQL{},
	"postgres":    doubleQuoted{name: "postgres"},
	"duckdb":      doubleQuoted{name: "duckdb"},
	"f1":          f1{},
}

// Lookup returns the dialect by name. An empty name selects the default.
func Lookup(name string) (Dialect, error) {
	if name == "" {
		name = Default
	}
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists the registered dialect names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
