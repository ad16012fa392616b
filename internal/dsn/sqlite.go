// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"sort"
	"strings"
)

// SQLiteResolver handles sqlite://path, sqlite:path and file:path DSNs.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver {
	return &SQLiteResolver{}
}

// Parse extracts the database path and query parameters.
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	lower := strings.ToLower(dsn)
	var rest string
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		rest = dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		rest = dsn[len("sqlite:"):]
	case strings.HasPrefix(lower, "file:"):
		rest = dsn[len("file:"):]
	default:
		return nil, NewParseError(dsn, "missing or invalid scheme", "use sqlite://path/to/db.sqlite")
	}

	path, query, _ := strings.Cut(rest, "?")
	if path == "" {
		return nil, NewParseError(dsn, "missing database path", "use sqlite://path/to/db.sqlite or sqlite://:memory:")
	}
	info := &DSNInfo{Type: DBTypeSQLite, Path: path, Params: map[string]string{}, Original: dsn}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, NewParseError(dsn, "invalid parameters: "+err.Error(), "")
	}
	for k, v := range values {
		if len(v) > 0 {
			info.Params[k] = v[0]
		}
	}
	return info, nil
}

// Normalize renders the file: form understood by modernc.org/sqlite.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	if info.Path == ":memory:" && len(info.Params) == 0 {
		return ":memory:", nil
	}
	out := "file:" + info.Path
	if len(info.Params) > 0 {
		keys := make([]string, 0, len(info.Params))
		for k := range info.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(info.Params[k]))
		}
		out += "?" + strings.Join(parts, "&")
	}
	return out, nil
}

// Validate checks that the DSN names a database.
func (r *SQLiteResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}
