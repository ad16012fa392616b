// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schemastore

import "strings"

// DefaultConnection is the identity of the implicit, unqualified connection.
const DefaultConnection = "default_connection"

// TableKey is a parsed table key. Connection is empty when the key carried no qualifier.
type TableKey struct {
	Connection string
	Table      string
}

// ParseTableKey splits "conn:table" into its parts. A key without a colon is unqualified.
// Only the first colon separates; the rest belongs to the table path.
func ParseTableKey(key string) TableKey {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return TableKey{Connection: key[:i], Table: key[i+1:]}
	}
	return TableKey{Table: strings.TrimPrefix(key, ":")}
}

// Qualified reports whether the key named a connection.
func (k TableKey) Qualified() bool { return k.Connection != "" }

// Canonical returns the cache key of a table on the given connection: the bare table
// path on the default connection, "conn:table" everywhere else.
func Canonical(connection, table, defaultName string) string {
	if connection == "" || connection == defaultName {
		return table
	}
	return connection + ":" + table
}

// Normalize resolves a raw key to (connection, canonical key). The key's qualifier wins,
// then fallback, then the default connection.
func Normalize(key, fallback, defaultName string) (connection, canonical string) {
	k := ParseTableKey(key)
	connection = k.Connection
	if connection == "" {
		connection = fallback
	}
	if connection == "" {
		connection = defaultName
	}
	return connection, Canonical(connection, k.Table, defaultName)
}
