// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package warehouse

import (
	"strings"

	"compilerd/service/internal/compiler"
	"compilerd/service/internal/dsn"
)

// Field types understood by the compiler.
const (
	TypeString    = compiler.DefaultFieldType
	TypeNumber    = "number"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeJSON      = "json"
)

var exactTypes = map[string]string{
	"smallint": TypeNumber, "integer": TypeNumber, "int": TypeNumber, "int2": TypeNumber,
	"int4": TypeNumber, "int8": TypeNumber, "bigint": TypeNumber, "tinyint": TypeNumber,
	"numeric": TypeNumber, "decimal": TypeNumber, "real": TypeNumber, "double precision": TypeNumber,
	"double": TypeNumber, "float": TypeNumber, "float4": TypeNumber, "float8": TypeNumber,
	"money": TypeNumber, "smallserial": TypeNumber, "serial": TypeNumber, "bigserial": TypeNumber,

	"boolean": TypeBoolean, "bool": TypeBoolean,

	"date": TypeDate,

	"timestamp": TypeTimestamp, "timestamp without time zone": TypeTimestamp,
	"timestamp with time zone": TypeTimestamp, "timestamptz": TypeTimestamp, "datetime": TypeTimestamp,

	"json": TypeJSON, "jsonb": TypeJSON,

	"text": TypeString, "varchar": TypeString, "character varying": TypeString, "character": TypeString,
	"char": TypeString, "bpchar": TypeString, "nchar": TypeString, "nvarchar": TypeString,
	"uuid": TypeString, "citext": TypeString, "name": TypeString, "clob": TypeString,
	"string": TypeString, "time": TypeString, "time without time zone": TypeString,
}

// FieldType maps a database column type to a compiler field type.
// sqlite declared types fall back to its column affinity rules.
func FieldType(dbType dsn.DBType, declared string) string {
	base := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if t, ok := exactTypes[base]; ok {
		return t
	}
	if dbType != dsn.DBTypeSQLite {
		return compiler.UnsupportedField
	}
	switch {
	case base == "":
		return TypeString
	case strings.Contains(base, "int"):
		return TypeNumber
	case strings.Contains(base, "char"), strings.Contains(base, "clob"), strings.Contains(base, "text"):
		return TypeString
	case strings.Contains(base, "real"), strings.Contains(base, "floa"), strings.Contains(base, "doub"):
		return TypeNumber
	}
	return compiler.UnsupportedField
}
