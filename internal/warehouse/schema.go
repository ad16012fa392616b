// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"compilerd/service/internal/compiler"
	"compilerd/service/internal/dsn"
)

const postgresColumnsQuery = `
	SELECT column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position`

const (
	sqliteColumnsQuery       = `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`
	sqliteSchemaColumnsQuery = `SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid`
)

// TableSchema inspects a table into a StructDef. Results are cached per path.
// The path can be either "table" or "schema.table".
func (w *Warehouse) TableSchema(ctx context.Context, path string) (*compiler.StructDef, error) {
	w.mu.RLock()
	if sd, ok := w.cache[path]; ok {
		w.mu.RUnlock()
		return sd, nil
	}
	w.mu.RUnlock()

	fields, err := w.loadColumns(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %q not found on connection %s", path, w.name)
	}
	sd := w.structDef(path, fields)
	sd.StructSource = compiler.StructSource{Type: compiler.SourceTypeTable, TablePath: path}

	w.mu.Lock()
	w.cache[path] = sd
	w.mu.Unlock()
	w.log.Debug("inspected table", zap.String("table", path), zap.Int("fields", len(fields)))
	return sd, nil
}

// SQLBlockSchema describes the result columns of an SQL block without fetching rows.
func (w *Warehouse) SQLBlockSchema(ctx context.Context, block compiler.MissingSQLBlock) (*compiler.StructDef, error) {
	query := fmt.Sprintf("SELECT * FROM (%s) AS block LIMIT 0", strings.TrimRight(strings.TrimSpace(block.SQL), ";"))
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("describe SQL block %s: %w", block.Name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("describe SQL block %s: %w", block.Name, err)
	}
	fields := make([]compiler.FieldDef, 0, len(types))
	for _, ct := range types {
		fields = append(fields, compiler.FieldDef{Name: ct.Name(), Type: FieldType(w.dbType, ct.DatabaseTypeName())})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sd := w.structDef(block.Name, fields)
	sd.StructSource = compiler.StructSource{
		Type:     compiler.SourceTypeSQL,
		SQLBlock: &compiler.SQLBlock{Name: block.Name, Connection: w.name, SelectStr: block.SQL},
	}
	return sd, nil
}

func (w *Warehouse) structDef(name string, fields []compiler.FieldDef) *compiler.StructDef {
	return &compiler.StructDef{
		Type:               compiler.StructTypeStruct,
		Name:               name,
		Dialect:            w.dbType.Dialect(),
		StructRelationship: compiler.StructRelationship{Type: compiler.RelationBaseTable, ConnectionName: w.name},
		Fields:             fields,
	}
}

func (w *Warehouse) loadColumns(ctx context.Context, path string) ([]compiler.FieldDef, error) {
	var (
		rows *sql.Rows
		err  error
	)
	schema, table := parseTableName(path, w.defaultSchema())
	switch {
	case w.dbType != dsn.DBTypeSQLite:
		rows, err = w.db.QueryContext(ctx, postgresColumnsQuery, schema, table)
	case schema == "main":
		rows, err = w.db.QueryContext(ctx, sqliteColumnsQuery, table)
	default:
		rows, err = w.db.QueryContext(ctx, sqliteSchemaColumnsQuery, table, schema)
	}
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	defer rows.Close()

	var fields []compiler.FieldDef
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("inspect %s: %w", path, err)
		}
		fields = append(fields, compiler.FieldDef{Name: name, Type: FieldType(w.dbType, declared)})
	}
	return fields, rows.Err()
}

func (w *Warehouse) defaultSchema() string {
	if w.dbType == dsn.DBTypeSQLite {
		return "main"
	}
	return "public"
}

// parseTableName splits a table path into schema and table components.
func parseTableName(path, defaultSchema string) (schema string, table string) {
	if s, t, ok := strings.Cut(path, "."); ok {
		return s, t
	}
	return defaultSchema, path
}

