// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result is an executed query: a JSON array of row objects and the number of
// rows the query produced. Data holds at most the requested row limit.
type Result struct {
	Columns   []string
	Data      string
	TotalRows int
}

// Execute runs sql and encodes up to maxRows rows; maxRows <= 0 keeps every row.
func (w *Warehouse) Execute(ctx context.Context, sql string, maxRows int) (*Result, error) {
	start := time.Now()
	rows, err := w.db.QueryContext(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("execute on %s: %w", w.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0)
	total := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		total++
		if maxRows > 0 && len(out) >= maxRows {
			continue
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = jsonValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute on %s: %w", w.name, err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("JSON marshal error: %w", err)
	}
	w.log.Debug("executed query",
		zap.Int("rows", total),
		zap.Duration("duration", time.Since(start)))
	return &Result{Columns: cols, Data: string(data), TotalRows: total}, nil
}

// jsonValue converts driver values into JSON-serializable ones.
func jsonValue(val any) any {
	switch v := val.(type) {
	case []byte:
		// Handle UUID and other byte arrays as strings
		if len(v) == 16 {
			return formatUUID([16]byte(v))
		}
		return string(v)
	case [16]byte:
		return formatUUID(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return val
}

func formatUUID(v [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
}
