package schemastore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compilerd/service/internal/compiler"
)

func tableDef(name, conn string) *compiler.StructDef {
	return &compiler.StructDef{
		Type: compiler.StructTypeStruct,
		Name: name,
		StructSource: compiler.StructSource{
			Type:      compiler.SourceTypeTable,
			TablePath: name,
		},
		StructRelationship: compiler.StructRelationship{
			Type:           compiler.RelationBaseTable,
			ConnectionName: conn,
		},
		Fields: []compiler.FieldDef{{Name: "id", Type: "number"}},
	}
}

func TestParseTableKey(t *testing.T) {
	tests := []struct {
		key  string
		want TableKey
	}{
		{key: "orders", want: TableKey{Table: "orders"}},
		{key: "warehouse:analytics.orders", want: TableKey{Connection: "warehouse", Table: "analytics.orders"}},
		{key: "bq:proj:ds.t", want: TableKey{Connection: "bq", Table: "proj:ds.t"}},
		{key: ":orders", want: TableKey{Table: "orders"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseTableKey(tt.key)); diff != "" {
				t.Errorf("ParseTableKey mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		fallback string
		wantConn string
		wantKey  string
	}{
		{name: "bare", key: "orders", wantConn: DefaultConnection, wantKey: "orders"},
		{name: "default qualified", key: "default_connection:orders", wantConn: DefaultConnection, wantKey: "orders"},
		{name: "named", key: "wh:orders", wantConn: "wh", wantKey: "wh:orders"},
		{name: "fallback", key: "orders", fallback: "wh", wantConn: "wh", wantKey: "wh:orders"},
		{name: "qualifier beats fallback", key: "bq:orders", fallback: "wh", wantConn: "bq", wantKey: "bq:orders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, key := Normalize(tt.key, tt.fallback, DefaultConnection)
			assert.Equal(t, tt.wantConn, conn)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestDefaultConnectionNormalization(t *testing.T) {
	r := NewRegistry("")
	r.PutTableSchema("default_connection:orders", tableDef("orders", ""))

	found, missing := r.Resolve("").GetTablesSchemas([]string{"orders", "default_connection:orders"})
	assert.Empty(t, missing)
	assert.Len(t, found, 2)
	assert.Same(t, found["orders"], found["default_connection:orders"])
	assert.Equal(t, 1, r.Resolve(DefaultConnection).TableCount())
}

func TestResolveMemoizesAndTracksNames(t *testing.T) {
	r := NewRegistry("")
	a := r.Resolve("wh")
	b := r.Resolve("wh")
	assert.Same(t, a, b)
	assert.Same(t, r.Resolve(""), r.Resolve(DefaultConnection))

	r.Resolve("bq")
	r.Resolve("wh")
	assert.Equal(t, []string{"wh", "bq"}, r.Names())

	conn, err := r.LookupConnection(context.Background(), "pg")
	require.NoError(t, err)
	assert.Equal(t, "pg", conn.Name())
	assert.Equal(t, []string{"wh", "bq", "pg"}, r.Names())
}

func TestFetchSchemaForTablesReportsAllMisses(t *testing.T) {
	r := NewRegistry("")
	r.PutTableSchema("wh:a", tableDef("a", "wh"))
	store := r.Resolve("wh")

	res, err := store.FetchSchemaForTables(context.Background(), map[string]string{
		"wh:a": "a",
		"wh:b": "b",
		"wh:c": "schema.c",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Found, "wh:a")
	want := []compiler.TableRef{
		{Key: "wh:b", Connection: "wh", Table: "b"},
		{Key: "wh:c", Connection: "wh", Table: "schema.c"},
	}
	if diff := cmp.Diff(want, res.Missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaRoutedByConnectionName(t *testing.T) {
	r := NewRegistry("")
	r.PutSchemaBlob(&compiler.SchemaBlob{Schemas: map[string]*compiler.StructDef{
		"orders": tableDef("orders", "wh"),
	}})
	found, missing := r.Resolve("wh").GetTablesSchemas([]string{"wh:orders"})
	assert.Empty(t, missing)
	assert.Len(t, found, 1)

	_, missing = r.Resolve("").GetTablesSchemas([]string{"orders"})
	assert.Equal(t, []string{"orders"}, missing)
}

func TestSQLBlockMissEchoesSQL(t *testing.T) {
	r := NewRegistry("")
	store := r.Resolve("wh")
	_, err := store.FetchSchemaForSQLBlock(context.Background(), compiler.SQLBlock{
		Name:      "recent",
		SelectStr: "SELECT * FROM x",
	})
	var miss *compiler.MissingSQLBlockError
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, compiler.MissingSQLBlock{Name: "recent", Connection: "wh", SQL: "SELECT * FROM x"}, miss.Block)

	sd := tableDef("recent", "wh")
	r.PutSQLBlockSchema("recent", sd)
	got, err := store.FetchSchemaForSQLBlock(context.Background(), compiler.SQLBlock{Name: "recent"})
	require.NoError(t, err)
	assert.Same(t, sd, got)
}

func TestRegistriesAreIsolated(t *testing.T) {
	r1 := NewRegistry("")
	r2 := NewRegistry("")
	r1.PutTableSchema("orders", tableDef("orders", ""))

	_, missing := r2.Resolve("").GetTablesSchemas([]string{"orders"})
	assert.Equal(t, []string{"orders"}, missing)
}

func TestClear(t *testing.T) {
	r := NewRegistry("")
	r.PutTableSchema("wh:orders", tableDef("orders", "wh"))
	r.Clear()
	assert.Empty(t, r.Names())
	assert.Zero(t, r.Resolve("wh").TableCount())
}
