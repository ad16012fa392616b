package warehouse

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"compilerd/service/internal/compiler"
	"compilerd/service/internal/dsn"
)

func openSQLite(t *testing.T) *Warehouse {
	t.Helper()
	ctx := context.Background()
	w, err := Open(ctx, "local", "sqlite::memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = w.DB().ExecContext(ctx, `
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			status VARCHAR(16),
			amount DECIMAL(10,2),
			paid BOOLEAN,
			created_at DATETIME,
			payload JSON,
			raw BLOB
		)`)
	require.NoError(t, err)
	_, err = w.DB().ExecContext(ctx, `INSERT INTO orders (id, status, amount, paid) VALUES
		(1, 'paid', 10.5, 1), (2, 'open', 3, 0), (3, 'paid', 7, 1)`)
	require.NoError(t, err)
	return w
}

func TestTableSchemaSQLite(t *testing.T) {
	w := openSQLite(t)
	sd, err := w.TableSchema(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, compiler.StructTypeStruct, sd.Type)
	assert.Equal(t, "postgres", sd.Dialect)
	assert.Equal(t, compiler.StructSource{Type: compiler.SourceTypeTable, TablePath: "orders"}, sd.StructSource)
	assert.Equal(t, "local", sd.StructRelationship.ConnectionName)
	assert.Equal(t, []compiler.FieldDef{
		{Name: "id", Type: TypeNumber},
		{Name: "status", Type: TypeString},
		{Name: "amount", Type: TypeNumber},
		{Name: "paid", Type: TypeBoolean},
		{Name: "created_at", Type: TypeTimestamp},
		{Name: "payload", Type: TypeJSON},
		{Name: "raw", Type: compiler.UnsupportedField},
	}, sd.Fields)

	again, err := w.TableSchema(context.Background(), "orders")
	require.NoError(t, err)
	assert.Same(t, sd, again, "cached")

	schema, err := w.TableSchema(context.Background(), "main.orders")
	require.NoError(t, err)
	assert.Len(t, schema.Fields, 7)

	_, err = w.TableSchema(context.Background(), "missing")
	assert.ErrorContains(t, err, `table "missing" not found`)
}

func TestSQLBlockSchemaSQLite(t *testing.T) {
	w := openSQLite(t)
	block := compiler.MissingSQLBlock{Name: "paid", Connection: "local", SQL: "SELECT id, status FROM orders WHERE paid = 1;"}
	sd, err := w.SQLBlockSchema(context.Background(), block)
	require.NoError(t, err)
	assert.Equal(t, "paid", sd.Name)
	assert.Equal(t, compiler.SourceTypeSQL, sd.StructSource.Type)
	require.NotNil(t, sd.StructSource.SQLBlock)
	assert.Equal(t, block.SQL, sd.StructSource.SQLBlock.SelectStr)
	assert.Equal(t, []string{"id", "status"}, []string{sd.Fields[0].Name, sd.Fields[1].Name})

	_, err = w.SQLBlockSchema(context.Background(), compiler.MissingSQLBlock{Name: "bad", SQL: "SELECT nope FROM nowhere"})
	assert.Error(t, err)
}

func TestExecuteSQLite(t *testing.T) {
	w := openSQLite(t)
	res, err := w.Execute(context.Background(), "SELECT id, status FROM orders ORDER BY id", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "status"}, res.Columns)
	assert.Equal(t, 3, res.TotalRows)
	assert.JSONEq(t, `[{"id":1,"status":"paid"},{"id":2,"status":"open"}]`, res.Data)

	res, err = w.Execute(context.Background(), "SELECT id FROM orders WHERE id > 100", 0)
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Data)
	assert.Equal(t, 0, res.TotalRows)
}

func TestTableSchemaPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("analytics", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "bigint").
			AddRow("email", "character varying").
			AddRow("created", "timestamp with time zone").
			AddRow("tags", "ARRAY"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).AddRow("id", "uuid"))

	w := New("warehouse", dsn.DBTypePostgreSQL, db, nil)
	sd, err := w.TableSchema(context.Background(), "analytics.orders")
	require.NoError(t, err)
	assert.Equal(t, []compiler.FieldDef{
		{Name: "id", Type: TypeNumber},
		{Name: "email", Type: TypeString},
		{Name: "created", Type: TypeTimestamp},
		{Name: "tags", Type: compiler.UnsupportedField},
	}, sd.Fields)
	assert.Equal(t, "warehouse", sd.StructRelationship.ConnectionName)

	sd, err = w.TableSchema(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, []compiler.FieldDef{{Name: "id", Type: TypeString}}, sd.Fields)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFieldType(t *testing.T) {
	tests := []struct {
		db       dsn.DBType
		declared string
		want     string
	}{
		{dsn.DBTypePostgreSQL, "numeric(12,2)", TypeNumber},
		{dsn.DBTypePostgreSQL, "jsonb", TypeJSON},
		{dsn.DBTypePostgreSQL, "DATE", TypeDate},
		{dsn.DBTypePostgreSQL, "point", compiler.UnsupportedField},
		{dsn.DBTypePostgreSQL, "interval", compiler.UnsupportedField},
		{dsn.DBTypeSQLite, "", TypeString},
		{dsn.DBTypeSQLite, "UNSIGNED BIG INT", TypeNumber},
		{dsn.DBTypeSQLite, "NATIVE CHARACTER(70)", TypeString},
		{dsn.DBTypeSQLite, "FLOATING", TypeNumber},
	}
	for _, tt := range tests {
		t.Run(string(tt.db)+"/"+tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldType(tt.db, tt.declared))
		})
	}
}

func TestJSONValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	assert.Equal(t, "12345678-9abc-def0-0102-030405060708", jsonValue(id))
	assert.Equal(t, "12345678-9abc-def0-0102-030405060708", jsonValue(id[:]))
	assert.Equal(t, "abc", jsonValue([]byte("abc")))
	assert.Nil(t, jsonValue(nil))
}

func TestPool(t *testing.T) {
	ctx := context.Background()
	var asked []string
	p := NewPool(map[string]string{"local": "sqlite::memory:"}, func(name string) (string, error) {
		asked = append(asked, name)
		if name == "stored" {
			return "sqlite::memory:", nil
		}
		return "", assert.AnError
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { assert.NoError(t, p.Close()) })

	w1, err := p.Get(ctx, "local")
	require.NoError(t, err)
	w2, err := p.Get(ctx, "local")
	require.NoError(t, err)
	assert.Same(t, w1, w2)

	stored, err := p.Get(ctx, "stored")
	require.NoError(t, err)
	assert.Equal(t, "stored", stored.Name())

	_, err = p.Get(ctx, "missing")
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, `no DSN for connection "missing"`)
	assert.Equal(t, []string{"stored", "missing"}, asked)
}
