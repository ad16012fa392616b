package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteTablePath(t *testing.T) {
	tests := []struct {
		dialect string
		path    string
		want    string
	}{
		{dialect: "", path: "analytics.orders", want: "`analytics.orders`"},
		{dialect: "standardsql", path: "orders", want: "`orders`"},
		{dialect: "postgres", path: "public.orders", want: `"public"."orders"`},
		{dialect: "DuckDB", path: `we"ird`, want: `"we""ird"`},
		{dialect: "f1", path: "/cluster/db.orders", want: "/cluster/db.orders"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.path, func(t *testing.T) {
			d, err := Lookup(tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.QuoteTablePath(tt.path))
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "standardsql")
}
