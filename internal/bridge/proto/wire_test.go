package compilerpb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protowire"

	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/compiler"
)

func TestWireLayout(t *testing.T) {
	got := Marshal(&CompileDocument{Url: "a", Content: "b"})
	assert.Equal(t, []byte{0x0a, 0x01, 'a', 0x12, 0x01, 'b'}, got)

	// zero values are omitted
	assert.Empty(t, Marshal(&CompileRequest{}))

	got = Marshal(&Problem{Severity: "error", Line: 3})
	assert.Equal(t, []byte{0x0a, 0x05, 'e', 'r', 'r', 'o', 'r', 0x18, 0x03}, got)
}

func TestUnknownFieldsSkipped(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(CompileRequest_RESULTS))
	b = protowire.AppendTag(b, 42, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, 43, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, 6, protowire.BytesType)
	b = protowire.AppendString(b, "orders -> { select: id }")

	var req CompileRequest
	require.NoError(t, Unmarshal(b, &req))
	assert.Equal(t, CompileRequest_RESULTS, req.Type)
	assert.Equal(t, "orders -> { select: id }", req.Query)
}

func TestMalformedInput(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)
	assert.Error(t, Unmarshal(b, &CompileRequest{}), "wrong wire type")

	b = protowire.AppendTag(nil, 2, protowire.BytesType)
	b = protowire.AppendVarint(b, 10)
	assert.Error(t, Unmarshal(b, &CompileRequest{}), "truncated")
}

func TestCodec(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "proto", c.Name())

	in := &CompilerRequest{
		Type:         CompilerRequest_TABLE_SCHEMAS,
		TableSchemas: []*TableSchema{{Key: "wh:users", Connection: "wh", Table: "users"}, {Key: "t", Connection: "default_connection", Table: "t"}},
		Connections:  []string{"wh", ""},
		Problems:     []*Problem{{Severity: "warning", Message: "m", Line: -1}},
	}
	data, err := c.Marshal(in)
	require.NoError(t, err)
	var out CompilerRequest
	require.NoError(t, c.Unmarshal(data, &out))
	if diff := cmp.Diff(in, &out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// registered protobuf messages go through the standard encoder
	data, err = c.Marshal(&grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	var hc grpc_health_v1.HealthCheckRequest
	require.NoError(t, c.Unmarshal(data, &hc))
	assert.Equal(t, ServiceName, hc.GetService())

	_, err = c.Marshal(struct{}{})
	assert.Error(t, err)
}

func TestRequestConversion(t *testing.T) {
	problems := []compiler.Problem{
		{Severity: compiler.SeverityError, Message: "unknown field 'x'", At: &compiler.Location{Line: 4}},
		{Severity: compiler.SeverityWarning, Message: "explore is deprecated"},
	}
	wire := FromRequest(model.CompileError{Severity: compiler.SeverityError, Message: "unknown field 'x'", Line: 5, Problems: problems})
	assert.Equal(t, CompilerRequest_ERROR, wire.Type)
	assert.Equal(t, "error: unknown field 'x' at line 5", wire.Content)
	require.Len(t, wire.Problems, 2)
	assert.Equal(t, int32(5), wire.Problems[0].Line)
	assert.Equal(t, int32(0), wire.Problems[1].Line)

	back := ToRequest(wire)
	want := model.CompileError{
		Message: "error: unknown field 'x' at line 5",
		Problems: []compiler.Problem{
			{Severity: compiler.SeverityError, Message: "unknown field 'x'", At: &compiler.Location{Line: 4}},
			{Severity: compiler.SeverityWarning, Message: "explore is deprecated"},
		},
	}
	if diff := cmp.Diff(want, back); diff != "" {
		t.Errorf("ToRequest mismatch (-want +got):\n%s", diff)
	}

	noop := FromRequest(model.NoOp{Problems: problems[1:]})
	assert.Equal(t, CompilerRequest_COMPLETE, noop.Type)
	assert.Len(t, noop.Problems, 1)

	sb := ToRequest(FromRequest(model.SQLBlockRequest{Block: compiler.MissingSQLBlock{Name: "recent", Connection: "wh", SQL: "SELECT 1"}}))
	assert.Equal(t, model.SQLBlockRequest{Block: compiler.MissingSQLBlock{Name: "recent", Connection: "wh", SQL: "SELECT 1"}}, sb)

	run := ToRequest(FromRequest(model.Run{SQL: "SELECT 1", Connection: "wh"}))
	assert.Equal(t, model.Run{SQL: "SELECT 1", Connection: "wh"}, run)
}

func TestInboundConversion(t *testing.T) {
	in := &model.Inbound{
		Type:            model.InboundCompile,
		Document:        &model.Document{URL: "main.malloy", Content: "source: t is table('t')"},
		References:      []model.Document{{URL: "a.malloy", Content: ""}},
		SQLBlockSchemas: []model.SQLBlockSchema{{Name: "b", SQL: "SELECT 1", Schema: "{}"}},
		NamedQuery:      "q1",
		Mode:            model.ModeCompileOnly,
		QueryResult:     &model.QueryResult{Data: "[]", TotalRows: 0},
	}
	data := Marshal(FromInbound(in))
	var x CompileRequest
	require.NoError(t, Unmarshal(data, &x))
	if diff := cmp.Diff(in, ToInbound(&x)); diff != "" {
		t.Errorf("inbound mismatch (-want +got):\n%s", diff)
	}
}
