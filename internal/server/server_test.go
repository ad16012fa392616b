package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	compilerpb "compilerd/service/internal/bridge/proto"
	"compilerd/service/internal/compiler/lite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const ordersSchema = `{"schemas":{"orders":{"type":"struct","name":"orders",` +
	`"structSource":{"type":"table","tablePath":"orders"},` +
	`"structRelationship":{"type":"basetable","connectionName":"default_connection"},` +
	`"fields":[{"name":"id","type":"number"},{"name":"amount","type":"number"}]}}}`

type harness struct {
	client compilerpb.CompilerClient
	health healthpb.HealthClient
	cancel context.CancelFunc
	errc   chan error
	conn   *grpc.ClientConn
}

func start(t *testing.T, opts ServiceOptions) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	opts.Logger = log
	srv, err := New(NewService(lite.New(), opts), Options{Logger: log, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(compilerpb.Codec{})))
	require.NoError(t, err)

	h := &harness{
		client: compilerpb.NewCompilerClient(conn),
		health: healthpb.NewHealthClient(conn),
		cancel: cancel,
		errc:   errc,
		conn:   conn,
	}
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	_ = h.conn.Close()
	h.cancel()
	<-h.errc
}

func (h *harness) stream(t *testing.T) compilerpb.Compiler_CompileStreamClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	s, err := h.client.CompileStream(ctx)
	require.NoError(t, err)
	return s
}

func roundTrip(t *testing.T, s compilerpb.Compiler_CompileStreamClient, req *compilerpb.CompileRequest) *compilerpb.CompilerRequest {
	t.Helper()
	require.NoError(t, s.Send(req))
	resp, err := s.Recv()
	require.NoError(t, err)
	return resp
}

func TestStreamCompileOnly(t *testing.T) {
	h := start(t, ServiceOptions{})
	s := h.stream(t)

	resp := roundTrip(t, s, &compilerpb.CompileRequest{
		Type:     compilerpb.CompileRequest_COMPILE,
		Document: &compilerpb.CompileDocument{Url: "m.malloy", Content: "// empty model\n"},
		Mode:     compilerpb.CompileRequest_COMPILE_ONLY,
	})
	assert.Equal(t, compilerpb.CompilerRequest_COMPLETE, resp.Type)
	assert.Contains(t, resp.Content, `"url":"m.malloy"`)
	require.NoError(t, s.CloseSend())
}

func TestStreamNegotiation(t *testing.T) {
	h := start(t, ServiceOptions{})
	s := h.stream(t)

	resp := roundTrip(t, s, &compilerpb.CompileRequest{
		Type:       compilerpb.CompileRequest_COMPILE,
		Document:   &compilerpb.CompileDocument{Url: "m.malloy", Content: "import \"base.malloy\"\nquery: q1 is orders -> { select: id }\n"},
		NamedQuery: "q1",
		Mode:       compilerpb.CompileRequest_COMPILE_ONLY,
	})
	require.Equal(t, compilerpb.CompilerRequest_IMPORT, resp.Type)
	assert.Equal(t, []string{"base.malloy"}, resp.ImportUrls)

	resp = roundTrip(t, s, &compilerpb.CompileRequest{
		Type:       compilerpb.CompileRequest_REFERENCES,
		References: []*compilerpb.CompileDocument{{Url: "base.malloy", Content: "source: orders is table('orders')\n"}},
	})
	require.Equal(t, compilerpb.CompilerRequest_TABLE_SCHEMAS, resp.Type)
	want := []*compilerpb.TableSchema{{Key: "orders", Connection: "default_connection", Table: "orders"}}
	if diff := cmp.Diff(want, resp.TableSchemas); diff != "" {
		t.Errorf("table schemas mismatch (-want +got):\n%s", diff)
	}

	resp = roundTrip(t, s, &compilerpb.CompileRequest{
		Type:   compilerpb.CompileRequest_TABLE_SCHEMAS,
		Schema: ordersSchema,
	})
	require.Equal(t, compilerpb.CompilerRequest_COMPLETE, resp.Type)
	assert.Equal(t, "SELECT base.`id`\nFROM `orders` AS base", resp.Content)
	assert.Equal(t, "default_connection", resp.Connection)
	assert.NotEmpty(t, resp.PreparedResult)
	require.NoError(t, s.CloseSend())
}

func TestStreamRunAndRender(t *testing.T) {
	h := start(t, ServiceOptions{})
	s := h.stream(t)

	require.NoError(t, s.Send(&compilerpb.CompileRequest{Type: compilerpb.CompileRequest_TABLE_SCHEMAS, Schema: ordersSchema}))
	resp, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, compilerpb.CompilerRequest_ERROR, resp.Type, "no model url yet")

	resp = roundTrip(t, s, &compilerpb.CompileRequest{
		Type:     compilerpb.CompileRequest_COMPILE,
		Document: &compilerpb.CompileDocument{Url: "m.malloy", Content: "source: orders is table('orders')\n"},
		Query:    "orders -> { select: id, amount }",
	})
	require.Equal(t, compilerpb.CompilerRequest_RUN, resp.Type)
	assert.Equal(t, "default_connection", resp.Connection)

	resp = roundTrip(t, s, &compilerpb.CompileRequest{
		Type:        compilerpb.CompileRequest_RESULTS,
		QueryResult: &compilerpb.QueryResult{Data: `[{"id":1,"amount":9.5}]`, TotalRows: 1},
	})
	require.Equal(t, compilerpb.CompilerRequest_COMPLETE, resp.Type)
	assert.Contains(t, resp.RenderContent, "<table")
	require.NoError(t, s.CloseSend())
}

func TestStreamCompileError(t *testing.T) {
	h := start(t, ServiceOptions{CompileOnly: true})
	s := h.stream(t)

	resp := roundTrip(t, s, &compilerpb.CompileRequest{
		Type:     compilerpb.CompileRequest_COMPILE,
		Document: &compilerpb.CompileDocument{Url: "m.malloy", Content: "\nquery: q is nope -> { select: * }\n"},
	})
	require.Equal(t, compilerpb.CompilerRequest_ERROR, resp.Type)
	assert.Equal(t, "error: source 'nope' is not defined at line 2", resp.Content)
	require.NotEmpty(t, resp.Problems)
	assert.Equal(t, int32(2), resp.Problems[0].Line)

	// the stream stays open for a new compile
	resp = roundTrip(t, s, &compilerpb.CompileRequest{
		Type:     compilerpb.CompileRequest_COMPILE,
		Document: &compilerpb.CompileDocument{Url: "m.malloy", Content: "// fixed\n"},
	})
	assert.Equal(t, compilerpb.CompilerRequest_COMPLETE, resp.Type)
	require.NoError(t, s.CloseSend())
}

func TestUnaryCompile(t *testing.T) {
	h := start(t, ServiceOptions{})
	ctx := context.Background()
	doc := &compilerpb.CompileDocument{Url: "m.malloy", Content: "import \"base.malloy\"\nquery: q1 is orders -> { select: id }\n"}
	base := []*compilerpb.CompileDocument{{Url: "base.malloy", Content: "source: orders is table('orders')\n"}}

	tests := []struct {
		name string
		req  *compilerpb.CompileRequest
		code codes.Code
		msg  string
		sql  string
	}{
		{
			name: "no document",
			req:  &compilerpb.CompileRequest{NamedQuery: "q1"},
			code: codes.InvalidArgument,
			msg:  ErrNoDocument,
		},
		{
			name: "missing import",
			req:  &compilerpb.CompileRequest{Document: doc, NamedQuery: "q1"},
			code: codes.FailedPrecondition,
			msg:  "base.malloy",
		},
		{
			name: "missing table",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, NamedQuery: "q1"},
			code: codes.FailedPrecondition,
			msg:  "No schema data available for {orders} {default_connection} {orders}",
		},
		{
			name: "unknown query",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, Schema: ordersSchema, NamedQuery: "q2"},
			code: codes.InvalidArgument,
			msg:  "q2",
		},
		{
			name: "malformed schema",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, Schema: "{", NamedQuery: "q1"},
			code: codes.InvalidArgument,
			msg:  "invalid schema blob",
		},
		{
			name: "named query",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, Schema: ordersSchema, NamedQuery: "q1"},
			code: codes.OK,
			sql:  "SELECT base.`id`\nFROM `orders` AS base",
		},
		{
			name: "query field names the query",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, Schema: ordersSchema, Query: "q1"},
			code: codes.OK,
			sql:  "SELECT base.`id`\nFROM `orders` AS base",
		},
		{
			name: "query field wins over named_query",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, Schema: ordersSchema, Query: "q1", NamedQuery: "q2"},
			code: codes.OK,
			sql:  "SELECT base.`id`\nFROM `orders` AS base",
		},
		{
			name: "model only",
			req:  &compilerpb.CompileRequest{Document: doc, References: base, Schema: ordersSchema},
			code: codes.OK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.client.Compile(ctx, tt.req)
			if tt.code != codes.OK {
				require.Error(t, err)
				st := status.Convert(err)
				assert.Equal(t, tt.code, st.Code())
				assert.Contains(t, st.Message(), tt.msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sql, resp.Sql)
			assert.Contains(t, resp.Model, `"url":"m.malloy"`)
		})
	}
}

func TestHealth(t *testing.T) {
	h := start(t, ServiceOptions{})
	resp, err := h.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: compilerpb.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestSessionsAreIsolated(t *testing.T) {
	h := start(t, ServiceOptions{})
	a := h.stream(t)
	b := h.stream(t)

	compile := &compilerpb.CompileRequest{
		Type:       compilerpb.CompileRequest_COMPILE,
		Document:   &compilerpb.CompileDocument{Url: "m.malloy", Content: "source: orders is table('orders')\nquery: q1 is orders -> { select: id }\n"},
		NamedQuery: "q1",
		Mode:       compilerpb.CompileRequest_COMPILE_ONLY,
	}
	require.Equal(t, compilerpb.CompilerRequest_TABLE_SCHEMAS, roundTrip(t, a, compile).Type)
	require.Equal(t, compilerpb.CompilerRequest_TABLE_SCHEMAS, roundTrip(t, b, compile).Type)

	resp := roundTrip(t, a, &compilerpb.CompileRequest{Type: compilerpb.CompileRequest_TABLE_SCHEMAS, Schema: ordersSchema})
	assert.Equal(t, compilerpb.CompilerRequest_COMPLETE, resp.Type)

	// b never received the schema
	resp = roundTrip(t, b, &compilerpb.CompileRequest{Type: compilerpb.CompileRequest_REFERENCES})
	assert.Equal(t, compilerpb.CompilerRequest_TABLE_SCHEMAS, resp.Type)

	require.NoError(t, a.CloseSend())
	require.NoError(t, b.CloseSend())
}
