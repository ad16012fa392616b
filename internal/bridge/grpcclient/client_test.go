package grpcclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/compiler"
	"compilerd/service/internal/compiler/lite"
	"compilerd/service/internal/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func connect(t *testing.T) *Client {
	t.Helper()
	log := zaptest.NewLogger(t)
	srv, err := server.New(server.NewService(lite.New(), server.ServiceOptions{Logger: log}), server.Options{Logger: log, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, lis) }()

	c := &Client{}
	require.NoError(t, c.Connect(context.Background(), "bufnet", DialOptions{
		Insecure: true,
		Dialer:   func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) },
	}))
	t.Cleanup(func() {
		_ = c.Close(context.Background())
		cancel()
		require.NoError(t, <-errc)
	})
	return c
}

func next(t *testing.T, c *Client) model.DependencyRequest {
	t.Helper()
	select {
	case req, ok := <-c.Requests():
		require.True(t, ok, "stream ended: %v", c.Err())
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a server request")
	}
	return nil
}

func TestStreamSession(t *testing.T) {
	c := connect(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Open(ctx))

	require.NoError(t, c.Send(ctx, &model.Inbound{
		Type:       model.InboundCompile,
		Document:   &model.Document{URL: "m.malloy", Content: "source: t is warehouse.table('app.t')\nquery: q is t -> { select: id }\n"},
		NamedQuery: "q",
		Mode:       model.ModeCompileOnly,
	}))
	req := next(t, c)
	assert.Equal(t, model.TableSchemas{Tables: []compiler.TableRef{{Key: "warehouse:app.t", Connection: "warehouse", Table: "app.t"}}}, req)

	schema := `{"schemas":{"warehouse:app.t":{"type":"struct","name":"app.t","dialect":"postgres",` +
		`"structSource":{"type":"table","tablePath":"app.t"},` +
		`"structRelationship":{"type":"basetable","connectionName":"warehouse"},` +
		`"fields":[{"name":"id","type":"number"}]}}}`
	require.NoError(t, c.Send(ctx, &model.Inbound{Type: model.InboundTableSchemas, Schema: schema}))
	done, ok := next(t, c).(model.Complete)
	require.True(t, ok)
	assert.Equal(t, "SELECT base.\"id\"\nFROM \"app\".\"t\" AS base", done.Content)
	assert.Equal(t, "warehouse", done.Connection)
	assert.Equal(t, []string{"warehouse"}, done.Connections)

	require.NoError(t, c.Close(ctx))
	_, open := <-c.Requests()
	assert.False(t, open)
	if err := c.Err(); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestUnaryCompile(t *testing.T) {
	c := connect(t)
	_, _, err := c.Compile(context.Background(), &model.Inbound{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	modelJSON, sql, err := c.Compile(context.Background(), &model.Inbound{
		Document: &model.Document{URL: "m.malloy", Content: "// empty\n"},
	})
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Contains(t, modelJSON, `"url":"m.malloy"`)
}

func TestSendBeforeOpen(t *testing.T) {
	c := &Client{}
	assert.Error(t, c.Send(context.Background(), &model.Inbound{}))
	assert.Error(t, c.Open(context.Background()))
	assert.NoError(t, c.Close(context.Background()))
}
