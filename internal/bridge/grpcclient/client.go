// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package grpcclient provides a gRPC-backed implementation of the Bridge interface.
// It opens the Compiler.CompileStream bidi stream, sends client messages and delivers
// every server request on a channel, converting between the wire messages and the
// transport-agnostic model types.
package grpcclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"compilerd/service/internal/bridge/model"
	compilerpb "compilerd/service/internal/bridge/proto"
)

// DefaultPort is used when the address carries none.
const DefaultPort = "14310"

// DialOptions configures Connect.
type DialOptions struct {
	// Insecure disables TLS.
	Insecure bool
	// MaxMessageBytes bounds message sizes; 0 keeps the gRPC default.
	MaxMessageBytes int
	// Dialer replaces the network dialer, mainly for in-memory tests.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
}

// Client implements bridge.Bridge over the Compiler service.
type Client struct {
	conn   *grpc.ClientConn
	api    compilerpb.CompilerClient
	stream compilerpb.Compiler_CompileStreamClient

	requests chan model.DependencyRequest
	sendMu   sync.Mutex
	err      error
}

// Connect creates the client connection. No I/O happens until the first call.
func (c *Client) Connect(ctx context.Context, addr string, opts DialOptions) error {
	// Derive SNI and ensure default port if missing
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	target := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		target = net.JoinHostPort(addr, DefaultPort)
	}

	creds := insecure.NewCredentials()
	if !opts.Insecure {
		creds = credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	}
	callOpts := []grpc.CallOption{grpc.ForceCodec(compilerpb.Codec{})}
	if opts.MaxMessageBytes > 0 {
		callOpts = append(callOpts, grpc.MaxCallRecvMsgSize(opts.MaxMessageBytes), grpc.MaxCallSendMsgSize(opts.MaxMessageBytes))
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(callOpts...),
	}
	if opts.Dialer != nil {
		dialOpts = append(dialOpts, grpc.WithContextDialer(opts.Dialer))
		target = "passthrough:///" + target
	}

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return err
	}
	c.conn = conn
	c.api = compilerpb.NewCompilerClient(conn)
	return nil
}

// Open starts a CompileStream and the receive loop. The stream lives until ctx ends,
// the server closes it, or Close is called.
func (c *Client) Open(ctx context.Context) error {
	if c.api == nil {
		return errors.New("client not connected")
	}
	stream, err := c.api.CompileStream(ctx)
	if err != nil {
		return err
	}
	c.stream = stream
	c.requests = make(chan model.DependencyRequest, 16)
	go c.receiveLoop()
	return nil
}

// Send sends one client message on the stream.
func (c *Client) Send(_ context.Context, in *model.Inbound) error {
	if c.stream == nil {
		return errors.New("stream not initialized")
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.stream.Send(compilerpb.FromInbound(in))
}

// Requests delivers server requests in order. It is closed when the stream ends.
func (c *Client) Requests() <-chan model.DependencyRequest { return c.requests }

// Err reports why the stream ended. It is nil for a normal close and only
// meaningful once Requests is closed.
func (c *Client) Err() error { return c.err }

// Compile calls the unary method with a fully supplied request.
func (c *Client) Compile(ctx context.Context, in *model.Inbound) (modelJSON, sql string, err error) {
	if c.api == nil {
		return "", "", errors.New("client not connected")
	}
	resp, err := c.api.Compile(ctx, compilerpb.FromInbound(in))
	if err != nil {
		return "", "", err
	}
	return resp.Model, resp.Sql, nil
}

// Close half-closes the stream and tears down the connection.
func (c *Client) Close(context.Context) error {
	if c.stream != nil {
		c.sendMu.Lock()
		_ = c.stream.CloseSend()
		c.sendMu.Unlock()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) receiveLoop() {
	defer close(c.requests)
	for {
		msg, err := c.stream.Recv()
		if err != nil {
			// Differentiate normal close vs error
			if errors.Is(err, io.EOF) {
				return
			}
			if st, ok := status.FromError(err); ok && st.Code() == codes.Canceled {
				c.err = context.Canceled
				return
			}
			c.err = err
			return
		}
		c.requests <- compilerpb.ToRequest(msg)
	}
}
