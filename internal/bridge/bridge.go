// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge defines the client side of a compile session, independent of the
// transport carrying it.
package bridge

import (
	"context"

	"compilerd/service/internal/bridge/grpcclient"
	"compilerd/service/internal/bridge/model"
)

// Bridge represents a connection to the compiler service.
type Bridge interface {
	// Connect prepares the transport to addr.
	Connect(ctx context.Context, addr string, opts grpcclient.DialOptions) error
	// Open starts a compile session.
	Open(ctx context.Context) error
	// Send sends one client message.
	Send(ctx context.Context, in *model.Inbound) error
	// Requests returns the server's requests; closed when the session ends.
	Requests() <-chan model.DependencyRequest
	// Err reports why the session ended once Requests is closed.
	Err() error
	// Compile makes a single unary call carrying every dependency up front.
	Compile(ctx context.Context, in *model.Inbound) (modelJSON, sql string, err error)
	Close(ctx context.Context) error
}

// New creates a new bridge instance.
// It returns a gRPC client bridge.
func New() Bridge {
	return &grpcclient.Client{}
}
