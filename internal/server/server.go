// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	compilerpb "compilerd/service/internal/bridge/proto"
)

// Options configures the gRPC server.
type Options struct {
	// TLSCert and TLSKey enable TLS when both are set.
	TLSCert string
	TLSKey  string
	// MaxMessageBytes bounds inbound and outbound message sizes; 0 keeps the gRPC default.
	MaxMessageBytes int
	// ShutdownTimeout bounds GracefulStop before open streams are cut.
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// Server hosts the Compiler and health services.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	opts   Options
	log    *zap.Logger
}

// New builds a server around svc.
func New(svc compilerpb.CompilerServer, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	grpcOpts := []grpc.ServerOption{
		grpc.ForceServerCodec(compilerpb.Codec{}),
		grpc.ChainUnaryInterceptor(UnaryLogger(log)),
		grpc.ChainStreamInterceptor(StreamLogger(log)),
	}
	if opts.MaxMessageBytes > 0 {
		grpcOpts = append(grpcOpts,
			grpc.MaxRecvMsgSize(opts.MaxMessageBytes),
			grpc.MaxSendMsgSize(opts.MaxMessageBytes))
	}
	if opts.TLSCert != "" || opts.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(opts.TLSCert, opts.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load tls key pair: %w", err)
		}
		creds := credentials.NewTLS(&tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	}

	gs := grpc.NewServer(grpcOpts...)
	hs := health.NewServer()
	compilerpb.RegisterCompilerServer(gs, svc)
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(compilerpb.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpc: gs, health: hs, opts: opts, log: log}, nil
}

// Serve accepts connections on lis until ctx is cancelled, then shuts down gracefully.
// A nil error means the server stopped because ctx ended.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		s.log.Info("compiler service listening", zap.String("addr", lis.Addr().String()))
		err := s.grpc.Serve(lis)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-done:
			return nil
		}
		s.shutdown()
		return nil
	})

	return g.Wait()
}

// shutdown marks the services NOT_SERVING and drains open streams for at most
// ShutdownTimeout before stopping hard.
func (s *Server) shutdown() {
	s.log.Info("shutting down", zap.Duration("timeout", s.opts.ShutdownTimeout))
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	timer := time.NewTimer(s.opts.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		s.log.Warn("graceful shutdown timed out, closing open streams")
		s.grpc.Stop()
		<-stopped
	}
}
