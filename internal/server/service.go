// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package server implements the Compiler gRPC service.
//
// CompileStream runs one session.Dispatcher per stream: each received message is
// handed to the dispatcher and its single reply is sent before the next message is
// read. Compile is the stateless one-shot sibling where every input must be supplied
// up front and a missing dependency is a terminal status.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"compilerd/service/internal/bridge/model"
	compilerpb "compilerd/service/internal/bridge/proto"
	"compilerd/service/internal/classify"
	"compilerd/service/internal/compiler"
	"compilerd/service/internal/docstore"
	apperrors "compilerd/service/internal/errors"
	"compilerd/service/internal/schemastore"
	"compilerd/service/internal/session"
)

// ErrNoDocument is the unary validation failure for a request without a primary document.
const ErrNoDocument = "No document to compile was provided"

// Service implements compilerpb.CompilerServer.
type Service struct {
	compilerpb.UnimplementedCompilerServer

	compiler          compiler.Compiler
	defaultConnection string
	compileOnly       bool
	log               *zap.Logger
	newID             func() string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	DefaultConnection string
	CompileOnly       bool
	Logger            *zap.Logger
}

// NewService creates the Compiler service backed by c.
func NewService(c compiler.Compiler, opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	def := opts.DefaultConnection
	if def == "" {
		def = schemastore.DefaultConnection
	}
	return &Service{
		compiler:          c,
		defaultConnection: def,
		compileOnly:       opts.CompileOnly,
		log:               log,
		newID:             uuid.NewString,
	}
}

// CompileStream negotiates one compile session.
func (s *Service) CompileStream(stream compilerpb.Compiler_CompileStreamServer) error {
	ctx := stream.Context()
	id := s.newID()
	d := session.NewDispatcher(s.compiler, id, session.Options{
		DefaultConnection: s.defaultConnection,
		CompileOnly:       s.compileOnly,
		Logger:            s.log,
	})
	defer d.Close()

	log := s.log.With(zap.String("session_id", id))
	start := time.Now()
	log.Info("compile stream opened")
	messages := 0
	defer func() {
		log.Info("compile stream closed",
			zap.Int("messages", messages),
			zap.Duration("duration", time.Since(start)),
			zap.Stringer("state", d.Session().State))
	}()

	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == codes.Canceled {
				return nil
			}
			return err
		}
		messages++

		reply := d.Handle(ctx, compilerpb.ToInbound(req))
		if ctx.Err() != nil {
			// client went away while compiling; the reply has nowhere to go
			log.Debug("discarding reply for closed stream", zap.Stringer("type", reply.Type()))
			return nil
		}
		if err := stream.Send(compilerpb.FromRequest(reply)); err != nil {
			return err
		}
	}
}

// Compile compiles a fully supplied request in one shot.
func (s *Service) Compile(ctx context.Context, req *compilerpb.CompileRequest) (*compilerpb.CompileResponse, error) {
	doc := req.GetDocument()
	if doc == nil || doc.Url == "" {
		return nil, status.Error(codes.InvalidArgument, ErrNoDocument)
	}

	docs := docstore.New()
	docs.Put(doc.Url, doc.Content)
	for _, ref := range req.References {
		docs.Put(ref.Url, ref.Content)
	}

	registry := schemastore.NewRegistry(s.defaultConnection)
	blob, err := compiler.ParseSchemaBlob(req.Schema)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid schema blob: %v", err)
	}
	registry.PutSchemaBlob(blob)
	for _, block := range req.SqlBlockSchemas {
		schema, err := compiler.ParseStructDef([]byte(block.Schema))
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid SQL block schema %q: %v", block.Name, err)
		}
		registry.PutSQLBlockSchema(block.Name, schema)
	}

	mat := s.compiler.LoadModel(doc.Url, compiler.Env{Reader: docs, Connections: registry})
	m, err := mat.GetModel(ctx)
	if err != nil {
		return nil, s.statusFor(err)
	}
	content, err := json.Marshal(m.Definition())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "serialize model: %v", err)
	}
	resp := &compilerpb.CompileResponse{Model: string(content)}

	if name := unaryQueryName(req); name != "" {
		pq, err := m.GetPreparedQueryByName(ctx, name)
		if err != nil {
			return nil, s.statusFor(err)
		}
		if pq.PreparedResult != nil {
			resp.Sql = pq.PreparedResult.SQL
		}
	}
	return resp, nil
}

// unaryQueryName returns the name of the query a unary request asks for.
// The query field names a query on this method; named_query is the fallback.
func unaryQueryName(req *compilerpb.CompileRequest) string {
	if req.Query != "" {
		return req.Query
	}
	return req.NamedQuery
}

// statusFor maps a compile failure onto a terminal gRPC status.
func (s *Service) statusFor(err error) error {
	req := classify.Classify(err)
	kind := classify.Kind(req)
	s.log.Debug("unary compile failed", zap.String("kind", string(kind)), zap.Error(err))

	switch r := req.(type) {
	case model.CompileError:
		return status.Error(codes.InvalidArgument, r.Content())
	case model.Unknown:
		s.log.Warn("unclassified compile failure", zap.Error(err))
		return status.Error(codes.Internal, r.Message)
	case model.NoOp:
		return status.Error(codes.Internal, err.Error())
	}
	if kind.Resumable() {
		return status.Error(codes.FailedPrecondition, apperrors.Wrap(kind, "missing dependency", err).Error())
	}
	return status.Error(codes.Internal, err.Error())
}
