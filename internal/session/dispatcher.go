// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session implements the per-stream negotiation state machine.
//
// A Dispatcher owns one Session. For every inbound message it merges the payload into the
// session's stores, attempts a compile for the current query and returns exactly one
// outbound request: a dependency request, a RUN, a COMPLETE or an error. Messages must be
// handed to Handle one at a time; the dispatcher does no locking of its own.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/classify"
	"compilerd/service/internal/compiler"
	"compilerd/service/internal/render"
)

// Protocol error messages.
const (
	ErrMissingDocument  = "Document must be defined for compile request"
	ErrURLUndefined     = "Compile document url is undefined"
	ErrMissingResult    = "Missing query result"
	ErrMalformedSchema  = "Malformed table schema payload"
	ErrMalformedSQLSpec = "Malformed SQL block schema payload"
	ErrMalformedResult  = "Malformed query result payload"
)

// Options configures a Dispatcher.
type Options struct {
	// DefaultConnection names the implicit connection; empty selects the standard name
	DefaultConnection string
	// CompileOnly forces compile-only mode regardless of what clients ask for
	CompileOnly bool
	Logger      *zap.Logger
}

// Dispatcher drives one compile session.
type Dispatcher struct {
	compiler    compiler.Compiler
	session     *Session
	compileOnly bool
	log         *zap.Logger
}

// NewDispatcher creates a dispatcher with a fresh session.
func NewDispatcher(c compiler.Compiler, id string, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		compiler:    c,
		session:     newSession(id, opts.DefaultConnection),
		compileOnly: opts.CompileOnly,
		log:         log.With(zap.String("session_id", id)),
	}
}

// Session exposes the dispatcher's session for inspection.
func (d *Dispatcher) Session() *Session { return d.session }

// Close drops every cached document and schema. The dispatcher must not be used afterwards.
func (d *Dispatcher) Close() {
	d.session.clear()
}

// Handle processes one inbound message and returns the single outbound reply.
// The compile attempt is not cancelled with ctx: once started it runs to completion.
func (d *Dispatcher) Handle(ctx context.Context, in *model.Inbound) model.DependencyRequest {
	d.log.Debug("inbound message", zap.Stringer("type", in.Type))

	if resp := d.merge(in); resp != nil {
		d.session.State = StateFatal
		return d.reply(resp)
	}
	if d.session.ModelURL == "" {
		d.session.State = StateAwaitingModel
		return d.reply(model.CompileError{Message: ErrURLUndefined})
	}

	resp := d.attempt(context.WithoutCancel(ctx))
	d.session.State = stateAfter(resp)
	return d.reply(resp)
}

func (d *Dispatcher) reply(resp model.DependencyRequest) model.DependencyRequest {
	d.log.Debug("outbound message",
		zap.Stringer("type", resp.Type()),
		zap.Stringer("state", d.session.State))
	return resp
}

// merge folds the message payload into the session. A non-nil result is an error reply.
func (d *Dispatcher) merge(in *model.Inbound) model.DependencyRequest {
	s := d.session
	switch in.Type {
	case model.InboundCompile:
		if in.Document == nil {
			return model.CompileError{Message: ErrMissingDocument}
		}
		if s.ModelURL == "" {
			s.ModelURL = in.Document.URL
		} else if s.ModelURL != in.Document.URL {
			d.log.Warn("model url is fixed for the session, ignoring new url",
				zap.String("model_url", s.ModelURL),
				zap.String("requested_url", in.Document.URL))
		}
		s.Docs.Put(in.Document.URL, in.Document.Content)
		mode := in.Mode
		if d.compileOnly {
			mode = model.ModeCompileOnly
		}
		s.startQuery(QueryFor(in.NamedQuery, in.Query), mode)

	case model.InboundReferences:
		for _, doc := range in.References {
			s.Docs.Put(doc.URL, doc.Content)
		}

	case model.InboundTableSchemas:
		blob, err := compiler.ParseSchemaBlob(in.Schema)
		if err != nil {
			d.log.Debug("bad table schemas", zap.Error(err))
			return model.CompileError{Message: fmt.Sprintf("%s: %v", ErrMalformedSchema, err)}
		}
		for key, schema := range blob.Schemas {
			if schema == nil || !schema.IsBaseTable() {
				d.log.Debug("skipping non-table schema", zap.String("key", key))
				continue
			}
			s.Registry.PutTableSchema(key, schema)
		}

	case model.InboundSQLBlockSchemas:
		for _, block := range in.SQLBlockSchemas {
			schema, err := compiler.ParseStructDef([]byte(block.Schema))
			if err != nil {
				return model.CompileError{Message: fmt.Sprintf("%s: %v", ErrMalformedSQLSpec, err)}
			}
			s.Registry.PutSQLBlockSchema(block.Name, schema)
		}

	case model.InboundResults:
		if in.QueryResult == nil {
			return model.CompileError{Message: ErrMissingResult}
		}
		if _, err := render.Rows(in.QueryResult.Data); err != nil {
			return model.CompileError{Message: fmt.Sprintf("%s: %v", ErrMalformedResult, err)}
		}
		r := *in.QueryResult
		s.Results = &r
	}
	return nil
}

// attempt runs one compile for the current query.
func (d *Dispatcher) attempt(ctx context.Context) model.DependencyRequest {
	s := d.session
	mat := d.compiler.LoadModel(s.ModelURL, compiler.Env{Reader: s.Docs, Connections: s.Registry})

	var res *compiler.PreparedResult
	switch q := s.Query.(type) {
	case CompileOnly:
		m, err := mat.GetModel(ctx)
		if err != nil {
			return d.failure(err)
		}
		content, err := json.Marshal(m.Definition())
		if err != nil {
			return model.Unknown{Message: fmt.Sprintf("serialize model: %v", err)}
		}
		return model.Complete{
			Content:     string(content),
			Connections: s.Registry.Names(),
			Problems:    m.Problems(),
		}
	case NamedQuery:
		m, err := mat.GetModel(ctx)
		if err != nil {
			return d.failure(err)
		}
		pq, err := m.GetPreparedQueryByName(ctx, q.Name)
		if err != nil {
			return d.failure(err)
		}
		res = pq.PreparedResult
	case AdHocQuery:
		var err error
		if res, err = mat.LoadQuery(q.Text).GetPreparedResult(ctx); err != nil {
			return d.failure(err)
		}
	default:
		panic(fmt.Sprintf("session: unhandled query mode %T", q))
	}
	return d.prepared(res)
}

// prepared turns a prepared result into RUN or COMPLETE depending on mode and results.
func (d *Dispatcher) prepared(res *compiler.PreparedResult) model.DependencyRequest {
	s := d.session
	if s.Mode != model.ModeCompileOnly && s.Results == nil {
		return model.Run{SQL: res.SQL, Connection: res.ConnectionName}
	}

	serialized, err := json.Marshal(res)
	if err != nil {
		return model.Unknown{Message: fmt.Sprintf("serialize prepared result: %v", err)}
	}
	done := model.Complete{
		Content:        res.SQL,
		Connection:     res.ConnectionName,
		Connections:    s.Registry.Names(),
		PreparedResult: string(serialized),
		Problems:       res.Problems,
	}
	if s.Mode == model.ModeCompileOnly {
		return done
	}

	columns := make([]string, 0, len(res.Fields))
	for _, f := range res.Fields {
		columns = append(columns, f.Name)
	}
	html, err := render.HTML(columns, s.Results.Data, s.Results.TotalRows)
	if err != nil {
		return model.CompileError{Message: fmt.Sprintf("%s: %v", ErrMalformedResult, err)}
	}
	done.RenderContent = html
	return done
}

// failure classifies a compile failure.
func (d *Dispatcher) failure(err error) model.DependencyRequest {
	req := classify.Classify(err)
	d.log.Debug("classified compile failure",
		zap.Stringer("request", req.Type()),
		zap.String("kind", string(classify.Kind(req))))

	switch r := req.(type) {
	case model.NoOp:
		return model.Complete{Connections: d.session.Registry.Names(), Problems: r.Problems}
	case model.Unknown:
		d.log.Warn("unclassified compile failure", zap.Error(err))
	}
	return req
}
