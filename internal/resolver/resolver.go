// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package resolver drives the client side of a compile negotiation. It sends the
// COMPILE message, then answers every dependency request the service makes with
// documents read from disk and schemas or results taken from the warehouses, until
// the service reports a final artifact or a terminal error.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/compiler"
	"compilerd/service/internal/schemastore"
	"compilerd/service/internal/warehouse"
)

// DefaultMaxRounds bounds the number of dependency requests answered per run.
const DefaultMaxRounds = 32

var (
	// ErrRoundLimit is returned when the service keeps asking past the round limit.
	ErrRoundLimit = errors.New("round limit exceeded")
	// ErrStreamClosed is returned when the stream ends before a final artifact.
	ErrStreamClosed = errors.New("stream closed before completion")
	// ErrServer wraps UNKNOWN requests.
	ErrServer = errors.New("compiler service error")
)

// CompileFailure is the terminal ERROR of a run.
type CompileFailure struct {
	Content  string
	Problems []compiler.Problem
}

func (f *CompileFailure) Error() string { return f.Content }

// Stream is the part of a bridge the resolver needs.
type Stream interface {
	Send(ctx context.Context, in *model.Inbound) error
	Requests() <-chan model.DependencyRequest
	Err() error
}

// Connection inspects and queries one named database.
type Connection interface {
	TableSchema(ctx context.Context, path string) (*compiler.StructDef, error)
	SQLBlockSchema(ctx context.Context, block compiler.MissingSQLBlock) (*compiler.StructDef, error)
	Execute(ctx context.Context, sql string, maxRows int) (*warehouse.Result, error)
}

// Connections resolves a connection name.
type Connections func(ctx context.Context, name string) (Connection, error)

// FromPool adapts a warehouse pool.
func FromPool(p *warehouse.Pool) Connections {
	return func(ctx context.Context, name string) (Connection, error) {
		w, err := p.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// Options configures a Resolver.
type Options struct {
	// MaxRounds bounds answered requests; 0 selects DefaultMaxRounds.
	MaxRounds int
	// MaxRows bounds rows sent back for RUN; 0 sends every row.
	MaxRows  int
	Observer Observer
	Logger   *zap.Logger
}

// Outcome is a successful run.
type Outcome struct {
	Complete model.Complete
	Progress *Progress
}

// Resolver answers the requests of one compile stream.
type Resolver struct {
	stream   Stream
	docs     DocumentReader
	conns    Connections
	opts     Options
	log      *zap.Logger
	progress *Progress
}

// New creates a resolver over an open stream.
func New(stream Stream, docs DocumentReader, conns Connections, opts Options) *Resolver {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{stream: stream, docs: docs, conns: conns, opts: opts, log: log, progress: NewProgress()}
}

// Progress returns what has been supplied so far.
func (r *Resolver) Progress() *Progress { return r.progress }

// Run sends compile and answers requests until COMPLETE, ERROR or UNKNOWN.
func (r *Resolver) Run(ctx context.Context, compile *model.Inbound) (*Outcome, error) {
	if err := r.stream.Send(ctx, compile); err != nil {
		return nil, fmt.Errorf("send compile: %w", err)
	}
	var previous string
	for {
		var req model.DependencyRequest
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case m, ok := <-r.stream.Requests():
			if !ok {
				if err := r.stream.Err(); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrStreamClosed, err)
				}
				return nil, ErrStreamClosed
			}
			req = m
		}
		r.log.Debug("request", zap.Stringer("type", req.Type()))

		switch v := req.(type) {
		case model.Complete:
			r.emit(Event{Type: EventComplete, Round: r.progress.Rounds, Connection: v.Connection, Items: v.Connections})
			return &Outcome{Complete: v, Progress: r.progress}, nil
		case model.CompileError:
			r.emit(Event{Type: EventError, Round: r.progress.Rounds, Message: v.Content()})
			return nil, &CompileFailure{Content: v.Content(), Problems: v.Problems}
		case model.Unknown:
			r.emit(Event{Type: EventError, Round: r.progress.Rounds, Message: v.Message})
			return nil, fmt.Errorf("%w: %s", ErrServer, v.Message)
		}

		round := r.progress.round()
		sig := signature(req)
		if round > r.opts.MaxRounds {
			return nil, fmt.Errorf("%w: %d requests, last %s", ErrRoundLimit, r.opts.MaxRounds, req.Type())
		}
		if sig == previous {
			r.log.Warn("service repeated its previous request", zap.Stringer("type", req.Type()), zap.Int("round", round))
		}
		previous = sig

		reply, err := r.answer(ctx, round, req)
		if err != nil {
			return nil, err
		}
		if err := r.stream.Send(ctx, reply); err != nil {
			return nil, fmt.Errorf("send %s: %w", reply.Type, err)
		}
	}
}

func (r *Resolver) answer(ctx context.Context, round int, req model.DependencyRequest) (*model.Inbound, error) {
	switch v := req.(type) {
	case model.Import:
		r.emit(Event{Type: EventImport, Round: round, Items: v.URLs})
		refs := make([]model.Document, 0, len(v.URLs))
		for _, url := range v.URLs {
			content, err := r.docs.ReadDocument(url)
			if err != nil {
				return nil, err
			}
			refs = append(refs, model.Document{URL: url, Content: content})
			r.progress.addDocument(url)
		}
		return &model.Inbound{Type: model.InboundReferences, References: refs}, nil

	case model.TableSchemas:
		return r.tableSchemas(ctx, round, v.Tables)

	case model.SQLBlockRequest:
		name := connectionName(v.Block.Connection)
		r.emit(Event{Type: EventSQLBlock, Round: round, Connection: name, Items: []string{v.Block.Name}})
		conn, err := r.conns(ctx, name)
		if err != nil {
			return nil, err
		}
		sd, err := conn.SQLBlockSchema(ctx, v.Block)
		if err != nil {
			return nil, err
		}
		blob, err := json.Marshal(sd)
		if err != nil {
			return nil, err
		}
		r.progress.addSQLBlock(v.Block.Name)
		return &model.Inbound{
			Type:            model.InboundSQLBlockSchemas,
			SQLBlockSchemas: []model.SQLBlockSchema{{Name: v.Block.Name, SQL: v.Block.SQL, Schema: string(blob)}},
		}, nil

	case model.Run:
		name := connectionName(v.Connection)
		r.emit(Event{Type: EventRun, Round: round, Connection: name, Message: v.SQL})
		conn, err := r.conns(ctx, name)
		if err != nil {
			return nil, err
		}
		res, err := conn.Execute(ctx, v.SQL, r.opts.MaxRows)
		if err != nil {
			return nil, err
		}
		r.progress.addRun(res)
		return &model.Inbound{
			Type:        model.InboundResults,
			QueryResult: &model.QueryResult{Data: res.Data, TotalRows: res.TotalRows},
		}, nil
	}
	return nil, fmt.Errorf("unexpected request %s", req.Type())
}

func (r *Resolver) tableSchemas(ctx context.Context, round int, tables []compiler.TableRef) (*model.Inbound, error) {
	// group by connection, keeping first-seen order
	var order []string
	byConn := make(map[string][]compiler.TableRef)
	for _, ref := range tables {
		name := connectionName(ref.Connection)
		if _, ok := byConn[name]; !ok {
			order = append(order, name)
		}
		byConn[name] = append(byConn[name], ref)
	}

	blob := compiler.SchemaBlob{Schemas: make(map[string]*compiler.StructDef, len(tables))}
	for _, name := range order {
		refs := byConn[name]
		items := make([]string, len(refs))
		for i, ref := range refs {
			items[i] = ref.Table
		}
		r.emit(Event{Type: EventTableSchemas, Round: round, Connection: name, Items: items})

		conn, err := r.conns(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			sd, err := conn.TableSchema(ctx, ref.Table)
			if err != nil {
				return nil, err
			}
			blob.Schemas[ref.Key] = sd
			r.progress.addTable(name, ref.Table)
		}
	}
	b, err := json.Marshal(blob)
	if err != nil {
		return nil, err
	}
	return &model.Inbound{Type: model.InboundTableSchemas, Schema: string(b)}, nil
}

func (r *Resolver) emit(e Event) {
	if r.opts.Observer != nil {
		r.opts.Observer(e)
	}
}

func connectionName(name string) string {
	if name == "" {
		return schemastore.DefaultConnection
	}
	return name
}

func signature(req model.DependencyRequest) string {
	return fmt.Sprintf("%T%+v", req, req)
}
