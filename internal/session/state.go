// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/docstore"
	"compilerd/service/internal/schemastore"
)

// State is the dispatcher's record of what it last asked for. It is advisory:
// every inbound message is handled the same way whatever the state.
type State int

const (
	StateAwaitingModel State = iota
	StateResolving
	StateAwaitingImport
	StateAwaitingTableSchemas
	StateAwaitingSQLBlockSchema
	StateAwaitingResults
	StateComplete
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateResolving:
		return "resolving"
	case StateAwaitingImport:
		return "awaiting_import"
	case StateAwaitingTableSchemas:
		return "awaiting_table_schemas"
	case StateAwaitingSQLBlockSchema:
		return "awaiting_sql_block_schema"
	case StateAwaitingResults:
		return "awaiting_results"
	case StateComplete:
		return "complete"
	case StateFatal:
		return "fatal"
	}
	return "unknown"
}

// stateAfter maps an outbound request to the state it leaves the session in.
func stateAfter(req model.DependencyRequest) State {
	switch req.(type) {
	case model.Import:
		return StateAwaitingImport
	case model.TableSchemas:
		return StateAwaitingTableSchemas
	case model.SQLBlockRequest:
		return StateAwaitingSQLBlockSchema
	case model.Run:
		return StateAwaitingResults
	case model.Complete, model.NoOp:
		return StateComplete
	}
	return StateFatal
}

// Session is the state of one compile stream. It is owned by a single Dispatcher.
type Session struct {
	// ID identifies the stream in logs
	ID string
	// ModelURL is set by the first COMPILE and never changes afterwards
	ModelURL string
	// Query is the current query mode; reset by every COMPILE
	Query Query
	// Mode says whether a prepared query must be run and rendered
	Mode model.Mode
	// Results holds RESULTS for the current query
	Results *model.QueryResult
	// State is the advisory protocol state
	State State

	Docs     *docstore.Store
	Registry *schemastore.Registry
}

func newSession(id, defaultConnection string) *Session {
	return &Session{
		ID:       id,
		Query:    CompileOnly{},
		State:    StateAwaitingModel,
		Docs:     docstore.New(),
		Registry: schemastore.NewRegistry(defaultConnection),
	}
}

// startQuery resets the per-query fields. Caches are kept.
func (s *Session) startQuery(q Query, mode model.Mode) {
	s.Query = q
	s.Mode = mode
	s.Results = nil
	s.State = StateResolving
}

func (s *Session) clear() {
	s.Docs.Clear()
	s.Registry.Clear()
	s.Results = nil
}
