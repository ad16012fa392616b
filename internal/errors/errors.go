// Package errors defines typed errors with categories for protocol and user-facing reporting.
// Every failure the service produces is tagged with a machine-readable Kind so the
// session dispatcher and the RPC layer can decide whether it is resumable (the client
// can supply more data) or terminal for the current query.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// so callers can recover the kind with errors.As after any amount of fmt.Errorf wrapping.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// MissingDocument indicates a referenced document has not been supplied yet.
	MissingDocument Kind = "missing_document"
	// MissingTableSchema indicates one or more table schemas have not been supplied yet.
	MissingTableSchema Kind = "missing_table_schema"
	// MissingSQLBlockSchema indicates an SQL block schema has not been supplied yet.
	MissingSQLBlockSchema Kind = "missing_sql_block_schema"
	// UserCompileError indicates the document itself does not compile.
	UserCompileError Kind = "user_compile_error"
	// ValidationError indicates a malformed request, rejected before any compile attempt.
	ValidationError Kind = "validation_error"
	// InternalError indicates an unclassified fault in the compiler or protocol layer.
	InternalError Kind = "internal_error"
	// ConfigError indicates invalid service or client configuration.
	ConfigError Kind = "config_error"
)

// Resumable reports whether errors of this kind can be resolved by the client
// supplying more information on the same session.
func (k Kind) Resumable() bool {
	switch k {
	case MissingDocument, MissingTableSchema, MissingSQLBlockSchema:
		return true
	}
	return false
}

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or InternalError.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}
