// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package classify maps compiler failures to protocol outcomes.
//
// A problem's typed Dependency is authoritative. Problems without one are matched
// against the canonical miss messages, which keeps compilers that only report text
// usable. Rules are applied in this order:
//  1. a raw missing document becomes an Import request
//  2. a failure made only of warnings is a success (NoOp)
//  3. the first error is checked for a missing table, SQL block or import
//  4. anything else in a Failure is a CompileError
//  5. errors that are not a Failure are Unknown
package classify

import (
	stderrors "errors"
	"regexp"

	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/compiler"
	apperrors "compilerd/service/internal/errors"
)

var (
	tableMissingRe    = regexp.MustCompile(`^No schema data available for \{(.*?)\} \{(.*?)\} \{(.*)\}$`)
	sqlBlockMissingRe = regexp.MustCompile(`(?s)SQL Block schema missing: \[\[(.+?)\]\]\{(.*?)\}\{(.+)\}$`)
	importMissingRe   = regexp.MustCompile(`^import error: (?:mlr://)?(.+)$`)
)

// Classify maps err to the outbound request it calls for. A nil error is not valid input.
func Classify(err error) model.DependencyRequest {
	var miss *compiler.MissingDocumentError
	if stderrors.As(err, &miss) {
		return model.Import{URLs: []string{miss.URL}}
	}

	var sqlMiss *compiler.MissingSQLBlockError
	if stderrors.As(err, &sqlMiss) {
		return model.SQLBlockRequest{Block: sqlMiss.Block}
	}

	var failure *compiler.Failure
	if !stderrors.As(err, &failure) || len(failure.Problems) == 0 {
		return model.Unknown{Message: err.Error()}
	}

	first, ok := firstError(failure.Problems)
	if !ok {
		return model.NoOp{Problems: failure.Problems}
	}

	switch dep := DependencyOf(first).(type) {
	case compiler.MissingTable:
		return model.TableSchemas{Tables: missingTables(failure.Problems)}
	case compiler.MissingSQLBlock:
		return model.SQLBlockRequest{Block: dep}
	case compiler.MissingImport:
		return model.Import{URLs: missingImports(failure.Problems)}
	}

	ce := model.CompileError{
		Severity: first.Severity,
		Message:  first.Message,
		Problems: failure.Problems,
	}
	if first.At != nil {
		ce.Line = first.At.Line + 1
	}
	return ce
}

// firstError returns the first diagnostic that is not a warning.
func firstError(problems []compiler.Problem) (compiler.Problem, bool) {
	for _, p := range problems {
		if p.Severity == compiler.SeverityError {
			return p, true
		}
	}
	for _, p := range problems {
		if p.Severity != compiler.SeverityWarning {
			return p, true
		}
	}
	return compiler.Problem{}, false
}

// DependencyOf returns the missing input a problem describes, or nil.
func DependencyOf(p compiler.Problem) compiler.Dependency {
	if p.Missing != nil {
		return p.Missing
	}
	if m := tableMissingRe.FindStringSubmatch(p.Message); m != nil {
		return compiler.MissingTable{TableRef: compiler.TableRef{Key: m[1], Connection: m[2], Table: m[3]}}
	}
	if m := sqlBlockMissingRe.FindStringSubmatch(p.Message); m != nil {
		return compiler.MissingSQLBlock{Name: m[1], Connection: m[2], SQL: m[3]}
	}
	if m := importMissingRe.FindStringSubmatch(p.Message); m != nil {
		return compiler.MissingImport{URL: m[1]}
	}
	return nil
}

func missingTables(problems []compiler.Problem) []compiler.TableRef {
	seen := make(map[string]struct{})
	var out []compiler.TableRef
	for _, p := range problems {
		dep, ok := DependencyOf(p).(compiler.MissingTable)
		if !ok {
			continue
		}
		id := dep.Connection + "\x00" + dep.Key
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, dep.TableRef)
	}
	return out
}

func missingImports(problems []compiler.Problem) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range problems {
		dep, ok := DependencyOf(p).(compiler.MissingImport)
		if !ok {
			continue
		}
		if _, dup := seen[dep.URL]; dup {
			continue
		}
		seen[dep.URL] = struct{}{}
		out = append(out, dep.URL)
	}
	return out
}

// Kind maps a classified request to the error taxonomy. Complete and NoOp have no kind.
func Kind(req model.DependencyRequest) apperrors.Kind {
	switch req.(type) {
	case model.Import:
		return apperrors.MissingDocument
	case model.TableSchemas:
		return apperrors.MissingTableSchema
	case model.SQLBlockRequest:
		return apperrors.MissingSQLBlockSchema
	case model.CompileError:
		return apperrors.UserCompileError
	case model.NoOp, model.Complete:
		return ""
	}
	return apperrors.InternalError
}
