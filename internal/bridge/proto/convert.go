// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compilerpb

import (
	"compilerd/service/internal/bridge/model"
	"compilerd/service/internal/compiler"
)

// ToInbound converts a wire request into the transport-agnostic form.
func ToInbound(x *CompileRequest) *model.Inbound {
	in := &model.Inbound{
		Type:       model.InboundType(x.Type),
		Schema:     x.Schema,
		Query:      x.Query,
		NamedQuery: x.NamedQuery,
		Mode:       model.Mode(x.Mode),
	}
	if d := x.GetDocument(); d != nil {
		in.Document = &model.Document{URL: d.Url, Content: d.Content}
	}
	for _, r := range x.References {
		in.References = append(in.References, model.Document{URL: r.Url, Content: r.Content})
	}
	for _, s := range x.SqlBlockSchemas {
		in.SQLBlockSchemas = append(in.SQLBlockSchemas, model.SQLBlockSchema{Name: s.Name, SQL: s.Sql, Schema: s.Schema})
	}
	if r := x.GetQueryResult(); r != nil {
		in.QueryResult = &model.QueryResult{Data: r.Data, TotalRows: int(r.TotalRows)}
	}
	return in
}

// FromInbound converts a transport-agnostic message into a wire request.
func FromInbound(in *model.Inbound) *CompileRequest {
	x := &CompileRequest{
		Type:       CompileRequest_Type(in.Type),
		Schema:     in.Schema,
		Query:      in.Query,
		NamedQuery: in.NamedQuery,
		Mode:       CompileRequest_Mode(in.Mode),
	}
	if in.Document != nil {
		x.Document = &CompileDocument{Url: in.Document.URL, Content: in.Document.Content}
	}
	for _, r := range in.References {
		x.References = append(x.References, &CompileDocument{Url: r.URL, Content: r.Content})
	}
	for _, s := range in.SQLBlockSchemas {
		x.SqlBlockSchemas = append(x.SqlBlockSchemas, &SqlBlockSchema{Name: s.Name, Sql: s.SQL, Schema: s.Schema})
	}
	if in.QueryResult != nil {
		x.QueryResult = &QueryResult{Data: in.QueryResult.Data, TotalRows: int32(in.QueryResult.TotalRows)}
	}
	return x
}

// FromRequest converts an outbound request into its wire form.
func FromRequest(req model.DependencyRequest) *CompilerRequest {
	switch r := req.(type) {
	case model.Import:
		return &CompilerRequest{Type: CompilerRequest_IMPORT, ImportUrls: r.URLs}
	case model.TableSchemas:
		x := &CompilerRequest{Type: CompilerRequest_TABLE_SCHEMAS}
		for _, t := range r.Tables {
			x.TableSchemas = append(x.TableSchemas, &TableSchema{Key: t.Key, Connection: t.Connection, Table: t.Table})
		}
		return x
	case model.SQLBlockRequest:
		return &CompilerRequest{
			Type:     CompilerRequest_SQL_BLOCK_SCHEMAS,
			SqlBlock: &SqlBlock{Name: r.Block.Name, Sql: r.Block.SQL, Connection: r.Block.Connection},
		}
	case model.Run:
		return &CompilerRequest{Type: CompilerRequest_RUN, Content: r.SQL, Connection: r.Connection}
	case model.Complete:
		return &CompilerRequest{
			Type:           CompilerRequest_COMPLETE,
			Content:        r.Content,
			Connection:     r.Connection,
			Connections:    r.Connections,
			PreparedResult: r.PreparedResult,
			RenderContent:  r.RenderContent,
			Problems:       FromProblems(r.Problems),
		}
	case model.NoOp:
		return &CompilerRequest{Type: CompilerRequest_COMPLETE, Problems: FromProblems(r.Problems)}
	case model.CompileError:
		return &CompilerRequest{Type: CompilerRequest_ERROR, Content: r.Content(), Problems: FromProblems(r.Problems)}
	case model.Unknown:
		return &CompilerRequest{Type: CompilerRequest_UNKNOWN, Content: r.Message}
	}
	return &CompilerRequest{Type: CompilerRequest_UNKNOWN}
}

// ToRequest converts a wire request back into the transport-agnostic form.
// ERROR content is carried verbatim as the message.
func ToRequest(x *CompilerRequest) model.DependencyRequest {
	switch x.Type {
	case CompilerRequest_IMPORT:
		return model.Import{URLs: x.ImportUrls}
	case CompilerRequest_TABLE_SCHEMAS:
		r := model.TableSchemas{}
		for _, t := range x.TableSchemas {
			r.Tables = append(r.Tables, compiler.TableRef{Key: t.Key, Connection: t.Connection, Table: t.Table})
		}
		return r
	case CompilerRequest_SQL_BLOCK_SCHEMAS:
		r := model.SQLBlockRequest{}
		if b := x.SqlBlock; b != nil {
			r.Block = compiler.MissingSQLBlock{Name: b.Name, Connection: b.Connection, SQL: b.Sql}
		}
		return r
	case CompilerRequest_RUN:
		return model.Run{SQL: x.Content, Connection: x.Connection}
	case CompilerRequest_COMPLETE:
		return model.Complete{
			Content:        x.Content,
			Connection:     x.Connection,
			Connections:    x.Connections,
			PreparedResult: x.PreparedResult,
			RenderContent:  x.RenderContent,
			Problems:       ToProblems(x.Problems),
		}
	case CompilerRequest_ERROR:
		return model.CompileError{Message: x.Content, Problems: ToProblems(x.Problems)}
	}
	return model.Unknown{Message: x.Content}
}

// FromProblems converts diagnostics to wire problems with 1-based lines.
func FromProblems(ps []compiler.Problem) []*Problem {
	if len(ps) == 0 {
		return nil
	}
	out := make([]*Problem, 0, len(ps))
	for _, p := range ps {
		wp := &Problem{Severity: string(p.Severity), Message: p.Message}
		if p.At != nil {
			wp.Line = int32(p.At.Line + 1)
		}
		out = append(out, wp)
	}
	return out
}

// ToProblems converts wire problems back to diagnostics.
func ToProblems(ps []*Problem) []compiler.Problem {
	if len(ps) == 0 {
		return nil
	}
	out := make([]compiler.Problem, 0, len(ps))
	for _, wp := range ps {
		p := compiler.Problem{Severity: compiler.Severity(wp.Severity), Message: wp.Message}
		if wp.Line > 0 {
			p.At = &compiler.Location{Line: int(wp.Line) - 1}
		}
		out = append(out, p)
	}
	return out
}
