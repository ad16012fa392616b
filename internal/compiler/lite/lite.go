// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package lite is a small reference model compiler. It implements the compiler
// collaborator interfaces over a minimal modelling language: imports, table and SQL
// sources on named connections, source aliases and select/where/order_by/limit queries.
//
// Every dependency is read through the Env passed to LoadModel; nothing survives between
// LoadModel calls. Missing imports and missing tables are reported in batches, missing SQL
// block schemas one at a time, and every miss carries a typed compiler.Dependency.
package lite

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"compilerd/service/internal/compiler"
	"compilerd/service/internal/compiler/dialect"
)

// Compiler is the reference compiler. The zero value is ready to use.
type Compiler struct{}

// New returns a Compiler.
func New() *Compiler { return &Compiler{} }

// LoadModel implements compiler.Compiler.
func (c *Compiler) LoadModel(url string, env compiler.Env) compiler.ModelMaterializer {
	return &materializer{url: url, env: env}
}

type materializer struct {
	url string
	env compiler.Env

	model *model
	err   error
	done  bool
}

// GetModel compiles the model once per materializer.
func (m *materializer) GetModel(ctx context.Context) (compiler.Model, error) {
	if !m.done {
		m.model, m.err = m.build(ctx)
		m.done = true
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.model, nil
}

func (m *materializer) LoadQuery(text string) compiler.QueryMaterializer {
	return &adHocQuery{m: m, text: text}
}

type adHocQuery struct {
	m    *materializer
	text string
}

// GetPreparedResult compiles the model and prepares the single query in text.
func (q *adHocQuery) GetPreparedResult(ctx context.Context) (*compiler.PreparedResult, error) {
	mdl, err := q.m.GetModel(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument("", q.text)
	if err != nil {
		return nil, err
	}
	if len(doc.runs) != 1 || len(doc.sources)+len(doc.queries)+len(doc.imports) > 0 {
		return nil, &compiler.Failure{Problems: []compiler.Problem{{
			Severity: compiler.SeverityError,
			Message:  "query text must contain exactly one query",
		}}}
	}
	return mdl.(*model).prepare(doc.runs[0], "", "")
}

// resolvedSource is a source with its schema bound.
type resolvedSource struct {
	stmt      sourceStmt
	docURL    string
	conn      string
	structure *compiler.StructDef
}

type model struct {
	url      string
	sources  map[string]*resolvedSource
	queries  map[string]queryStmt
	qdocs    map[string]string
	order    []string
	warnings []compiler.Problem
}

func (m *model) Problems() []compiler.Problem { return m.warnings }

func (m *model) Definition() *compiler.ModelDef {
	def := &compiler.ModelDef{
		URL:     m.url,
		Sources: make(map[string]*compiler.SourceDef, len(m.sources)),
		Queries: make(map[string]*compiler.QueryDef, len(m.queries)),
		Exports: append([]string(nil), m.order...),
	}
	for name, s := range m.sources {
		def.Sources[name] = &compiler.SourceDef{Name: name, Structure: s.structure}
	}
	for name, q := range m.queries {
		def.Queries[name] = queryDef(name, q.expr)
	}
	return def
}

func (m *model) GetPreparedQueryByName(_ context.Context, name string) (*compiler.PreparedQuery, error) {
	q, ok := m.queries[name]
	if !ok {
		return nil, &compiler.Failure{Problems: []compiler.Problem{{
			Severity: compiler.SeverityError,
			Message:  fmt.Sprintf("query named '%s' not found in model", name),
		}}}
	}
	res, err := m.prepare(q.expr, name, m.qdocs[name])
	if err != nil {
		return nil, err
	}
	return &compiler.PreparedQuery{Name: name, PreparedResult: res}, nil
}

// build runs the whole pipeline: documents, imports, tables, SQL blocks, aliases, queries.
func (m *materializer) build(ctx context.Context) (*model, error) {
	docs, err := m.loadDocuments(ctx)
	if err != nil {
		return nil, err
	}

	mdl := &model{
		url:     m.url,
		sources: make(map[string]*resolvedSource),
		queries: make(map[string]queryStmt),
		qdocs:   make(map[string]string),
	}

	var problems []compiler.Problem
	// Imported documents come first so local declarations shadow them.
	for _, doc := range docs {
		local := make(map[string]bool)
		for _, s := range doc.sources {
			if local[s.name] {
				problems = append(problems, userError(doc.url, s.line, s.col, "source '%s' is already defined", s.name))
				continue
			}
			local[s.name] = true
			if s.deprecated {
				mdl.warnings = append(mdl.warnings, compiler.Problem{
					Severity: compiler.SeverityWarning,
					Message:  "explore: is deprecated, use source:",
					At:       &compiler.Location{URL: doc.url, Line: s.line, Column: s.col},
				})
			}
			if _, seen := mdl.sources[s.name]; !seen {
				mdl.order = append(mdl.order, s.name)
			}
			mdl.sources[s.name] = &resolvedSource{stmt: s, docURL: doc.url}
		}
		for _, q := range doc.queries {
			mdl.queries[q.name] = q
			mdl.qdocs[q.name] = doc.url
		}
	}
	if len(problems) > 0 {
		return nil, &compiler.Failure{Problems: problems}
	}

	if err := m.bindTables(ctx, mdl); err != nil {
		return nil, err
	}
	if err := m.bindSQLBlocks(ctx, mdl); err != nil {
		return nil, err
	}
	if err := bindAliases(mdl); err != nil {
		return nil, err
	}

	for _, name := range sortedKeys(mdl.queries) {
		q := mdl.queries[name]
		problems = append(problems, mdl.check(q.expr, mdl.qdocs[name])...)
	}
	if len(problems) > 0 {
		return nil, &compiler.Failure{Problems: problems}
	}
	return mdl, nil
}

// loadDocuments reads the primary document and every transitive import. A missing
// primary document is returned raw; missing imports are batched into one Failure.
// Documents are returned in dependency order with the primary document last.
func (m *materializer) loadDocuments(ctx context.Context) ([]*document, error) {
	src, err := m.env.Reader.ReadURL(ctx, m.url)
	if err != nil {
		return nil, err
	}
	primary, err := parseDocument(m.url, src)
	if err != nil {
		return nil, err
	}

	var (
		ordered  []*document
		missing  []compiler.Problem
		failures []compiler.Problem
		visited  = map[string]bool{m.url: true}
	)
	var visit func(doc *document)
	visit = func(doc *document) {
		for _, imp := range doc.imports {
			target := resolveImport(doc.url, imp.url)
			if visited[target] {
				continue
			}
			visited[target] = true
			text, err := m.env.Reader.ReadURL(ctx, target)
			if err != nil {
				var miss *compiler.MissingDocumentError
				if stderrors.As(err, &miss) {
					missing = append(missing, compiler.Problem{
						Severity: compiler.SeverityError,
						Message:  compiler.ImportMissingMessage(target),
						At:       &compiler.Location{URL: doc.url, Line: imp.line},
						Missing:  compiler.MissingImport{URL: target},
					})
					continue
				}
				failures = append(failures, userError(doc.url, imp.line, 0, "failed to read import '%s': %v", target, err))
				continue
			}
			child, err := parseDocument(target, text)
			if err != nil {
				var f *compiler.Failure
				if stderrors.As(err, &f) {
					failures = append(failures, f.Problems...)
				}
				continue
			}
			visit(child)
			ordered = append(ordered, child)
		}
	}
	visit(primary)

	if len(missing) > 0 {
		return nil, &compiler.Failure{Problems: missing}
	}
	if len(failures) > 0 {
		return nil, &compiler.Failure{Problems: failures}
	}
	return append(ordered, primary), nil
}

// resolveImport resolves ref against the importing document's URL. Relative bases
// without a scheme are joined as plain paths.
func resolveImport(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() || strings.HasPrefix(ref, "/") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	if b.IsAbs() || strings.HasPrefix(b.Path, "/") {
		return b.ResolveReference(r).String()
	}
	return path.Join(path.Dir(base), ref)
}

func tableKey(connection, tablePath string) string {
	if connection == "" {
		return tablePath
	}
	return connection + ":" + tablePath
}

// bindTables fetches every table source in one pass per connection and reports all
// misses across connections at once.
func (m *materializer) bindTables(ctx context.Context, mdl *model) error {
	type request struct {
		conn    compiler.Connection
		tables  map[string]string
		sources map[string][]*resolvedSource
	}
	byConn := make(map[string]*request)
	var connOrder []string

	for _, name := range mdl.order {
		s := mdl.sources[name]
		if s.stmt.kind != sourceTable {
			continue
		}
		req, ok := byConn[s.stmt.connection]
		if !ok {
			conn, err := m.env.Connections.LookupConnection(ctx, s.stmt.connection)
			if err != nil {
				return fmt.Errorf("lookup connection %q: %w", s.stmt.connection, err)
			}
			req = &request{conn: conn, tables: map[string]string{}, sources: map[string][]*resolvedSource{}}
			byConn[s.stmt.connection] = req
			connOrder = append(connOrder, s.stmt.connection)
		}
		key := tableKey(s.stmt.connection, s.stmt.path)
		req.tables[key] = s.stmt.path
		req.sources[key] = append(req.sources[key], s)
	}

	var missing []compiler.Problem
	for _, c := range connOrder {
		req := byConn[c]
		res, err := req.conn.FetchSchemaForTables(ctx, req.tables)
		if err != nil {
			return fmt.Errorf("fetch table schemas on %q: %w", req.conn.Name(), err)
		}
		for _, ref := range res.Missing {
			p := compiler.Problem{
				Severity: compiler.SeverityError,
				Message:  compiler.TableMissingMessage(ref.Key, ref.Connection, ref.Table),
				Missing:  compiler.MissingTable{TableRef: ref},
			}
			if srcs := req.sources[ref.Key]; len(srcs) > 0 {
				p.At = &compiler.Location{URL: srcs[0].docURL, Line: srcs[0].stmt.line}
			}
			missing = append(missing, p)
		}
		for key, schema := range res.Found {
			for _, s := range req.sources[key] {
				s.conn = req.conn.Name()
				s.structure = bindStructure(s.stmt.name, req.conn.Name(), schema, compiler.StructSource{
					Type:      compiler.SourceTypeTable,
					TablePath: s.stmt.path,
				})
			}
		}
	}
	if len(missing) > 0 {
		return &compiler.Failure{Problems: missing}
	}
	return nil
}

// bindSQLBlocks fetches SQL block schemas in declaration order and stops at the first miss.
func (m *materializer) bindSQLBlocks(ctx context.Context, mdl *model) error {
	for _, name := range mdl.order {
		s := mdl.sources[name]
		if s.stmt.kind != sourceSQL {
			continue
		}
		conn, err := m.env.Connections.LookupConnection(ctx, s.stmt.connection)
		if err != nil {
			return fmt.Errorf("lookup connection %q: %w", s.stmt.connection, err)
		}
		block := compiler.SQLBlock{Name: s.stmt.name, Connection: conn.Name(), SelectStr: s.stmt.sql}
		schema, err := conn.FetchSchemaForSQLBlock(ctx, block)
		if err != nil {
			var miss *compiler.MissingSQLBlockError
			if stderrors.As(err, &miss) {
				return &compiler.Failure{Problems: []compiler.Problem{{
					Severity: compiler.SeverityError,
					Message:  compiler.SQLBlockMissingMessage(miss.Block.Name, miss.Block.Connection, miss.Block.SQL),
					At:       &compiler.Location{URL: s.docURL, Line: s.stmt.line},
					Missing:  miss.Block,
				}}}
			}
			return fmt.Errorf("fetch sql block %q: %w", block.Name, err)
		}
		s.conn = conn.Name()
		s.structure = bindStructure(s.stmt.name, conn.Name(), schema, compiler.StructSource{
			Type:     compiler.SourceTypeSQL,
			SQLBlock: &block,
		})
	}
	return nil
}

func bindAliases(mdl *model) error {
	var problems []compiler.Problem
	for _, name := range mdl.order {
		s := mdl.sources[name]
		if s.stmt.kind != sourceAlias {
			continue
		}
		target, msg := mdl.follow(name)
		if msg != "" {
			problems = append(problems, userError(s.docURL, s.stmt.line, s.stmt.col, "%s", msg))
			continue
		}
		s.conn = target.conn
		sd := *target.structure
		sd.Name = name
		s.structure = &sd
	}
	if len(problems) > 0 {
		return &compiler.Failure{Problems: problems}
	}
	return nil
}

// follow walks an alias chain to the concrete source.
func (m *model) follow(name string) (*resolvedSource, string) {
	seen := map[string]bool{}
	cur := name
	for {
		s, ok := m.sources[cur]
		if !ok {
			return nil, fmt.Sprintf("source '%s' is not defined", cur)
		}
		if s.stmt.kind != sourceAlias {
			return s, ""
		}
		if seen[cur] {
			return nil, fmt.Sprintf("source '%s' refers to itself", name)
		}
		seen[cur] = true
		cur = s.stmt.ref
	}
}

func bindStructure(name, conn string, schema *compiler.StructDef, src compiler.StructSource) *compiler.StructDef {
	sd := &compiler.StructDef{
		Type:         compiler.StructTypeStruct,
		Name:         name,
		Dialect:      schema.Dialect,
		StructSource: src,
		StructRelationship: compiler.StructRelationship{
			Type:           compiler.RelationBaseTable,
			ConnectionName: conn,
		},
		Fields: append([]compiler.FieldDef(nil), schema.Fields...),
	}
	if sd.Dialect == "" {
		sd.Dialect = dialect.Default
	}
	return sd
}

func userError(url string, line, col int, format string, args ...any) compiler.Problem {
	return compiler.Problem{
		Severity: compiler.SeverityError,
		Message:  fmt.Sprintf(format, args...),
		At:       &compiler.Location{URL: url, Line: line, Column: col},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
