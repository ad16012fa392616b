// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package lite

import (
	"fmt"
	"strconv"
	"strings"

	"compilerd/service/internal/compiler"
)

type sourceKind int

const (
	sourceTable sourceKind = iota
	sourceSQL
	sourceAlias
)

type importStmt struct {
	url  string
	line int
}

type sourceStmt struct {
	name       string
	kind       sourceKind
	connection string // empty means the default connection
	path       string // table path for sourceTable
	sql        string // statement for sourceSQL
	ref        string // aliased source for sourceAlias
	deprecated bool   // declared with explore:
	line       int
	col        int
}

type queryExpr struct {
	source    string
	selectAll bool
	fields    []token
	where     []token
	orderBy   *token
	desc      bool
	limit     int
	line      int
	col       int
}

type queryStmt struct {
	name string
	expr queryExpr
}

// document is one parsed source file.
type document struct {
	url     string
	imports []importStmt
	sources []sourceStmt
	queries []queryStmt
	runs    []queryExpr
}

type parser struct {
	url  string
	toks []token
	pos  int
}

// parseError carries a user-facing message and the token it refers to.
type parseError struct {
	msg string
	tok token
}

func (e *parseError) Error() string { return e.msg }

func (e *parseError) problem(url string) compiler.Problem {
	return compiler.Problem{
		Severity: compiler.SeverityError,
		Message:  e.msg,
		At:       &compiler.Location{URL: url, Line: e.tok.line, Column: e.tok.col},
	}
}

// parseDocument parses src. Failures are returned as *compiler.Failure.
func parseDocument(url, src string) (*document, error) {
	toks, err := lex(src)
	if err != nil {
		le := err.(*lexError)
		return nil, &compiler.Failure{Problems: []compiler.Problem{{
			Severity: compiler.SeverityError,
			Message:  le.msg,
			At:       &compiler.Location{URL: url, Line: le.line, Column: le.col},
		}}}
	}
	p := &parser{url: url, toks: toks}
	doc, perr := p.document()
	if perr != nil {
		return nil, &compiler.Failure{Problems: []compiler.Problem{perr.problem(url)}}
	}
	return doc, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) *parseError {
	return &parseError{msg: fmt.Sprintf(format, args...), tok: t}
}

func (p *parser) expect(kind tokenKind, text string) (token, *parseError) {
	t := p.next()
	if t.kind != kind || (text != "" && t.text != text) {
		want := kind.String()
		if text != "" {
			want = fmt.Sprintf("%q", text)
		}
		return t, p.errorf(t, "syntax error: expected %s, found %s", want, t.describe())
	}
	return t, nil
}

func (p *parser) document() (*document, *parseError) {
	doc := &document{url: p.url}
	for p.peek().kind != tokEOF {
		t := p.peek()
		switch {
		case t.is(tokIdent, "import") && p.peekAt(1).kind == tokString:
			p.next()
			s := p.next()
			doc.imports = append(doc.imports, importStmt{url: s.text, line: s.line})
		case t.kind == tokIdent && p.peekAt(1).is(tokPunct, ":"):
			if err := p.declaration(doc); err != nil {
				return nil, err
			}
		case t.kind == tokIdent && p.peekAt(1).is(tokPunct, "->"):
			q, err := p.queryExpr()
			if err != nil {
				return nil, err
			}
			doc.runs = append(doc.runs, q)
		default:
			return nil, p.errorf(t, "syntax error: unexpected %s", t.describe())
		}
	}
	return doc, nil
}

func (p *parser) declaration(doc *document) *parseError {
	kw := p.next()
	p.next() // ':'
	switch kw.text {
	case "source", "explore":
		s, err := p.sourceDef()
		if err != nil {
			return err
		}
		s.deprecated = kw.text == "explore"
		doc.sources = append(doc.sources, s)
	case "query":
		name, err := p.expect(tokIdent, "")
		if err != nil {
			return err
		}
		if _, err := p.expect(tokIdent, "is"); err != nil {
			return err
		}
		q, err := p.queryExpr()
		if err != nil {
			return err
		}
		doc.queries = append(doc.queries, queryStmt{name: name.text, expr: q})
	case "run":
		q, err := p.queryExpr()
		if err != nil {
			return err
		}
		doc.runs = append(doc.runs, q)
	default:
		return p.errorf(kw, "syntax error: unknown statement %q", kw.text)
	}
	return nil
}

func (p *parser) sourceDef() (sourceStmt, *parseError) {
	name, err := p.expect(tokIdent, "")
	if err != nil {
		return sourceStmt{}, err
	}
	if _, err := p.expect(tokIdent, "is"); err != nil {
		return sourceStmt{}, err
	}
	s := sourceStmt{name: name.text, line: name.line, col: name.col}

	first, err := p.expect(tokIdent, "")
	if err != nil {
		return s, err
	}
	fn := first
	if p.peek().is(tokPunct, ".") {
		p.next()
		s.connection = first.text
		if fn, err = p.expect(tokIdent, ""); err != nil {
			return s, err
		}
	} else if !p.peek().is(tokPunct, "(") {
		s.kind = sourceAlias
		s.ref = first.text
		return s, nil
	}

	switch fn.text {
	case "table":
		s.kind = sourceTable
	case "sql":
		s.kind = sourceSQL
	default:
		return s, p.errorf(fn, "syntax error: expected table() or sql(), found %q", fn.text)
	}
	if _, err := p.expect(tokPunct, "("); err != nil {
		return s, err
	}
	arg, err := p.expect(tokString, "")
	if err != nil {
		return s, err
	}
	if _, err := p.expect(tokPunct, ")"); err != nil {
		return s, err
	}
	if strings.TrimSpace(arg.text) == "" {
		return s, p.errorf(arg, "%s() argument must not be empty", fn.text)
	}
	if s.kind == sourceTable {
		s.path = arg.text
	} else {
		s.sql = strings.TrimSpace(arg.text)
	}
	return s, nil
}

var clauseNames = map[string]bool{"select": true, "where": true, "order_by": true, "limit": true}

func (p *parser) atClause() bool {
	t := p.peek()
	return t.kind == tokIdent && clauseNames[t.text] && p.peekAt(1).is(tokPunct, ":")
}

func (p *parser) queryExpr() (queryExpr, *parseError) {
	src, err := p.expect(tokIdent, "")
	if err != nil {
		return queryExpr{}, err
	}
	q := queryExpr{source: src.text, line: src.line, col: src.col}
	if _, err := p.expect(tokPunct, "->"); err != nil {
		return q, err
	}
	if _, err := p.expect(tokPunct, "{"); err != nil {
		return q, err
	}
	for !p.peek().is(tokPunct, "}") {
		if !p.atClause() {
			t := p.peek()
			return q, p.errorf(t, "syntax error: expected select:, where:, order_by: or limit:, found %s", t.describe())
		}
		clause := p.next()
		p.next() // ':'
		switch clause.text {
		case "select":
			if p.peek().is(tokPunct, "*") {
				p.next()
				q.selectAll = true
				continue
			}
			for {
				f, err := p.expect(tokIdent, "")
				if err != nil {
					return q, err
				}
				q.fields = append(q.fields, f)
				if !p.peek().is(tokPunct, ",") {
					break
				}
				p.next()
			}
		case "where":
			for !p.atClause() && !p.peek().is(tokPunct, "}") && p.peek().kind != tokEOF {
				q.where = append(q.where, p.next())
			}
			if len(q.where) == 0 {
				return q, p.errorf(clause, "where: requires an expression")
			}
		case "order_by":
			f, err := p.expect(tokIdent, "")
			if err != nil {
				return q, err
			}
			q.orderBy = &f
			if t := p.peek(); t.is(tokIdent, "desc") || t.is(tokIdent, "asc") {
				p.next()
				q.desc = t.text == "desc"
			}
		case "limit":
			n, err := p.expect(tokNumber, "")
			if err != nil {
				return q, err
			}
			v, convErr := strconv.Atoi(n.text)
			if convErr != nil || v < 0 {
				return q, p.errorf(n, "limit must be a non-negative integer, found %s", n.text)
			}
			q.limit = v
		}
	}
	p.next() // '}'
	if !q.selectAll && len(q.fields) == 0 {
		return q, p.errorf(src, "query on %q has no select: clause", src.text)
	}
	return q, nil
}
