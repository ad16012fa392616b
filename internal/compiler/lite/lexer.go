// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package lite

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	}
	return "punctuation"
}

// token is a lexeme with its 0-based position.
type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%q", t.text)
}

// lexError is a tokenization failure at a position.
type lexError struct {
	msg  string
	line int
	col  int
}

func (e *lexError) Error() string { return e.msg }

var multiCharPunct = []string{"->", ">=", "<=", "!=", "<>"}

// lex splits source into tokens. Comments start with // or -- and run to end of line.
func lex(src string) ([]token, error) {
	var (
		toks []token
		line int
		col  int
		i    int
	)
	runes := []rune(src)
	advance := func(n int) {
		for k := 0; k < n && i < len(runes); k++ {
			if runes[i] == '\n' {
				line++
				col = 0
			} else {
				col++
			}
			i++
		}
	}
	hasPrefix := func(p string) bool {
		return strings.HasPrefix(string(runes[i:min(len(runes), i+len(p))]), p)
	}

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			advance(1)
		case hasPrefix("//") || hasPrefix("--"):
			for i < len(runes) && runes[i] != '\n' {
				advance(1)
			}
		case hasPrefix(`"""`):
			startLine, startCol := line, col
			advance(3)
			var sb strings.Builder
			for {
				if i >= len(runes) {
					return nil, &lexError{msg: "unterminated triple-quoted string", line: startLine, col: startCol}
				}
				if hasPrefix(`"""`) {
					advance(3)
					break
				}
				sb.WriteRune(runes[i])
				advance(1)
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), line: startLine, col: startCol})
		case r == '\'' || r == '"':
			startLine, startCol := line, col
			quote := r
			advance(1)
			var sb strings.Builder
			for {
				if i >= len(runes) || runes[i] == '\n' {
					return nil, &lexError{msg: "unterminated string", line: startLine, col: startCol}
				}
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					sb.WriteRune(runes[i+1])
					advance(2)
					continue
				}
				advance(1)
				if c == quote {
					break
				}
				sb.WriteRune(c)
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), line: startLine, col: startCol})
		case unicode.IsDigit(r):
			start, startCol := i, col
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				advance(1)
			}
			toks = append(toks, token{kind: tokNumber, text: string(runes[start:i]), line: line, col: startCol})
		case r == '_' || unicode.IsLetter(r):
			start, startCol := i, col
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				advance(1)
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i]), line: line, col: startCol})
		default:
			matched := false
			for _, p := range multiCharPunct {
				if hasPrefix(p) {
					toks = append(toks, token{kind: tokPunct, text: p, line: line, col: col})
					advance(len(p))
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if !strings.ContainsRune(":.(){},*><=+-/%", r) {
				return nil, &lexError{msg: fmt.Sprintf("unexpected character %q", r), line: line, col: col}
			}
			toks = append(toks, token{kind: tokPunct, text: string(r), line: line, col: col})
			advance(1)
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line, col: col})
	return toks, nil
}
