// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package docstore provides the session-scoped cache of source documents.
// Documents are keyed by their canonical (percent-decoded) URL so that a client
// sending "my%20model.malloy" and a compiler asking for "my model.malloy" hit
// the same entry.
package docstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"compilerd/service/internal/compiler"
)

// Store caches documents for one session. A miss is reported as
// *compiler.MissingDocumentError so callers can request the document instead of failing.
type Store struct {
	// docs maps canonical URL to document content
	docs map[string]string
	// mu protects docs
	mu sync.RWMutex
}

// New creates an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]string)}
}

// reserved are the characters whose escapes Canonical leaves encoded, so that
// "a%2Fb.malloy" and "a/b.malloy" stay distinct documents.
const reserved = ";/?:@&=+$,#"

// Canonical returns the canonical form of a document URL: percent escapes are
// decoded except those of reserved characters, which keep their original
// spelling. Malformed escapes or a result that is not valid UTF-8 keep the
// URL as sent.
func Canonical(raw string) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '%' {
			b.WriteByte(raw[i])
			continue
		}
		if i+2 >= len(raw) {
			return raw
		}
		v, err := strconv.ParseUint(raw[i+1:i+3], 16, 8)
		if err != nil {
			return raw
		}
		if c := byte(v); c < utf8.RuneSelf && strings.IndexByte(reserved, c) >= 0 {
			b.WriteString(raw[i : i+3])
		} else {
			b.WriteByte(c)
		}
		i += 2
	}
	if !utf8.ValidString(b.String()) {
		return raw
	}
	return b.String()
}

// Put adds or overwrites a document (last write wins).
func (s *Store) Put(rawURL, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[Canonical(rawURL)] = content
}

// Get returns the document content or a *compiler.MissingDocumentError carrying
// the URL as requested.
func (s *Store) Get(rawURL string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[Canonical(rawURL)]
	if !ok {
		return "", &compiler.MissingDocumentError{URL: rawURL}
	}
	return content, nil
}

// ReadURL implements compiler.URLReader.
func (s *Store) ReadURL(_ context.Context, rawURL string) (string, error) {
	return s.Get(rawURL)
}

// URLs lists the cached canonical URLs in sorted order.
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(s.docs))
	for u := range s.docs {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Clear drops every document. Called when the owning stream ends.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]string)
}
