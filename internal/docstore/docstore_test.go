package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compilerd/service/internal/compiler"
)

func TestPutGet(t *testing.T) {
	s := New()
	s.Put("file:///models/my%20model.malloy", "source: a is table('a')")

	got, err := s.Get("file:///models/my model.malloy")
	require.NoError(t, err)
	assert.Equal(t, "source: a is table('a')", got)

	got, err = s.ReadURL(context.Background(), "file:///models/my%20model.malloy")
	require.NoError(t, err)
	assert.Equal(t, "source: a is table('a')", got)
}

func TestLastWriteWins(t *testing.T) {
	s := New()
	s.Put("m.malloy", "v1")
	s.Put("m.malloy", "v2")
	got, err := s.Get("m.malloy")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	assert.Equal(t, 1, s.Len())
}

func TestMissIsTyped(t *testing.T) {
	s := New()
	_, err := s.Get("other.malloy")
	var miss *compiler.MissingDocumentError
	require.True(t, errors.As(err, &miss))
	assert.Equal(t, "other.malloy", miss.URL)
}

func TestCanonicalKeepsMalformed(t *testing.T) {
	assert.Equal(t, "bad%zzurl", Canonical("bad%zzurl"))
	assert.Equal(t, "trailing%2", Canonical("trailing%2"))
	assert.Equal(t, "bad%ff", Canonical("bad%ff"), "invalid UTF-8 is kept as sent")
	assert.Equal(t, "a b", Canonical("a%20b"))
	assert.Equal(t, "café.malloy", Canonical("caf%C3%A9.malloy"))
}

func TestCanonicalKeepsReservedEscapes(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"a%2Fb.malloy", "a%2Fb.malloy"},
		{"a%2fb.malloy", "a%2fb.malloy"},
		{"q%3Fx.malloy", "q%3Fx.malloy"},
		{"my%20doc%23v2.malloy", "my doc%23v2.malloy"},
		{"a/b.malloy", "a/b.malloy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Canonical(tt.raw), tt.raw)
	}

	s := New()
	s.Put("a%2Fb.malloy", "encoded")
	s.Put("a/b.malloy", "nested")
	assert.Equal(t, 2, s.Len())
	got, err := s.Get("a%2Fb.malloy")
	require.NoError(t, err)
	assert.Equal(t, "encoded", got)
}

func TestClear(t *testing.T) {
	s := New()
	s.Put("a", "1")
	s.Put("b", "2")
	assert.Equal(t, []string{"a", "b"}, s.URLs())
	s.Clear()
	assert.Zero(t, s.Len())
	_, err := s.Get("a")
	assert.Error(t, err)
}
