package iterator

import (
	"testing"

	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func _joiner(t *testing.T, iter Iterator, patterns ...string) Iterator {
	t.Helper()
	starts, err := CompileJoinPatterns(patterns...)
	require.NoError(t, err)
	return Joiner(iter, entries.StandardMessageField, starts...)
}

func TestJoiner(t *testing.T) {
	iter := FromSlice([]entries.LogEntry{
		entries.FromString("start entry"),
		entries.FromString("another entry"),
		entries.FromString("start complete"),
	})
	iter = _joiner(t, iter, `^start`)

	first, i, err := iter.Next()
	assert.NoError(t, err)
	assert.Equal(t, 0, i)
	msg, ok := first.AsString(entries.StandardMessageField)
	assert.True(t, ok, "Message should be defined on first log event")
	assert.Equal(t, "start entry\nanother entry", msg)

	second, i, err := iter.Next()
	assert.NoError(t, err)
	assert.Equal(t, 1, i)
	msg, ok = second.AsString(entries.StandardMessageField)
	assert.True(t, ok, "Message should be defined on second log event")
	assert.Equal(t, "start complete", msg)

	_, _, err = iter.Next()
	assert.ErrorIs(t, err, ErrAtEnd)
}

func TestJoiner_Midstream_read(t *testing.T) {
	iter := FromSlice([]entries.LogEntry{
		entries.FromString("another entry"),
		entries.FromString("start complete"),
	})
	iter = _joiner(t, iter, `^start`)

	first, _, err := iter.Next()
	assert.NoError(t, err)
	msg, ok := first.AsString(entries.StandardMessageField)
	assert.True(t, ok, "Message should be defined on first log event")
	assert.Equal(t, "another entry", msg)

	second, _, err := iter.Next()
	assert.NoError(t, err)
	msg, ok = second.AsString(entries.StandardMessageField)
	assert.True(t, ok, "Message should be defined on second log event")
	assert.Equal(t, "start complete", msg)

	_, _, err = iter.Next()
	assert.ErrorIs(t, err, ErrAtEnd)
}

func TestJoiner_CustomField(t *testing.T) {
	iter := FromSlice([]entries.LogEntry{
		{"log": "level=error msg=\"request failed\""},
		{"log": "  at handler.go:12"},
		{"log": "level=info msg=ok"},
	})
	starts, err := CompileJoinPatterns(`^level=`)
	require.NoError(t, err)
	iter = Joiner(iter, "log", starts...)

	first, _, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, "level=error msg=\"request failed\"\n  at handler.go:12", first["log"])
}

func TestJoiner_NoPatterns(t *testing.T) {
	base := FromSlice(nil)
	assert.Equal(t, base, Joiner(base, entries.StandardMessageField))
}

func TestCompileJoinPatterns_Invalid(t *testing.T) {
	_, err := CompileJoinPatterns(`^ok`, `(`)
	assert.ErrorIs(t, err, ErrInvalidJoinPattern)
}
