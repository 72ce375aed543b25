package file

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func _writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func _messages(t *testing.T, iter iterator.Iterator) []string {
	t.Helper()
	var msgs []string
	require.NoError(t, iter.Iterate(func(entry entries.LogEntry, i int) error {
		assert.True(t, entry.HasField("@read_timestamp"), "Entry should have '@read_timestamp' field")
		assert.True(t, entry.HasField("@read_line_number"), "Entry should have '@read_line_number' field")
		assert.True(t, entry.HasField("@read_file"), "Entry should have '@read_file' field")
		msg, _ := entry.AsString(entries.StandardMessageField)
		msgs = append(msgs, msg)
		return nil
	}))
	return msgs
}

func TestSource_Structured(t *testing.T) {
	path := _writeFile(t, filepath.Join(t.TempDir(), "structured.log"), `{"message":"A","@timestamp":"2024-01-01T00:00:00Z"}
{"message":"B","@timestamp":"2024-01-01T00:00:01Z"}
{"message":"C","@timestamp":"2024-01-01T00:00:02Z","level":"warn"}
`)
	iter, err := Source(context.Background(), hclog.NewNullLogger(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, _messages(t, iter))
}

func TestSource_Unstructured(t *testing.T) {
	path := _writeFile(t, filepath.Join(t.TempDir(), "unstructured.log"), "A\nlevel=info msg=B\nC\n")
	iter, err := Source(context.Background(), hclog.NewNullLogger(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "level=info msg=B", "C"}, _messages(t, iter))
}

func TestSource_Missing(t *testing.T) {
	_, err := Source(context.Background(), hclog.NewNullLogger(), filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}

func TestGlobSource(t *testing.T) {
	td := t.TempDir()
	_writeFile(t, filepath.Join(td, "b.log"), "B1\nB2\n")
	_writeFile(t, filepath.Join(td, "a.log"), "A1\n")
	_writeFile(t, filepath.Join(td, "nested", "deeper", "c.log"), "C1\n")
	_writeFile(t, filepath.Join(td, "ignored.txt"), "X\n")

	iter, err := GlobSource(context.Background(), hclog.NewNullLogger(), filepath.Join(td, "**", "*.log"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B1", "B2", "C1"}, _messages(t, iter))
}

func TestGlobSource_NoMatches(t *testing.T) {
	iter, err := GlobSource(context.Background(), hclog.NewNullLogger(), filepath.Join(t.TempDir(), "*.log"))
	require.NoError(t, err)
	_, _, err = iter.Next()
	assert.ErrorIs(t, err, iterator.ErrAtEnd)
}

func TestTailSource(t *testing.T) {
	path := _writeFile(t, filepath.Join(t.TempDir(), "tail.log"), "first\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	iter, err := TailSource(ctx, hclog.NewNullLogger(), path)
	require.NoError(t, err)
	entriesCh := iterator.AsChannel(iter)

	next := func() entries.LogEntry {
		select {
		case e, ok := <-entriesCh:
			require.True(t, ok, "Source should still be open")
			return e
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for tailed line")
			return nil
		}
	}
	assert.Equal(t, "first", next()[entries.StandardMessageField])

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "second", next()[entries.StandardMessageField])

	cancel()
	for range entriesCh {
	}
}

func TestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	iter := iterator.FromSlice([]entries.LogEntry{
		{"A": "A"},
		{"B": int64(2)},
	})
	require.NoError(t, Sink(iter, path, 0600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{`{"A":"A"}`, `{"B":2}`}, lines)
}

func TestPlugin_Args(t *testing.T) {
	reg := plugin.NewRegistration()
	Plugin(nil).Register(reg)

	for _, class := range []string{"File", "Tail", "Glob"} {
		src, _, ok := reg.Source("file", class)
		require.True(t, ok, "Source file.%s should be registered", class)
		_, err := src(context.Background())
		assert.ErrorIs(t, err, plugin.ErrArgs)
	}

	sink, _, ok := reg.Sink("file", "File")
	require.True(t, ok)
	err := sink(context.Background(), iterator.Empty(), filepath.Join(t.TempDir(), "out.log"), "9z")
	assert.ErrorIs(t, err, plugin.ErrArgs)
	assert.NoError(t, sink(context.Background(), iterator.Empty(), filepath.Join(t.TempDir(), "out.log"), "644"))
}
