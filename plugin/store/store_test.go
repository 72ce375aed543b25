package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func _tempStore(t *testing.T) *SqliteStore {
	t.Helper()
	log := hclog.New(&hclog.LoggerOptions{
		Name:   t.Name(),
		Level:  hclog.Debug,
		Output: hclog.DefaultOutput,
	})
	store, err := NewStore(log, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err, "Failed to create new store")
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Error("Failed to close DB:", err)
		}
	})
	return store
}

func _query(t *testing.T, store *SqliteStore, table string) []entries.LogEntry {
	t.Helper()
	iter, err := store.QueryEntries(context.Background(), table)
	require.NoError(t, err)
	var out []entries.LogEntry
	require.NoError(t, iter.Iterate(func(entry entries.LogEntry, i int) error {
		assert.Equal(t, len(out), i, "Rows should be numbered in order")
		out = append(out, entry)
		return nil
	}))
	return out
}

func TestSqliteStore_Sink(t *testing.T) {
	iter := iterator.FromSlice([]entries.LogEntry{
		{
			"A":           "A",
			"other-field": "value",
		},
		{
			"A": "A",
			"B": "B",
		},
		{
			"A":         "A",
			"B":         "B",
			"C":         "C",
			`quo"ted`:   int64(5),
			"output":    map[string]any{"k": "v"},
			"nil-value": nil,
		},
	})
	store := _tempStore(t)
	require.NoError(t, store.Sink(context.Background(), iter, "test"))

	rows := _query(t, store, "test")
	assert.Equal(t, []entries.LogEntry{
		{"A": "A", "other-field": "value"},
		{"A": "A", "B": "B"},
		{"A": "A", "B": "B", "C": "C", `quo"ted`: "5", "output": `{"k":"v"}`},
	}, rows)
}

func TestSqliteStore_Sink_Appends(t *testing.T) {
	store := _tempStore(t)
	require.NoError(t, store.Sink(context.Background(), iterator.FromSlice([]entries.LogEntry{{"a": "1"}}), "main.logs"))
	require.NoError(t, store.Sink(context.Background(), iterator.FromSlice([]entries.LogEntry{{"b": "2"}, {}}), "main.logs"))

	assert.Equal(t, []entries.LogEntry{
		{"a": "1"},
		{"b": "2"},
		{},
	}, _query(t, store, "main.logs"))
}

func TestSqliteStore_BadTable(t *testing.T) {
	store := _tempStore(t)
	err := store.Sink(context.Background(), iterator.FromSlice([]entries.LogEntry{{"a": "1"}}), "bad table; drop")
	assert.ErrorIs(t, err, ErrBadTable)
	_, err = store.QueryEntries(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, ErrBadTable)
}

func TestPlugin_RoundTrip(t *testing.T) {
	reg := plugin.NewRegistration()
	p := Plugin(nil)
	p.Register(reg)
	dbFile := filepath.Join(t.TempDir(), "plugin.db")

	sink, _, ok := reg.Sink("sqlite", "Table")
	require.True(t, ok)
	require.NoError(t, sink(context.Background(), iterator.FromSlice([]entries.LogEntry{{"k": "v"}}), dbFile, "events"))

	src, _, ok := reg.Source("sqlite", "Table")
	require.True(t, ok)
	iter, err := src(context.Background(), dbFile, "events")
	require.NoError(t, err)
	entry, _, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, entries.LogEntry{"k": "v"}, entry)
	_, _, err = iter.Next()
	assert.ErrorIs(t, err, iterator.ErrAtEnd)

	_, err = src(context.Background(), dbFile)
	assert.ErrorIs(t, err, plugin.ErrArgs)

	assert.NoError(t, p.Stopping())
}
