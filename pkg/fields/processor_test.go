package fields

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testTag = "orig.test.tag"

func newTestProcessor(t *testing.T, opts Options) *Processor {
	t.Helper()
	p, err := New(hclog.NewNullLogger(), opts)
	require.NoError(t, err)
	return p
}

func _events(records ...entries.LogEntry) []entries.Event {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	events := make([]entries.Event, len(records))
	for i, rec := range records {
		events[i] = entries.Event{Time: ts.Add(time.Duration(i) * time.Second), Entry: rec}
	}
	return events
}

func TestProcessor_Process(t *testing.T) {
	tests := map[string]struct {
		opts     Options
		records  []entries.LogEntry
		expected []entries.LogEntry
	}{
		"defaults": {
			opts: DefaultOptions(),
			records: []entries.LogEntry{
				{"message": "parse this num=-56.7 tok=abc%25 null=", "other_key": " test2 a=b "},
			},
			expected: []entries.LogEntry{
				{
					"message":   "parse this num=-56.7 tok=abc%25 null=",
					"other_key": " test2 a=b ",
					"num":       "-56.7",
					"tok":       "abc%25",
					"null":      "",
				},
			},
		},
		"quoted values": {
			records: []entries.LogEntry{
				{"message": `blax dq="asd ' asd +3" sq='as " s " 4' s=yu 6`},
			},
			expected: []entries.LogEntry{
				{
					"message": `blax dq="asd ' asd +3" sq='as " s " 4' s=yu 6`,
					"dq":      `asd ' asd +3`,
					"sq":      `as " s " 4`,
					"s":       "yu",
				},
			},
		},
		"parse key missing": {
			records:  []entries.LogEntry{{}},
			expected: []entries.LogEntry{{}},
		},
		"existing keys are kept": {
			records: []entries.LogEntry{
				{"message": "mock a=77 message=blax a=999 e=5", "e": nil},
			},
			expected: []entries.LogEntry{
				{"message": "mock a=77 message=blax a=999 e=5", "a": "77", "e": nil},
			},
		},
		"custom parse key": {
			opts: Options{ParseKey: "custom_key"},
			records: []entries.LogEntry{
				{"message": " test2 c=d ", "custom_key": " test2 a=b "},
				{},
			},
			expected: []entries.LogEntry{
				{"message": " test2 c=d ", "custom_key": " test2 a=b ", "a": "b"},
				{},
			},
		},
		"fields key": {
			opts: Options{FieldsKey: "output-key"},
			records: []entries.LogEntry{
				{"message": "parse this num=-56.7 tok=abc%25 message=a+b"},
			},
			expected: []entries.LogEntry{
				{
					"message": "parse this num=-56.7 tok=abc%25 message=a+b",
					"output-key": map[string]any{
						"num":     "-56.7",
						"tok":     "abc%25",
						"message": "a+b",
					},
				},
			},
		},
		"fields key created without source": {
			opts:     Options{FieldsKey: "output-key"},
			records:  []entries.LogEntry{{}},
			expected: []entries.LogEntry{{"output-key": map[string]any{}}},
		},
		"fields key reused": {
			opts: Options{FieldsKey: "out"},
			records: []entries.LogEntry{
				{"message": "a=1 b=2", "out": map[string]any{"a": "0"}},
			},
			expected: []entries.LogEntry{
				{"message": "a=1 b=2", "out": map[string]any{"a": "0", "b": "2"}},
			},
		},
		"custom pattern": {
			opts: Options{Pattern: `(\w+):(\d+)`},
			records: []entries.LogEntry{
				{"message": "parse this a:44 b:ignore-this h=7 bbb:999"},
				{"message": "a"},
			},
			expected: []entries.LogEntry{
				{"message": "parse this a:44 b:ignore-this h=7 bbb:999", "a": "44", "bbb": "999"},
				{"message": "a"},
			},
		},
		"strict": {
			opts: Options{StrictKeyValue: true},
			records: []entries.LogEntry{
				{"message": `msg="Audit log" user=Johnny action="add-user" dontignore=don't-ignore-this result=success iVal=23 fVal=1.02 bVal=true`},
				{"message": "a"},
			},
			expected: []entries.LogEntry{
				{
					"message":    `msg="Audit log" user=Johnny action="add-user" dontignore=don't-ignore-this result=success iVal=23 fVal=1.02 bVal=true`,
					"msg":        "Audit log",
					"user":       "Johnny",
					"action":     "add-user",
					"dontignore": "don't-ignore-this",
					"result":     "success",
					"iVal":       int64(23),
					"fVal":       1.02,
					"bVal":       "true",
				},
				{"message": "a"},
			},
		},
		"strict keeps existing keys": {
			opts: Options{StrictKeyValue: true},
			records: []entries.LogEntry{
				{"message": "message=other level=3", "level": "info"},
			},
			expected: []entries.LogEntry{
				{"message": "message=other level=3", "level": "info"},
			},
		},
		"strict into fields key": {
			opts: Options{StrictKeyValue: true, FieldsKey: "kv"},
			records: []entries.LogEntry{
				{"message": "n=1"},
			},
			expected: []entries.LogEntry{
				{"message": "n=1", "kv": map[string]any{"n": int64(1)}},
			},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			p := newTestProcessor(t, tc.opts)
			events := _events(tc.records...)
			var out Collector
			require.NoError(t, p.Process(testTag, events, &out))

			emitted := out.Emitted()
			require.Len(t, emitted, len(tc.expected))
			for i, e := range emitted {
				assert.Equal(t, testTag, e.Tag)
				assert.Equal(t, events[i].Time, e.Time, "Timestamps should pass through in order")
				assert.Equal(t, tc.expected[i], e.Entry)
			}
		})
	}
}

func TestProcessor_Process_TagPrefixes(t *testing.T) {
	tests := map[string]struct {
		tag      string
		expected string
	}{
		"nested":        {tag: testTag, expected: "new.test.tag"},
		"empty":         {tag: "", expected: "new"},
		"shared prefix": {tag: "original", expected: "new.original"},
		"exact":         {tag: "orig", expected: "new"},
	}

	p := newTestProcessor(t, Options{RemoveTagPrefix: "orig", AddTagPrefix: "new"})
	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			var out Collector
			require.NoError(t, p.Process(tc.tag, _events(entries.LogEntry{"message": "abc"}, entries.LogEntry{}), &out))
			emitted := out.Emitted()
			require.Len(t, emitted, 2)
			for _, e := range emitted {
				assert.Equal(t, tc.expected, e.Tag)
			}
		})
	}
}

func TestProcessor_Process_TargetNotMapping(t *testing.T) {
	p := newTestProcessor(t, Options{FieldsKey: "out"})
	records := []entries.LogEntry{
		{"message": "a=1", "out": "not a map"},
		{"message": "a=1"},
	}
	var out Collector
	require.NoError(t, p.Process(testTag, _events(records...), &out))

	emitted := out.Emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, entries.LogEntry{"message": "a=1", "out": "not a map"}, emitted[0].Entry)
	assert.Equal(t, entries.LogEntry{"message": "a=1", "out": map[string]any{"a": "1"}}, emitted[1].Entry)

	_, err := p.ProcessEntry(entries.LogEntry{"message": "a=1", "out": 5})
	assert.ErrorIs(t, err, entries.ErrTargetNotMapping)
}

func TestProcessor_Process_EmitError(t *testing.T) {
	p := newTestProcessor(t, DefaultOptions())
	errStop := errors.New("stop")
	var calls int
	router := RouterFunc(func(tag string, ts time.Time, entry entries.LogEntry) error {
		calls++
		if calls == 2 {
			return errStop
		}
		return nil
	})
	err := p.Process(testTag, _events(entries.LogEntry{}, entries.LogEntry{}, entries.LogEntry{}), router)
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 2, calls, "Processing should stop at the first emit error")
}

func TestProcessor_ProcessEntry_Idempotent(t *testing.T) {
	p := newTestProcessor(t, DefaultOptions())
	entry := entries.LogEntry{"message": "a=1 b=\"two words\""}
	first, err := p.ProcessEntry(entry)
	require.NoError(t, err)
	snapshot := entries.LogEntry{}
	for k, v := range first {
		snapshot[k] = v
	}
	second, err := p.ProcessEntry(first)
	require.NoError(t, err)
	assert.Equal(t, snapshot, second)
}

func TestProcessor_ProcessEntry_NonStringSource(t *testing.T) {
	p := newTestProcessor(t, Options{ParseKey: "n"})
	entry, err := p.ProcessEntry(entries.LogEntry{"n": 5})
	require.NoError(t, err)
	assert.Equal(t, entries.LogEntry{"n": 5}, entry)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(nil, Options{Pattern: `(`})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), p.Options())
}

func TestProcessor_Concurrent(t *testing.T) {
	p := newTestProcessor(t, Options{AddTagPrefix: "parsed"})
	const batches = 16

	var (
		grp  errgroup.Group
		outs [batches]Collector
	)
	for b := 0; b < batches; b++ {
		b := b
		grp.Go(func() error {
			records := make([]entries.LogEntry, 50)
			for i := range records {
				records[i] = entries.LogEntry{"message": fmt.Sprintf("batch=%d seq=%d", b, i)}
			}
			return p.Process(fmt.Sprintf("src%d", b), _events(records...), &outs[b])
		})
	}
	require.NoError(t, grp.Wait())

	for b := 0; b < batches; b++ {
		emitted := outs[b].Emitted()
		require.Len(t, emitted, 50)
		for i, e := range emitted {
			assert.Equal(t, fmt.Sprintf("parsed.src%d", b), e.Tag)
			assert.Equal(t, fmt.Sprintf("%d", b), e.Entry["batch"])
			assert.Equal(t, fmt.Sprintf("%d", i), e.Entry["seq"], "Output order should match input order")
		}
	}
}
