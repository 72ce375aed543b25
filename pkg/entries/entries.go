package entries

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	StandardMessageField   = "message"
	StandardTimestampField = "@timestamp"
	StandardTagField       = "@tag"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogEntry is a single record in a log stream, with potentially many fields.
// Values are dynamically typed: strings, booleans, numbers, nil, or nested mappings.
type LogEntry map[string]any

// Event pairs a LogEntry with the time it was observed.
type Event struct {
	Time  time.Time
	Entry LogEntry
}

func NewEvent(entry LogEntry) Event {
	ts, ok := entry.AsTime(StandardTimestampField)
	if !ok {
		ts = time.Now().UTC()
	}
	return Event{Time: ts, Entry: entry}
}

// HasField reports whether the field is present, even if its value is nil.
func (e LogEntry) HasField(name string) bool {
	_, ok := e[name]
	return ok
}

// AsString renders the field as a string.
// Nil values are rendered as the empty string, nested mappings and slices as JSON.
func (e LogEntry) AsString(name string) (string, bool) {
	if !e.HasField(name) {
		return "", false
	}
	switch v := e[name].(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	case error:
		return v.Error(), true
	case map[string]any, LogEntry, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), true
		}
		return string(data), true
	}
	return fmt.Sprintf("%v", e[name]), true
}

func (e LogEntry) AsTime(name string, format ...string) (time.Time, bool) {
	var none time.Time
	if !e.HasField(name) {
		return none, false
	}
	if t, ok := e[name].(time.Time); ok {
		return t.UTC(), true
	}
	if s, ok := e[name].(string); ok {
		if len(format) == 0 {
			format = []string{time.RFC3339Nano}
		}
		for _, f := range format {
			t, err := time.Parse(f, s)
			if err == nil {
				return t.UTC(), true
			}
		}
	}
	return none, false
}

// SetTag replaces the standard tag field.
func (e LogEntry) SetTag(tag string) {
	e[StandardTagField] = tag
}

// TagValue returns the standard tag field, or an empty string if it's not set.
func (e LogEntry) TagValue() string {
	s, _ := e.AsString(StandardTagField)
	return s
}

// FromString parses msg as a JSON object.
// Anything that isn't a JSON object is stored as-is in the StandardMessageField.
func FromString(msg string) LogEntry {
	entry := LogEntry{}
	trimmed := strings.TrimSpace(msg)
	if !strings.HasPrefix(trimmed, "{") {
		entry[StandardMessageField] = msg
		return entry
	}
	if err := json.UnmarshalFromString(trimmed, &entry); err != nil {
		entry = LogEntry{StandardMessageField: msg}
	}
	return entry
}

// JSON renders the entry as a single line JSON document.
func (e LogEntry) JSON() (string, error) {
	return json.MarshalToString(e)
}
