package iterator

import (
	"time"

	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/fields"
)

// ParseFields runs every entry through proc as a batch of one, using the entry's own tag as the batch tag.
// The rewritten tag replaces the entry's tag, and a tag rewritten to nothing removes the field.
// An error from proc ends the stream with that error.
func ParseFields(iter Iterator, proc *fields.Processor) Iterator {
	keepTags := proc.TagRewriter().IsNoop()
	return Func(func() (entries.LogEntry, int, error) {
		entry, i, err := iter.Next()
		if err != nil {
			return Err(err)
		}
		var parsed entries.LogEntry
		router := fields.RouterFunc(func(tag string, _ time.Time, entry entries.LogEntry) error {
			parsed = entry
			switch {
			case keepTags:
			case tag != "":
				entry.SetTag(tag)
			default:
				delete(entry, entries.StandardTagField)
			}
			return nil
		})
		if err := proc.Process(entry.TagValue(), []entries.Event{entries.NewEvent(entry)}, router); err != nil {
			return Err(err)
		}
		return parsed, i, nil
	})
}
