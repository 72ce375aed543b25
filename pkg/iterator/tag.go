package iterator

import (
	"github.com/saylorsolutions/fieldparser/pkg/entries"
)

// Tag sets the standard tag field to tag for entries that don't already have one.
func Tag(iter Iterator, tag string) Iterator {
	if tag == "" {
		return iter
	}
	return Func(func() (entries.LogEntry, int, error) {
		entry, i, err := iter.Next()
		if err != nil {
			return Err(err)
		}
		if entry.TagValue() == "" {
			entry.SetTag(tag)
		}
		return entry, i, nil
	})
}
