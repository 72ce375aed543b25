package iterator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/saylorsolutions/fieldparser/pkg/entries"
)

var (
	ErrInvalidJoinPattern = errors.New("invalid join pattern")
)

// CompileJoinPatterns compiles start patterns for Joiner.
func CompileJoinPatterns(patterns ...string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w '%s': %v", ErrInvalidJoinPattern, p, err)
		}
		compiled = append(compiled, r)
	}
	return compiled, nil
}

// Joiner will traverse an Iterator, returning entries that may be joined based on a set of start patterns.
// A start pattern defines what the value of field must look like to be interpreted as the start of a multi-line record.
// Subsequent entries that do not match will have their field value appended to the last start line with a newline.
// If the Iterator starts with an entry that doesn't match, it will be treated as a start anyway.
func Joiner(iter Iterator, field string, starts ...*regexp.Regexp) Iterator {
	if len(starts) == 0 {
		return iter
	}
	j := &joinerState{
		iter:   iter,
		field:  field,
		starts: starts,
		idx:    -1,
	}
	return Func(j.nextFunc)
}

type joinerState struct {
	iter   Iterator
	field  string
	starts []*regexp.Regexp
	start  entries.LogEntry
	text   string
	idx    int
	out    int
}

func (j *joinerState) isStart(entry entries.LogEntry) bool {
	text, ok := entry.AsString(j.field)
	if !ok {
		return false
	}
	for _, r := range j.starts {
		if r.MatchString(text) {
			return true
		}
	}
	return false
}

func (j *joinerState) setStart(entry entries.LogEntry, idx int) {
	j.start, j.idx = entry, idx
	j.text, _ = entry.AsString(j.field)
}

func (j *joinerState) appendText(entry entries.LogEntry) {
	if text, ok := entry.AsString(j.field); ok {
		j.text += "\n" + text
	}
}

func (j *joinerState) finalize() (entries.LogEntry, int) {
	start := j.start
	if j.start.HasField(j.field) || j.text != "" {
		start[j.field] = j.text
	}
	j.start, j.idx, j.text = nil, -1, ""
	out := j.out
	j.out++
	return start, out
}

func (j *joinerState) nextFunc() (entries.LogEntry, int, error) {
	for {
		entry, i, err := j.iter.Next()
		switch {
		case err != nil:
			if j.start != nil {
				final, idx := j.finalize()
				return final, idx, nil
			}
			return Err(err)
		case j.start == nil:
			j.setStart(entry, i)
		case j.isStart(entry):
			final, idx := j.finalize()
			j.setStart(entry, i)
			return final, idx, nil
		default:
			j.appendText(entry)
		}
	}
}
