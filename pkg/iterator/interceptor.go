package iterator

import (
	"context"
	"sync"

	"github.com/saylorsolutions/fieldparser/pkg/entries"
)

// Filter wraps an Iterator with a function that - when it returns true - will allow the return values of Next through.
// If the wrapped Iterator returns a non-nil error, then all values will be passed through regardless.
func Filter(iter Iterator, filter func(entry entries.LogEntry, i int, err error) bool) Iterator {
	return Func(func() (entries.LogEntry, int, error) {
		for {
			entry, idx, err := iter.Next()
			if err != nil {
				return entry, idx, err
			}
			if filter(entry, idx, err) {
				return entry, idx, err
			}
		}
	})
}

// Cancellable wraps an iterator and makes it cancellable by context.
// Once the context is done, Next reports the end of the stream and the remaining entries are forwarded to Drain.
func Cancellable(ctx context.Context, iter Iterator) Iterator {
	var drain sync.Once
	return Func(func() (entries.LogEntry, int, error) {
		select {
		case <-ctx.Done():
			drain.Do(func() {
				Drain(iter)
			})
			return End()
		default:
		}
		return iter.Next()
	})
}

// Concat will return entries from next after base has been exhausted.
// Offsets from next continue on from the last offset of base.
func Concat(base, next Iterator) Iterator {
	var (
		idx      int
		baseDone bool
	)
	return Func(func() (entries.LogEntry, int, error) {
		if !baseDone {
			e, i, err := base.Next()
			if err == nil {
				idx++
				return e, i, nil
			}
			if !IsEnd(err) {
				return e, i, err
			}
			baseDone = true
		}
		e, i, err := next.Next()
		if err != nil {
			return e, i, err
		}
		return e, i + idx, nil
	})
}

// ConcatAll chains iters in order with Concat.
func ConcatAll(iters ...Iterator) Iterator {
	if len(iters) == 0 {
		return Empty()
	}
	out := iters[0]
	for _, iter := range iters[1:] {
		out = Concat(out, iter)
	}
	return out
}
