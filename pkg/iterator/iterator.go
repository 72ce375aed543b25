// Package iterator provides pull-based streams of log entries, and the stages that can be chained onto them.
package iterator

import (
	"context"
	"errors"

	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"golang.org/x/sync/semaphore"
)

var (
	ErrAtEnd = errors.New("end of iteration")
)

type Iterator interface {
	// Next returns the next LogEntry and its offset in the stream.
	// Returns ErrAtEnd when the end of the stream is reached.
	Next() (entries.LogEntry, int, error)
	// Iterate will progress through all LogEntry items in the stream, calling iter for each one along with the offset.
	// If iter returns ErrAtEnd, then iteration will cease, returning nil.
	// If any other error is returned, then iteration will cease, and the error will be returned.
	Iterate(iter func(entry entries.LogEntry, i int) error) error
}

// Func adapts a Next function to an Iterator.
type Func func() (entries.LogEntry, int, error)

func (fn Func) Next() (entries.LogEntry, int, error) {
	return fn()
}

func (fn Func) Iterate(iter func(entry entries.LogEntry, i int) error) error {
	return iterate(fn, iter)
}

// End is the return value of Next once a stream is exhausted.
func End() (entries.LogEntry, int, error) {
	return nil, -1, ErrAtEnd
}

// Err is the return value of Next when a stream fails.
func Err(err error) (entries.LogEntry, int, error) {
	return nil, -1, err
}

// IsEnd reports whether err signals the end of a stream.
func IsEnd(err error) bool {
	return errors.Is(err, ErrAtEnd)
}

// Empty returns an Iterator that has already ended.
func Empty() Iterator {
	return Func(End)
}

func iterate(next func() (entries.LogEntry, int, error), iter func(entry entries.LogEntry, i int) error) error {
	for {
		entry, i, err := next()
		if err != nil {
			if IsEnd(err) {
				return nil
			}
			return err
		}
		if err := iter(entry, i); err != nil {
			if IsEnd(err) {
				return nil
			}
			return err
		}
	}
}

func FromSlice(entries []entries.LogEntry) Iterator {
	return &entrySlice{entries: entries}
}

func FromChannel(entries <-chan entries.LogEntry) Iterator {
	return &entryChannel{ch: entries}
}

// AsChannel exposes the remaining entries of iter as a channel, which is closed when iter ends.
func AsChannel(iter Iterator) <-chan entries.LogEntry {
	if chi, ok := iter.(*entryChannel); ok {
		return chi.ch
	}
	if chs, ok := iter.(*entrySlice); ok {
		remaining := chs.entries[chs.next:]
		chs.next = len(chs.entries)
		ch := make(chan entries.LogEntry, len(remaining))
		defer close(ch)
		for _, entry := range remaining {
			ch <- entry
		}
		return ch
	}
	ch := make(chan entries.LogEntry)
	go func() {
		defer close(ch)
		_ = iter.Iterate(func(entry entries.LogEntry, i int) error {
			ch <- entry
			return nil
		})
	}()
	return ch
}

// Merge will take over the passed in Iterators and forward all LogEntry elements to the new Iterator.
// There is no ordering guarantee between entries of different inputs.
// It's advised not to read from an iterator that has been passed to Merge.
func Merge(a, b Iterator) Iterator {
	aCh := AsChannel(a)
	bCh := AsChannel(b)

	outCh := make(chan entries.LogEntry)
	out := FromChannel(outCh)

	go func() {
		defer close(outCh)
		for aCh != nil || bCh != nil {
			select {
			case ae, ok := <-aCh:
				if !ok {
					aCh = nil
					continue
				}
				outCh <- ae
			case be, ok := <-bCh:
				if !ok {
					bCh = nil
					continue
				}
				outCh <- be
			}
		}
	}()
	return out
}

// MergeAll folds Merge over iters.
// A single Iterator is returned as-is, and no Iterators produce an Empty one.
func MergeAll(iters ...Iterator) Iterator {
	switch len(iters) {
	case 0:
		return Empty()
	case 1:
		return iters[0]
	}
	merged := iters[0]
	for _, iter := range iters[1:] {
		merged = Merge(merged, iter)
	}
	return merged
}

// Dupe will take control of and branch the duplicate Iterator into two identical Iterators.
// Any LogEntry posted to the source Iterator will be sent to both of the new Iterators.
// This is useful in a case similar to when you want to print messages as well as write them to a file.
// It's not advised to read from an Iterator that has been passed to Dupe, use one of the returned Iterators instead.
func Dupe(iter Iterator) (Iterator, Iterator) {
	out := Fanout(iter, 2)
	return out[0], out[1]
}

// Fanout is the n-way form of Dupe.
// Every branch receives the same LogEntry value, so branches that modify entries should copy them first.
// Each branch must be consumed, or the others will eventually block.
func Fanout(iter Iterator, n int) []Iterator {
	if n < 1 {
		return nil
	}
	if iter == nil {
		ch := make(chan entries.LogEntry)
		close(ch)
		out := make([]Iterator, n)
		for i := range out {
			out[i] = FromChannel(ch)
		}
		return out
	}

	chans := make([]chan entries.LogEntry, n)
	out := make([]Iterator, n)
	for i := range chans {
		chans[i] = make(chan entries.LogEntry)
		out[i] = FromChannel(chans[i])
	}

	go func() {
		sem := semaphore.NewWeighted(int64(n))
		ctx := context.Background()

		defer func() {
			_ = sem.Acquire(ctx, int64(n))
			for _, ch := range chans {
				close(ch)
			}
		}()
		_ = iter.Iterate(func(entry entries.LogEntry, i int) error {
			for _, ch := range chans {
				_ = sem.Acquire(ctx, 1)
				go func(ch chan<- entries.LogEntry) {
					defer sem.Release(1)
					ch <- entry
				}(ch)
			}
			// All branches receive an entry before the next is sent, so each branch sees source order.
			_ = sem.Acquire(ctx, int64(n))
			sem.Release(int64(n))
			return nil
		})
	}()
	return out
}

// Drain will drain all entries from an Iterator in a new goroutine.
// This can be useful as an error fallback in case of an iteration error to prevent upstream blocking.
func Drain(iter Iterator) {
	ch := AsChannel(iter)
	go func() {
		for range ch {
		}
	}()
}
