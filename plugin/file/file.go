package file

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/nxadm/tail"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
)

const (
	readTimeField = "@read_timestamp"
	readLineField = "@read_line_number"
	readFileField = "@read_file"
)

// Source reads filename from the beginning, producing an entry for each line, and ends once the end of the file is reached.
// If a line is a JSON object, then its fields are used as the entry's fields.
// Otherwise, the line is stored in the standard message field.
func Source(ctx context.Context, log hclog.Logger, filename string) (iterator.Iterator, error) {
	_, iter, err := lineSource(ctx, log, filename, false)
	return iter, err
}

// TailSource behaves like Source, except that it follows filename for new lines until ctx is cancelled.
// The file is re-opened if it's rotated.
func TailSource(ctx context.Context, log hclog.Logger, filename string) (iterator.Iterator, error) {
	_, iter, err := lineSource(ctx, log, filename, true)
	return iter, err
}

// GlobSource reads every file matching pattern, in lexical order, one after the other.
// Patterns may use "**" to match any number of directories.
func GlobSource(ctx context.Context, log hclog.Logger, pattern string) (iterator.Iterator, error) {
	if !doublestar.ValidatePathPattern(pattern) {
		return nil, fmt.Errorf("%w: %s", doublestar.ErrBadPattern, pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	log.Debug("Glob matched files", "pattern", pattern, "matches", len(matches))
	iters := make([]iterator.Iterator, 0, len(matches))
	for _, match := range matches {
		iter, err := Source(ctx, log, match)
		if err != nil {
			for _, opened := range iters {
				iterator.Drain(opened)
			}
			return nil, err
		}
		iters = append(iters, iter)
	}
	return iterator.ConcatAll(iters...), nil
}

func lineEntry(filename string, line *tail.Line) entries.LogEntry {
	entry := entries.FromString(line.Text)
	entry[readTimeField] = line.Time.UTC().Format(time.RFC3339Nano)
	entry[readLineField] = line.Num
	entry[readFileField] = filename
	return entry
}

func lineSource(ctx context.Context, log hclog.Logger, filename string, follow bool) (*tail.Tail, iterator.Iterator, error) {
	log = log.With("file", filename, "follow", follow)
	t, err := tail.TailFile(filename, tail.Config{
		ReOpen:    follow,
		MustExist: true,
		Follow:    follow,
		Logger:    log.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	})
	if err != nil {
		log.Error("Failed to open file", "error", err)
		return nil, nil, err
	}

	ch := make(chan entries.LogEntry)
	go func() {
		defer func() {
			close(ch)
			_ = t.Stop()
			t.Cleanup()
			log.Debug("File source closed")
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case l, ok := <-t.Lines:
				if !ok {
					return
				}
				if l.Err != nil {
					log.Warn("Error reading line", "line", l.Num, "error", l.Err)
					continue
				}
				select {
				case ch <- lineEntry(filename, l):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return t, iterator.FromChannel(ch), nil
}

// Sink will append each entry in the iterator.Iterator to the specified file as a line of JSON, creating it if necessary.
// If Sink is called asynchronously, it's recommended to wait until it returns to close down the application.
// In case of an error, Sink will drain the iterator.Iterator to prevent upstream blocking.
func Sink(iter iterator.Iterator, filename string, perms os.FileMode) error {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, perms)
	if err != nil {
		iterator.Drain(iter)
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	err = iter.Iterate(func(entry entries.LogEntry, _ int) error {
		line, err := entry.JSON()
		if err != nil {
			return err
		}
		_, err = f.WriteString(line + "\n")
		return err
	})
	if err != nil {
		iterator.Drain(iter)
		return err
	}
	return f.Sync()
}
