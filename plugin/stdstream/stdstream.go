package stdstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
)

const maxLineSize = 1024 * 1024

var _ plugin.Plugin = (*stdplugin)(nil)

func Plugin() plugin.Plugin {
	return new(stdplugin)
}

type stdplugin struct {
}

func (s *stdplugin) ID() string {
	return "std"
}

func (s *stdplugin) Register(reg *plugin.Registration) {
	reg.RegisterSource("std", "In", SourceIn)
	reg.DocumentSource("std", "In", `std.In

Reads each line of STDIN as a log entry. The input may be a valid JSON object, or completely unstructured.
Unstructured lines are stored in the "message" field.`)
	reg.RegisterSink("std", "Out", SinkOut)
	reg.DocumentSink("std", "Out", `std.Out

Writes each log entry as a line of JSON to STDOUT.`)
	reg.RegisterSink("std", "Err", SinkErr)
	reg.DocumentSink("std", "Err", `std.Err

Writes each log entry as a line of JSON to STDERR.`)
}

func (s *stdplugin) Stopping() error {
	return nil
}

func SourceIn(ctx context.Context, _ ...string) (iterator.Iterator, error) {
	return ReaderSource(ctx, os.Stdin), nil
}

// ReaderSource produces an entry for each line read from r, until r is exhausted or ctx is cancelled.
func ReaderSource(ctx context.Context, r io.Reader) iterator.Iterator {
	ch := make(chan entries.LogEntry)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case ch <- entries.FromString(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return iterator.FromChannel(ch)
}

func SinkOut(ctx context.Context, src iterator.Iterator, _ ...string) error {
	return WriterSink(ctx, src, os.Stdout)
}

func SinkErr(ctx context.Context, src iterator.Iterator, _ ...string) error {
	return WriterSink(ctx, src, os.Stderr)
}

// WriterSink writes each entry from src to w as a line of JSON, until src ends or ctx is cancelled.
func WriterSink(ctx context.Context, src iterator.Iterator, w io.Writer) error {
	err := src.Iterate(func(entry entries.LogEntry, i int) error {
		if ctx.Err() != nil {
			return iterator.ErrAtEnd
		}
		str, err := entry.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", str)
		return err
	})
	if err != nil {
		iterator.Drain(src)
		return err
	}
	if ctx.Err() != nil {
		iterator.Drain(src)
	}
	return nil
}
