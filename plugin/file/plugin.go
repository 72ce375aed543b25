package file

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
)

var _ plugin.Plugin = (*filePlugin)(nil)

func Plugin(log hclog.Logger) plugin.Plugin {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &filePlugin{log: log.Named("file")}
}

type filePlugin struct {
	log hclog.Logger
}

func (*filePlugin) ID() string {
	return "file"
}

func (*filePlugin) Stopping() error {
	return nil
}

func (p *filePlugin) Register(reg *plugin.Registration) {
	reg.RegisterSource("file", "Tail", func(ctx context.Context, args ...string) (iterator.Iterator, error) {
		if err := plugin.RequireArgs(args, 1, "FILE_NAME"); err != nil {
			return nil, err
		}
		return TailSource(ctx, p.log, args[0])
	})
	reg.DocumentSource("file", "Tail", `file.Tail FILE_NAME

This source will watch the file specified by FILE_NAME for changes, producing a new log entry for each new line.
Just like the file.File source, structured or unstructured data may be read.`)
	reg.RegisterSource("file", "File", func(ctx context.Context, args ...string) (iterator.Iterator, error) {
		if err := plugin.RequireArgs(args, 1, "FILE_NAME"); err != nil {
			return nil, err
		}
		return Source(ctx, p.log, args[0])
	})
	reg.DocumentSource("file", "File", `file.File FILE_NAME

This source will read each line of the file specified by FILE_NAME, emitting a log entry for each one.
If the line represents a valid JSON object, then it will be emitted as-is except with additional fields specifying read timing.
Otherwise, the line is added to a log entry with a field "message" containing the original line.`)
	reg.RegisterSource("file", "Glob", func(ctx context.Context, args ...string) (iterator.Iterator, error) {
		if err := plugin.RequireArgs(args, 1, "PATTERN"); err != nil {
			return nil, err
		}
		return GlobSource(ctx, p.log, args[0])
	})
	reg.DocumentSource("file", "Glob", `file.Glob PATTERN

This source will read every file matching PATTERN in lexical order, just like file.File.
The pattern may contain "**" to match any number of nested directories, like "/var/log/**/*.log".`)
	reg.RegisterSink("file", "File", func(_ context.Context, src iterator.Iterator, args ...string) error {
		if err := plugin.RequireArgs(args, 1, "FILE_NAME"); err != nil {
			iterator.Drain(src)
			return err
		}

		if len(args) >= 2 {
			perms, err := strconv.ParseUint(args[1], 8, 32)
			if err != nil {
				iterator.Drain(src)
				return fmt.Errorf("%w: invalid file permission argument '%s'", plugin.ErrArgs, args[1])
			}
			return Sink(src, args[0], os.FileMode(perms))
		}
		return Sink(src, args[0], 0600)
	})
	reg.DocumentSink("file", "File", `file.File FILE_NAME [FILE_MODE]

This sink will append each log entry as a JSON document on a single line to a file specified by FILE_NAME, creating it if necessary.
If FILE_MODE is specified, and it's a string representing a valid octal file mode like "644", then this mode will be used to create the file if it doesn't already exist.
If FILE_MODE is specified but invalid, then the sink operation will fail.
If FILE_MODE is not specified, then a value of "600" will be assumed.
The file's permissions will not be modified if it already exists.`)
}
