package fields

import (
	"maps"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/tags"
)

const (
	DefaultParseKey = entries.StandardMessageField
)

// Options configures a Processor.
type Options struct {
	// RemoveTagPrefix is stripped from the batch tag, see tags.Rewriter.
	RemoveTagPrefix string `json:"remove_tag_prefix" mapstructure:"remove_tag_prefix"`
	// AddTagPrefix is prepended to the batch tag, see tags.Rewriter.
	AddTagPrefix string `json:"add_tag_prefix" mapstructure:"add_tag_prefix"`
	// ParseKey names the field holding the text to extract fields from.
	ParseKey string `json:"parse_key" mapstructure:"parse_key"`
	// FieldsKey nests extracted fields under this field instead of the record itself.
	FieldsKey string `json:"fields_key" mapstructure:"fields_key"`
	// Pattern is the extraction pattern used when StrictKeyValue is false.
	Pattern string `json:"pattern" mapstructure:"pattern"`
	// StrictKeyValue parses the text as a logfmt line instead of scanning it with Pattern.
	StrictKeyValue bool `json:"strict_key_value" mapstructure:"strict_key_value"`
}

func DefaultOptions() Options {
	return Options{
		ParseKey: DefaultParseKey,
		Pattern:  DefaultPattern,
	}
}

// Router receives processed records.
type Router interface {
	Emit(tag string, ts time.Time, entry entries.LogEntry) error
}

// RouterFunc adapts a function to a Router.
type RouterFunc func(tag string, ts time.Time, entry entries.LogEntry) error

func (fn RouterFunc) Emit(tag string, ts time.Time, entry entries.LogEntry) error {
	return fn(tag, ts, entry)
}

// Emitted is a record as received by a Collector.
type Emitted struct {
	Tag   string
	Time  time.Time
	Entry entries.LogEntry
}

// Collector is a Router that keeps everything it receives in memory.
type Collector struct {
	mu      sync.Mutex
	emitted []Emitted
}

func (c *Collector) Emit(tag string, ts time.Time, entry entries.LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, Emitted{Tag: tag, Time: ts, Entry: entry})
	return nil
}

// Emitted returns a copy of all records received so far, in the order they arrived.
func (c *Collector) Emitted() []Emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Emitted, len(c.emitted))
	copy(out, c.emitted)
	return out
}

// Processor extracts fields from records and rewrites batch tags.
// It's immutable once created, and may be shared by concurrent callers.
type Processor struct {
	log     hclog.Logger
	opts    Options
	pattern *Pattern
	tags    tags.Rewriter
}

// New creates a Processor, compiling the extraction pattern once up front.
// An empty Options.Pattern selects DefaultPattern, and an empty Options.ParseKey selects DefaultParseKey.
func New(log hclog.Logger, opts Options) (*Processor, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if opts.ParseKey == "" {
		opts.ParseKey = DefaultParseKey
	}
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	pattern, err := Compile(opts.Pattern)
	if err != nil {
		return nil, err
	}
	log = log.Named("fields-parser")
	log.Debug("Processor created", "parse-key", opts.ParseKey, "fields-key", opts.FieldsKey, "strict", opts.StrictKeyValue)
	return &Processor{
		log:     log,
		opts:    opts,
		pattern: pattern,
		tags: tags.Rewriter{
			RemovePrefix: opts.RemoveTagPrefix,
			AddPrefix:    opts.AddTagPrefix,
		},
	}, nil
}

// Options returns the effective options.
func (p *Processor) Options() Options {
	return p.opts
}

// TagRewriter returns the configured tag prefix rules.
func (p *Processor) TagRewriter() tags.Rewriter {
	return p.tags
}

// RewriteTag applies the configured tag prefix rules.
func (p *Processor) RewriteTag(tag string) string {
	return p.tags.Rewrite(tag)
}

// ProcessEntry extracts fields from the parse key of entry and merges them into its target.
// Fields already present in the target are never overwritten.
// If the target can't be resolved, entry is returned unmodified along with an error wrapping entries.ErrTargetNotMapping.
func (p *Processor) ProcessEntry(entry entries.LogEntry) (entries.LogEntry, error) {
	if entry == nil {
		entry = entries.LogEntry{}
	}
	source, _ := entry.AsString(p.opts.ParseKey)
	target, err := entry.Target(p.opts.FieldsKey)
	if err != nil {
		return entry, err
	}
	if source == "" {
		return entry, nil
	}
	if p.opts.StrictKeyValue {
		Merge(target, maps.All(ParseStrict(source)))
	} else {
		Merge(target, Pairs(p.pattern.Scan(source)))
	}
	return entry, nil
}

// Process rewrites tag once for the whole batch, then processes each event in order and emits it to out.
// A record whose target can't be resolved is logged and emitted unmodified.
// An error from out stops the batch and is returned.
func (p *Processor) Process(tag string, events []entries.Event, out Router) error {
	tag = p.RewriteTag(tag)
	for i, ev := range events {
		entry, err := p.ProcessEntry(ev.Entry)
		if err != nil {
			p.log.Warn("Passing record through without extracted fields", "tag", tag, "index", i, "error", err)
		}
		if err := out.Emit(tag, ev.Time, entry); err != nil {
			p.log.Error("Failed to emit record", "tag", tag, "index", i, "error", err)
			return err
		}
	}
	return nil
}
