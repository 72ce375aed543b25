// Package runtime wires plugin sources, the field parser, and plugin sinks into a running pipeline.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/fields"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidState  = errors.New("invalid state")
	ErrUnknownSource = errors.New("unknown source class")
	ErrUnknownSink   = errors.New("unknown sink class")
	ErrNoSources     = errors.New("no sources configured")
	ErrNoSinks       = errors.New("no sinks configured")
)

type runtimeState int

const (
	created runtimeState = iota
	started
	executing
	stopping
	done
)

var (
	stateStrings = map[runtimeState]string{
		created:   "Created",
		started:   "Started",
		executing: "Executing",
		stopping:  "Stopping",
		done:      "Done",
	}
)

// Endpoint references a plugin source or sink, like "file.Tail", along with its arguments.
type Endpoint struct {
	Class string   `json:"class" mapstructure:"class"`
	Args  []string `json:"args,omitempty" mapstructure:"args"`
}

func (e Endpoint) String() string {
	return e.Class
}

// Pipeline describes a single run: entries from all Sources are merged, optionally joined, parsed for fields, and sent to every Sink.
type Pipeline struct {
	// Tag is used as the batch tag for entries that don't carry their own.
	Tag string
	// JoinPatterns identify the first line of a multi-line record in the parse key.
	JoinPatterns []string
	Sources      []Endpoint
	Sinks        []Endpoint
	Fields       fields.Options
}

// Summary describes a completed Run.
type Summary struct {
	Entries   int64
	TextBytes uint64
	Duration  time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("%s entries (%s of text) in %s", humanize.Comma(s.Entries), humanize.Bytes(s.TextBytes), s.Duration.Round(time.Millisecond))
}

type Runtime struct {
	log      hclog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	registry *plugin.Registration
	plugins  []plugin.Plugin
	wg       sync.WaitGroup
	mux      sync.Mutex
	state    runtimeState
}

func NewRuntime(log hclog.Logger, plugins ...plugin.Plugin) *Runtime {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Runtime{
		log:      log.Named("runtime"),
		registry: plugin.NewRegistration(),
		plugins:  plugins,
	}
}

// Registry exposes the sources and sinks registered by plugins.
func (r *Runtime) Registry() *plugin.Registration {
	return r.registry
}

func (r *Runtime) Start(_ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	start := time.Now()
	log := r.log
	log.Debug("Starting runtime")
	if r.state != created {
		err := fmt.Errorf("%w: invalid state for start operation: %s", ErrInvalidState, stateStrings[r.state])
		log.Error("Invalid state to start", "error", err)
		return err
	}
	log.Debug("Registering plugins")
	r.ctx, r.cancel = context.WithCancel(_ctx)
	for _, p := range r.plugins {
		start := time.Now()
		log := log.With("plugin-id", p.ID())
		log.Debug("Registering plugin")
		p.Register(r.registry)
		log.Debug("Done registering plugin", "duration", time.Since(start).String())
	}
	r.state = started
	log.Info("Runtime started", "start-duration", time.Since(start).String())
	return nil
}

func (r *Runtime) Stop() (rerr error) {
	r.mux.Lock()
	start := time.Now()
	log := r.log
	log.Debug("Stopping runtime")
	if r.state != started && r.state != executing {
		err := fmt.Errorf("%w: invalid state for stop operation: %s", ErrInvalidState, stateStrings[r.state])
		r.mux.Unlock()
		log.Error("Invalid state to stop runtime", "error", err)
		return err
	}
	r.state = stopping
	r.mux.Unlock()

	log.Debug("Cancelling runtime context")
	r.cancel()
	log.Debug("Waiting for operations to cease")
	r.wg.Wait()
	log.Debug("Shutting down plugins")
	for _, p := range r.plugins {
		log := log.With("plugin-id", p.ID())
		log.Debug("Stopping plugin")
		if err := p.Stopping(); err != nil {
			log.Error("Error stopping plugin", "error", err)
			if rerr == nil {
				rerr = err
			}
		}
		log.Debug("Plugin stopped")
	}

	r.mux.Lock()
	r.state = done
	r.mux.Unlock()
	log.Info("Runtime stopped", "stop-duration", time.Since(start).String())
	return rerr
}

// beginRun moves the runtime to the executing state, and registers the run so Stop waits for it.
func (r *Runtime) beginRun() error {
	r.mux.Lock()
	defer r.mux.Unlock()
	if r.state != started {
		return fmt.Errorf("%w: invalid state for run operation: %s", ErrInvalidState, stateStrings[r.state])
	}
	r.state = executing
	r.wg.Add(1)
	return nil
}

func (r *Runtime) endRun() {
	r.mux.Lock()
	if r.state == executing {
		r.state = started
	}
	r.mux.Unlock()
	r.wg.Done()
}

// Validate checks that p can be run with the registered plugins, without opening any source or sink.
// Plugins are registered by Start, so Validate should be called after it.
func (r *Runtime) Validate(p Pipeline) error {
	if len(p.Sources) == 0 {
		return ErrNoSources
	}
	if len(p.Sinks) == 0 {
		return ErrNoSinks
	}
	for _, src := range p.Sources {
		if _, err := r.source(src); err != nil {
			return err
		}
	}
	for _, sink := range p.Sinks {
		if _, err := r.sink(sink); err != nil {
			return err
		}
	}
	if _, err := iterator.CompileJoinPatterns(p.JoinPatterns...); err != nil {
		return err
	}
	if _, err := fields.New(r.log, p.Fields); err != nil {
		return err
	}
	return nil
}

func (r *Runtime) source(e Endpoint) (plugin.SourceFunc, error) {
	q, c, err := plugin.ParseClass(e.Class)
	if err != nil {
		return nil, err
	}
	src, _, ok := r.registry.Source(q, c)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, e.Class)
	}
	return src, nil
}

func (r *Runtime) sink(e Endpoint) (plugin.SinkFunc, error) {
	q, c, err := plugin.ParseClass(e.Class)
	if err != nil {
		return nil, err
	}
	sink, _, ok := r.registry.Sink(q, c)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSink, e.Class)
	}
	return sink, nil
}

// Run executes p until all sources are exhausted and every sink has returned, or the runtime is stopped.
// The runtime must have been started, and only one Run may be active at a time.
func (r *Runtime) Run(p Pipeline) (Summary, error) {
	var summary Summary
	if err := r.beginRun(); err != nil {
		r.log.Error("Invalid state to run pipeline", "error", err)
		return summary, err
	}
	defer r.endRun()
	if err := r.Validate(p); err != nil {
		r.log.Error("Invalid pipeline", "error", err)
		return summary, err
	}

	start := time.Now()
	log := r.log.With("tag", p.Tag)
	proc, err := fields.New(r.log, p.Fields)
	if err != nil {
		return summary, err
	}
	starts, err := iterator.CompileJoinPatterns(p.JoinPatterns...)
	if err != nil {
		return summary, err
	}

	sources := make([]iterator.Iterator, 0, len(p.Sources))
	for _, ep := range p.Sources {
		src, _ := r.source(ep)
		log.Debug("Opening source", "class", ep.Class, "args", ep.Args)
		iter, err := src(r.ctx, ep.Args...)
		if err != nil {
			log.Error("Failed to open source", "class", ep.Class, "error", err)
			for _, opened := range sources {
				iterator.Drain(opened)
			}
			return summary, err
		}
		sources = append(sources, iter)
	}

	var (
		count     atomic.Int64
		textBytes atomic.Uint64
		parseKey  = proc.Options().ParseKey
	)
	stream := iterator.Cancellable(r.ctx, iterator.MergeAll(sources...))
	stream = iterator.Joiner(stream, parseKey, starts...)
	stream = iterator.Filter(stream, func(entry entries.LogEntry, _ int, _ error) bool {
		count.Add(1)
		if text, ok := entry.AsString(parseKey); ok {
			textBytes.Add(uint64(len(text)))
		}
		return true
	})
	stream = iterator.Tag(stream, p.Tag)
	stream = iterator.ParseFields(stream, proc)

	branches := fanout(stream, len(p.Sinks))
	var grp errgroup.Group
	for i, ep := range p.Sinks {
		sink, _ := r.sink(ep)
		branch := branches[i]
		if len(p.Sinks) > 1 {
			branch = copyEntries(branch)
		}
		grp.Go(func() error {
			log.Debug("Starting sink", "class", ep.Class, "args", ep.Args)
			if err := sink(r.ctx, branch, ep.Args...); err != nil {
				log.Error("Sink failed", "class", ep.Class, "error", err)
				return fmt.Errorf("sink %s: %w", ep.Class, err)
			}
			log.Debug("Sink complete", "class", ep.Class)
			return nil
		})
	}
	err = grp.Wait()

	summary = Summary{
		Entries:   count.Load(),
		TextBytes: textBytes.Load(),
		Duration:  time.Since(start),
	}
	log.Info("Pipeline complete", "entries", humanize.Comma(summary.Entries), "text", humanize.Bytes(summary.TextBytes), "duration", summary.Duration.String())
	return summary, err
}

func fanout(stream iterator.Iterator, n int) []iterator.Iterator {
	switch n {
	case 1:
		return []iterator.Iterator{stream}
	case 2:
		a, b := iterator.Dupe(stream)
		return []iterator.Iterator{a, b}
	default:
		return iterator.Fanout(stream, n)
	}
}

// copyEntries gives a fanned out branch its own copy of each entry, so sinks can't observe each other's changes.
func copyEntries(iter iterator.Iterator) iterator.Iterator {
	return iterator.Func(func() (entries.LogEntry, int, error) {
		entry, i, err := iter.Next()
		if err != nil {
			return iterator.Err(err)
		}
		cp := make(entries.LogEntry, len(entry))
		for k, v := range entry {
			cp[k] = v
		}
		return cp, i, nil
	})
}
