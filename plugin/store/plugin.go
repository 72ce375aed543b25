package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
)

var _ plugin.Plugin = (*sqlitePlugin)(nil)

func Plugin(log hclog.Logger) plugin.Plugin {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &sqlitePlugin{
		log:        log,
		storeCache: map[string]*SqliteStore{},
	}
}

type sqlitePlugin struct {
	log        hclog.Logger
	mux        sync.Mutex
	storeCache map[string]*SqliteStore
}

func (p *sqlitePlugin) ID() string {
	return "sqlite"
}

// Stopping closes every store opened by this plugin.
func (p *sqlitePlugin) Stopping() error {
	p.mux.Lock()
	defer p.mux.Unlock()
	var errs []error
	for file, store := range p.storeCache {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing SQLite store '%s': %w", file, err))
		}
		delete(p.storeCache, file)
	}
	return errors.Join(errs...)
}

func (p *sqlitePlugin) store(file string) (*SqliteStore, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if store, ok := p.storeCache[file]; ok {
		return store, nil
	}
	store, err := NewStore(p.log, file)
	if err != nil {
		return nil, err
	}
	p.storeCache[file] = store
	return store, nil
}

func (p *sqlitePlugin) Register(reg *plugin.Registration) {
	reg.RegisterSource("sqlite", "Table", func(ctx context.Context, args ...string) (iterator.Iterator, error) {
		if err := plugin.RequireArgs(args, 2, "FILE_NAME", "TABLE_NAME"); err != nil {
			return nil, err
		}
		store, err := p.store(args[0])
		if err != nil {
			return nil, err
		}
		return store.QueryEntries(ctx, args[1])
	})
	reg.DocumentSource("sqlite", "Table", `sqlite.Table FILE_NAME TABLE_NAME

This source will query all rows from a table and return each row as a log entry.
It may not return continuously added rows, so it should be used for tables that represent a static snapshot of log entries.`)
	reg.RegisterSink("sqlite", "Table", func(ctx context.Context, src iterator.Iterator, args ...string) error {
		if err := plugin.RequireArgs(args, 2, "FILE_NAME", "TABLE_NAME"); err != nil {
			iterator.Drain(src)
			return err
		}
		store, err := p.store(args[0])
		if err != nil {
			iterator.Drain(src)
			return err
		}
		return store.Sink(ctx, src, args[1])
	})
	reg.DocumentSink("sqlite", "Table", `sqlite.Table FILE_NAME TABLE_NAME

This sink will land all log entries into the SQLite database table specified. The TABLE_NAME argument may be prefixed with a schema name like "my_schema.my_table".
If the table does not exist, then it will be created with an integer primary key column called evt_id. Table columns will be created as needed, one for each log entry field.
Field values are stored as text, with nested mappings stored as JSON.
This means that the table may trend toward being sparsely populated if the input entries are largely heterogeneous.`)
}
