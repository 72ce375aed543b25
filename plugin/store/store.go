package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	_ "modernc.org/sqlite"
)

var (
	tablePattern = regexp.MustCompile(`^\w+(\.\w+)?$`)
	ErrBadTable  = errors.New("invalid table name")
)

// SqliteStore is a store for log entries using SQLite as a storage engine.
// Each entry is a row, and each field is a nullable text column that's added when it's first seen.
type SqliteStore struct {
	db  *sql.DB
	log hclog.Logger
}

func NewStore(log hclog.Logger, filename string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log = log.Named("sqlite-entry-store").With("db-file", filename)
	return &SqliteStore{
		db:  db,
		log: log,
	}, nil
}

func validateTable(table string) error {
	if !tablePattern.MatchString(table) {
		return fmt.Errorf("%w: %s", ErrBadTable, table)
	}
	return nil
}

// QueryEntries returns an iterator over every row of table, in insertion order.
func (s *SqliteStore) QueryEntries(ctx context.Context, table string) (iterator.Iterator, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(selectAll, table))
	if err != nil {
		s.log.Error("Failed to query table", "table", table, "error", err)
		return nil, err
	}
	return newQueryIterator(s.log.With("table", table), rows)
}

// Sink lands every entry from iter in table, creating the table and any missing columns as needed.
// If an error is encountered, iter is drained and the error is returned.
func (s *SqliteStore) Sink(ctx context.Context, iter iterator.Iterator, table string) error {
	if err := validateTable(table); err != nil {
		iterator.Drain(iter)
		return err
	}
	log := s.log.With("table", table).Named("sink")
	log.Debug("Establishing connection")
	conn, err := s.db.Conn(ctx)
	if err != nil {
		iterator.Drain(iter)
		return err
	}
	defer func() {
		_ = conn.Close()
		log.Debug("DB connection closed")
	}()

	log.Debug("Ensuring the specified table is present")
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(createTable, table)); err != nil {
		iterator.Drain(iter)
		return err
	}
	cols, err := tableColumns(ctx, conn, table)
	if err != nil {
		iterator.Drain(iter)
		return err
	}
	colMap := map[string]bool{}
	for _, c := range cols {
		colMap[c] = true
	}

	var count int
	err = iter.Iterate(func(entry entries.LogEntry, i int) error {
		if ctx.Err() != nil {
			return iterator.ErrAtEnd
		}
		if err := s.insert(ctx, log, conn, table, entry, colMap); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		log.Error("Error sinking to DB, draining iterator", "error", err)
		iterator.Drain(iter)
		return err
	}
	log.Debug("Sink complete", "rows", count)
	return nil
}

func (s *SqliteStore) insert(ctx context.Context, log hclog.Logger, conn *sql.Conn, table string, entry entries.LogEntry, colMap map[string]bool) error {
	fields := make([]string, 0, len(entry))
	for k := range entry {
		if k == idColumn {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)

	if len(fields) == 0 {
		_, err := conn.ExecContext(ctx, fmt.Sprintf(insertEmpty, table))
		return err
	}

	var (
		intoStr strings.Builder
		params  strings.Builder
		args    = make([]any, len(fields))
	)
	for i, f := range fields {
		if !colMap[f] {
			log.Debug("New field discovered, adding to table", "field", f)
			if _, err := conn.ExecContext(ctx, fmt.Sprintf(addColumn, table, quoteIdent(f))); err != nil {
				log.Error("Failed to add field to table", "field", f, "error", err)
				return err
			}
			colMap[f] = true
		}
		if i > 0 {
			intoStr.WriteString(",")
			params.WriteString(",")
		}
		intoStr.WriteString(quoteIdent(f))
		params.WriteString("?")
		if entry[f] == nil {
			continue
		}
		str, _ := entry.AsString(f)
		args[i] = str
	}

	_, err := conn.ExecContext(ctx, fmt.Sprintf(insertRow, table, intoStr.String(), params.String()), args...)
	if err != nil {
		log.Error("Failed to insert into table", "error", err)
	}
	return err
}

func tableColumns(ctx context.Context, conn *sql.Conn, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(selectNone, table))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()
	return rows.Columns()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
