package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/entries"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
)

const (
	idColumn    = "evt_id"
	createTable = `
create table if not exists %s (
	evt_id integer primary key
)`
	addColumn   = `alter table %s add column %s text null`
	insertRow   = `insert into %s (%s) values (%s)`
	insertEmpty = `insert into %s default values`
	selectAll   = `select * from %s order by evt_id`
	selectNone  = `select * from %s where 0`
)

var (
	ErrUnexpectedColumnType = errors.New("unexpected column type")
)

// newQueryIterator reads rows as entries, leaving out the row ID and any null columns.
// rows is closed once it's exhausted or fails.
func newQueryIterator(log hclog.Logger, rows *sql.Rows) (iterator.Iterator, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		log.Error("Failed to read query columns", "error", err)
		return nil, err
	}
	if len(cols) == 0 {
		_ = rows.Close()
		return iterator.Empty(), nil
	}

	var rowNum int
	return iterator.Func(func() (entries.LogEntry, int, error) {
		if !rows.Next() {
			err := rows.Err()
			_ = rows.Close()
			if err != nil {
				return iterator.Err(err)
			}
			return iterator.End()
		}
		var rowID sql.NullInt64
		vals := make([]any, len(cols))
		for i, c := range cols {
			if c == idColumn {
				vals[i] = &rowID
				continue
			}
			vals[i] = &sql.NullString{}
		}
		if err := rows.Scan(vals...); err != nil {
			_ = rows.Close()
			return iterator.Err(err)
		}

		entry := entries.LogEntry{}
		for i, v := range vals {
			switch s := v.(type) {
			case *sql.NullString:
				if s.Valid {
					entry[cols[i]] = s.String
				}
			case *sql.NullInt64:
			default:
				_ = rows.Close()
				return iterator.Err(fmt.Errorf("%w: %T", ErrUnexpectedColumnType, v))
			}
		}
		cur := rowNum
		rowNum++
		return entry, cur, nil
	}), nil
}
