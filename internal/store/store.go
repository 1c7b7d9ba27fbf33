// Package store is the Postgres persistence layer. Every schema-registered
// table shares one generic implementation: the schema's declared fields are
// the column whitelist for selection, search, sort, and mutation, so no SQL
// is ever assembled from caller-provided identifiers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/throwingafit/storefront/internal/schema"
	"github.com/throwingafit/storefront/internal/table"
)

var (
	// ErrUnknownTable is returned for table names with no registered schema.
	ErrUnknownTable = errors.New("unknown table")

	// ErrNotFound is returned when a row id does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store executes schema-driven queries against a pgx pool. It implements
// table.Source.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New wraps a connection pool.
func New(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, log: log}
}

// Pool exposes the underlying pool for health checks.
func (st *Store) Pool() *pgxpool.Pool {
	return st.pool
}

func schemaFor(tableName string) (*schema.FormSchema, error) {
	s, ok := schema.Get(tableName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}
	return s, nil
}

// List returns one page of rows for the query, plus the total matching row
// count. A zero Limit returns the full result set.
func (st *Store) List(ctx context.Context, q table.Query) (table.Page, error) {
	s, err := schemaFor(q.Table)
	if err != nil {
		return table.Page{}, err
	}

	selectSQL, countSQL, args := listQuery(s, q)

	countArgs := args
	if q.Limit > 0 {
		countArgs = args[:len(args)-2]
	}
	var total int
	if err := st.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return table.Page{}, fmt.Errorf("count %s rows: %w", q.Table, err)
	}

	rows, err := st.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return table.Page{}, fmt.Errorf("query %s rows: %w", q.Table, err)
	}
	defer rows.Close()

	names := s.FieldNames()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return table.Page{}, fmt.Errorf("read %s row: %w", q.Table, err)
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return table.Page{}, fmt.Errorf("iterate %s rows: %w", q.Table, err)
	}

	hasMore := false
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		hasMore = page*q.Limit < total
	}

	return table.Page{Rows: out, Total: total, HasMore: hasMore}, nil
}

// Create inserts a new row with a generated uuid id and both timestamps
// set, returning the stored row.
func (st *Store) Create(ctx context.Context, tableName string, record map[string]any) (map[string]any, error) {
	s, err := schemaFor(tableName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	full := make(map[string]any, len(record)+3)
	for k, v := range record {
		full[k] = v
	}
	if _, ok := s.Properties["id"]; ok {
		full["id"] = uuid.NewString()
	}
	if _, ok := s.Properties["created_at"]; ok {
		full["created_at"] = now
	}
	if _, ok := s.Properties["updated_at"]; ok {
		full["updated_at"] = now
	}

	sql, args := insertQuery(s, full)
	return st.queryOne(ctx, s, sql, args)
}

// Update modifies an existing row and bumps updated_at, returning the
// stored row. A missing id yields ErrNotFound.
func (st *Store) Update(ctx context.Context, tableName, id string, record map[string]any) (map[string]any, error) {
	s, err := schemaFor(tableName)
	if err != nil {
		return nil, err
	}

	full := make(map[string]any, len(record)+1)
	for k, v := range record {
		full[k] = v
	}
	if _, ok := s.Properties["updated_at"]; ok {
		full["updated_at"] = time.Now().UTC()
	}
	if len(full) == 0 {
		return nil, fmt.Errorf("update %s: empty payload", tableName)
	}

	sql, args := updateQuery(s, id, full)
	row, err := st.queryOne(ctx, s, sql, args)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Delete removes a row by id. A missing id yields ErrNotFound.
func (st *Store) Delete(ctx context.Context, tableName, id string) error {
	s, err := schemaFor(tableName)
	if err != nil {
		return err
	}

	tag, err := st.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quoteIdentifier(s.Name), quoteIdentifier("id")),
		id,
	)
	if err != nil {
		return fmt.Errorf("delete %s row: %w", tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s row %s: %w", tableName, id, ErrNotFound)
	}
	return nil
}

// Stream sends every matching row to the callback one at a time, in sorted
// order, without accumulating the result set. Used for CSV export.
func (st *Store) Stream(ctx context.Context, q table.Query, fn func(row map[string]any) error) error {
	s, err := schemaFor(q.Table)
	if err != nil {
		return err
	}

	q.Limit = 0
	selectSQL, _, args := listQuery(s, q)

	rows, err := st.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return fmt.Errorf("query %s rows: %w", q.Table, err)
	}
	defer rows.Close()

	names := s.FieldNames()
	for rows.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("read %s row: %w", q.Table, err)
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			row[name] = values[i]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// queryOne runs a statement expected to return exactly one row shaped by
// the schema's declared columns.
func (st *Store) queryOne(ctx context.Context, s *schema.FormSchema, sql string, args []any) (map[string]any, error) {
	rows, err := st.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s statement: %w", s.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%s statement: %w", s.Name, err)
		}
		return nil, ErrNotFound
	}
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("read %s row: %w", s.Name, err)
	}

	names := s.FieldNames()
	row := make(map[string]any, len(names))
	for i, name := range names {
		row[name] = values[i]
	}
	return row, nil
}
