// Package preview executes widget queries for the live preview.
package preview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beexponential/insights/pkg/metrics"
)

// DefaultMaxRows caps a preview result.
const DefaultMaxRows = 500

var (
	// ErrStale is returned to a run superseded by a newer one.
	ErrStale = errors.New("preview superseded by a newer query")
	// ErrClosed is returned after the session was released.
	ErrClosed = errors.New("preview session closed")
	// ErrNotReadOnly is returned for statements other than a single SELECT.
	ErrNotReadOnly = errors.New("only a single SELECT statement can be previewed")
)

// Result is a preview result set.
type Result struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

// Querier runs one read-only query.
type Querier interface {
	Run(ctx context.Context, query string) (Result, error)
}

// Executor runs queries against the reporting database.
type Executor struct {
	DB      *sql.DB
	MaxRows int
	// ReadOnly wraps every query in a read-only transaction.
	ReadOnly bool
}

// CheckReadOnly accepts a single SELECT (or WITH ... SELECT) statement.
func CheckReadOnly(query string) error {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	if q == "" || strings.Contains(q, ";") {
		return ErrNotReadOnly
	}
	head := strings.ToUpper(strings.Fields(q)[0])
	if head != "SELECT" && head != "WITH" {
		return ErrNotReadOnly
	}
	return nil
}

// Run executes query and returns at most MaxRows rows.
func (e *Executor) Run(ctx context.Context, query string) (res Result, err error) {
	if err := CheckReadOnly(query); err != nil {
		return Result{}, err
	}
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.PreviewLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	var rows *sql.Rows
	if e.ReadOnly {
		tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return Result{}, fmt.Errorf("begin preview: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		rows, err = tx.QueryContext(ctx, query)
		if err != nil {
			return Result{}, fmt.Errorf("preview query: %w", err)
		}
	} else {
		rows, err = e.DB.QueryContext(ctx, query)
		if err != nil {
			return Result{}, fmt.Errorf("preview query: %w", err)
		}
	}
	defer rows.Close()
	return scan(rows, e.maxRows())
}

func (e *Executor) maxRows() int {
	if e.MaxRows > 0 {
		return e.MaxRows
	}
	return DefaultMaxRows
}

func scan(rows *sql.Rows, limit int) (Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
