package preview

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	stmts := []string{
		`CREATE TABLE sales (region TEXT, amount INTEGER)`,
		`INSERT INTO sales VALUES ('north', 10), ('north', 5), ('south', 7)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return db
}

func TestExecutorRun(t *testing.T) {
	e := &Executor{DB: openDB(t)}
	res, err := e.Run(context.Background(), `SELECT "region" AS "Eje X", SUM("amount") AS "Eje Y" FROM sales GROUP BY "region" ORDER BY "region"`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "Eje X" {
		t.Fatalf("columns: %v", res.Columns)
	}
	if len(res.Rows) != 2 || res.Rows[0]["Eje X"] != "north" || res.Rows[0]["Eje Y"] != int64(15) {
		t.Fatalf("rows: %v", res.Rows)
	}
}

func TestExecutorMaxRows(t *testing.T) {
	e := &Executor{DB: openDB(t), MaxRows: 2}
	res, err := e.Run(context.Background(), `SELECT * FROM sales`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 2 || !res.Truncated {
		t.Fatalf("expected 2 truncated rows, got %d truncated=%v", len(res.Rows), res.Truncated)
	}
}

func TestCheckReadOnly(t *testing.T) {
	ok := []string{"SELECT 1", "  select 1;", "WITH x AS (SELECT 1) SELECT * FROM x"}
	for _, q := range ok {
		if err := CheckReadOnly(q); err != nil {
			t.Fatalf("%q rejected: %v", q, err)
		}
	}
	bad := []string{"", "DELETE FROM sales", "SELECT 1; DROP TABLE sales", "UPDATE sales SET amount = 0"}
	for _, q := range bad {
		if err := CheckReadOnly(q); !errors.Is(err, ErrNotReadOnly) {
			t.Fatalf("%q accepted", q)
		}
	}
}

type blockingQuerier struct {
	started chan struct{}
}

func (b *blockingQuerier) Run(ctx context.Context, q string) (Result, error) {
	if q == "slow" {
		close(b.started)
		<-ctx.Done()
		return Result{}, ctx.Err()
	}
	return Result{Columns: []string{q}}, nil
}

func TestSessionLastRunWins(t *testing.T) {
	q := &blockingQuerier{started: make(chan struct{})}
	s := NewSession(q)
	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = s.Run(context.Background(), "slow")
	}()
	<-q.started
	res, err := s.Run(context.Background(), "fast")
	if err != nil || res.Columns[0] != "fast" {
		t.Fatalf("fast run: %v %v", res, err)
	}
	wg.Wait()
	if !errors.Is(slowErr, ErrStale) {
		t.Fatalf("expected ErrStale for superseded run, got %v", slowErr)
	}
}

func TestSessionClose(t *testing.T) {
	q := &blockingQuerier{started: make(chan struct{})}
	s := NewSession(q)
	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "slow")
		done <- err
	}()
	<-q.started
	_ = s.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close did not cancel the run")
	}
	if _, err := s.Run(context.Background(), "fast"); !errors.Is(err, ErrClosed) {
		t.Fatalf("run after close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
