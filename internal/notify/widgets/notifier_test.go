package widgets

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sub := rdb.Subscribe(context.Background(), DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	n := NewRedisNotifier(rdb, "")
	if err := n.Notify(context.Background(), NewEvent(TypeUpsert, "acme", "d1", "w1")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case msg := <-sub.Channel():
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Type != TypeUpsert || ev.DashboardID != "d1" || ev.ID != "w1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message")
	}
}

func TestPGNotifier(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_notify($1, $2)`)).
		WithArgs(PGChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	n := &PGNotifier{DB: db}
	if err := n.Notify(context.Background(), NewEvent(TypeRemove, "acme", "d1", "w1")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

type failing struct{ calls int }

func (f *failing) Notify(context.Context, Event) error {
	f.calls++
	return errors.New("down")
}

func TestMultiContinuesAfterError(t *testing.T) {
	a, b := &failing{}, &failing{}
	if err := (Multi{a, nil, b}).Notify(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("every notifier must be called: %d %d", a.calls, b.calls)
	}
}
