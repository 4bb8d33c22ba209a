package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	ormdriver "github.com/faciam-dev/goquent/orm/driver"
	"github.com/redis/go-redis/v9"
)

type flakySink struct {
	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakySink) Emit(context.Context, Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return errors.New("unavailable")
	}
	return nil
}

type memDLQ struct {
	events []Event
	last   string
}

func (m *memDLQ) Store(_ context.Context, e Event, _ int, lastErr string) error {
	m.events = append(m.events, e)
	m.last = lastErr
	return nil
}

func TestDispatcherRetries(t *testing.T) {
	var cfg Config
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.InitialDelay = time.Millisecond
	sink := &flakySink{fails: 2}
	dlq := &memDLQ{}
	d := NewDispatcher(cfg, dlq, sink)
	d.DispatchSync(context.Background(), New(SyncRunRequested, "acme", map[string]string{"id": "s1"}))
	if sink.calls != 3 || len(dlq.events) != 0 {
		t.Fatalf("calls=%d dlq=%d", sink.calls, len(dlq.events))
	}

	sink = &flakySink{fails: 10}
	d = NewDispatcher(cfg, dlq, sink)
	d.DispatchSync(context.Background(), New(SyncRunRequested, "acme", nil))
	if sink.calls != 3 || len(dlq.events) != 1 || dlq.last != "unavailable" {
		t.Fatalf("calls=%d dlq=%+v", sink.calls, dlq)
	}
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sub := cli.Subscribe(context.Background(), DefaultChannel+"."+WidgetCreated)
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	s, err := NewRedisSink(RedisConfig{Enabled: true, DSN: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := s.Emit(context.Background(), New(WidgetCreated, "acme", "w1")); err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case msg := <-sub.Channel():
		var e Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if e.Name != WidgetCreated || e.Tenant != "acme" {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message")
	}
}

func TestWebhookSinkSigns(t *testing.T) {
	var gotSig, gotName, gotDelivery string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Insights-Signature")
		gotName = r.Header.Get("X-Insights-Event")
		gotDelivery = r.Header.Get("X-Insights-Delivery")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	s := NewWebhookSink(WebhookConfig{Enabled: true, Endpoint: srv.URL, Secret: "k"})
	e := New(SyncSaved, "acme", nil)
	if err := s.Emit(context.Background(), e); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if want := Sign("k", body); gotSig != want {
		t.Fatalf("signature %q want %q", gotSig, want)
	}
	if gotName != SyncSaved || gotDelivery != e.ID {
		t.Fatalf("headers event=%q delivery=%q", gotName, gotDelivery)
	}
}

func TestWebhookSinkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	s := NewWebhookSink(WebhookConfig{Enabled: true, Endpoint: srv.URL})
	if err := s.Emit(context.Background(), New(SyncRunRequested, "acme", nil)); err == nil {
		t.Fatalf("expected error on 502")
	}
	if NewWebhookSink(WebhookConfig{Endpoint: srv.URL}) != nil {
		t.Fatalf("disabled sink must be nil")
	}
}

func TestRedisSinkStream(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisSink(RedisConfig{Enabled: true, DSN: "redis://" + mr.Addr(), Stream: "insights:syncs"})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	ctx := context.Background()
	e := New(SyncRunRequested, "acme", map[string]string{"id": "s1"})
	if err := s.Emit(ctx, e); err != nil {
		t.Fatalf("emit: %v", err)
	}
	msgs, err := s.Client.XRange(ctx, "insights:syncs", "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("xrange: %v %v", msgs, err)
	}
	if msgs[0].Values["name"] != SyncRunRequested || msgs[0].Values["tenant"] != "acme" || msgs[0].Values["id"] != e.ID {
		t.Fatalf("unexpected entry %v", msgs[0].Values)
	}
}

func TestKafkaSinkHeaders(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		key, _ := m.Key.Encode()
		if m.Topic != DefaultTopic || string(key) != "acme" {
			return errors.New("unexpected topic or key")
		}
		if len(m.Headers) != 2 || string(m.Headers[0].Value) != SyncRunRequested {
			return errors.New("missing event header")
		}
		return nil
	})
	s := &KafkaSink{Producer: prod}
	if err := s.Emit(context.Background(), New(SyncRunRequested, "acme", nil)); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

type recordSink struct{ names []string }

func (r *recordSink) Emit(_ context.Context, e Event) error {
	r.names = append(r.names, e.Name)
	return nil
}

func TestOnlyFilters(t *testing.T) {
	rec := &recordSink{}
	s := Only(rec, "sync.*")
	for _, n := range []string{SyncRunRequested, WidgetCreated, SyncSaved} {
		_ = s.Emit(context.Background(), New(n, "acme", nil))
	}
	if len(rec.names) != 2 || rec.names[0] != SyncRunRequested || rec.names[1] != SyncSaved {
		t.Fatalf("unexpected deliveries %v", rec.names)
	}
	if Only(rec) != Sink(rec) {
		t.Fatalf("no patterns must return the sink itself")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("INSIGHTS_TEST_HOOK", "http://worker:8080/hooks")
	p := filepath.Join(t.TempDir(), "events.yaml")
	doc := "sinks:\n  webhook:\n    enabled: true\n    endpoint: ${INSIGHTS_TEST_HOOK}\n    events: [\"sync.*\"]\nretry:\n  max_attempts: 5\n"
	if err := os.WriteFile(p, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Sinks.Webhook.Endpoint != "http://worker:8080/hooks" || c.Retry.MaxAttempts != 5 {
		t.Fatalf("unexpected config %+v", c)
	}
	sinks, err := c.BuildSinks()
	if err != nil || len(sinks) != 1 {
		t.Fatalf("sinks %v err %v", sinks, err)
	}
	if _, ok := sinks[0].(*filtered); !ok {
		t.Fatalf("webhook sink must be filtered, got %T", sinks[0])
	}
}

func TestSQLDLQ(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec(`INSERT INTO bi_events_failed\(name, payload, attempts, last_error\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(SyncRunRequested, sqlmock.AnyArg(), 3, "boom").
		WillReturnResult(sqlmock.NewResult(1, 1))
	q := &SQLDLQ{DB: db, Dialect: ormdriver.PostgresDialect{}, TablePrefix: "bi_"}
	if err := q.Store(context.Background(), New(SyncRunRequested, "", nil), 3, "boom"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
