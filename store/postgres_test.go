package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	ps, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	_, _ = ps.pool.Exec(ctx, `DELETE FROM documents`)
	t.Cleanup(ps.Close)
	return ps
}

func TestPostgresStore_ConditionalUpdateAndTransact(t *testing.T) {
	ps := newTestPostgres(t)
	ctx := context.Background()

	if err := ps.Create(ctx, Requests, doc{RequestID: "r1", Status: "open"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := ps.Create(ctx, Requests, doc{RequestID: "r1"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("Create() duplicate error = %v", err)
	}

	var got doc
	err := ps.ConditionalUpdate(ctx, Requests, "r1",
		Patch{AddToSet: map[string][]string{"tags": {"a"}}, Add: map[string]float64{"count": 1}},
		Conditions{Eq("status", "open")}, &got)
	if err != nil {
		t.Fatalf("ConditionalUpdate() error = %v", err)
	}
	if got.Count != 1 || len(got.Tags) != 1 {
		t.Errorf("got %+v", got)
	}

	err = ps.Transact(ctx, []TxOp{
		PutIfAbsent(Responses, map[string]string{"responseId": "r1#u1"}),
		UpdateIf(Requests, "r1", Patch{Set: map[string]interface{}{"status": "active"}}, Conditions{Eq("status", "draft")}),
	})
	var canceled *TxCanceledError
	if !errors.As(err, &canceled) || !canceled.FailedAt(1) {
		t.Fatalf("Transact() error = %v, want failure at 1", err)
	}
	var resp map[string]string
	if err := ps.Get(ctx, Responses, "r1#u1", &resp); !errors.Is(err, ErrNotFound) {
		t.Errorf("response survived rollback: %v", err)
	}
}

func TestPostgresStore_Listen(t *testing.T) {
	ps := newTestPostgres(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = ps.Listen(ctx) }()
	got := make(chan Change, 1)
	unsubscribe := ps.Subscribe(Requests, nil, func(ch Change) { got <- ch })
	defer unsubscribe()

	time.Sleep(200 * time.Millisecond)
	_ = ps.Create(ctx, Requests, doc{RequestID: "r2", Status: "open"})

	select {
	case ch := <-got:
		if ch.ID != "r2" {
			t.Errorf("change id = %s, want r2", ch.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no notification received")
	}
}
