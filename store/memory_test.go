package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type doc struct {
	RequestID string   `dynamodbav:"requestId"`
	Status    string   `dynamodbav:"status"`
	Count     int      `dynamodbav:"count"`
	Tags      []string `dynamodbav:"tags,stringset,omitempty"`
	Log       []string `dynamodbav:"log,omitempty"`
	Owner     string   `dynamodbav:"owner,omitempty"`
	Deadline  int64    `dynamodbav:"deadline,omitempty"`
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Create(ctx, Requests, doc{RequestID: "r1", Status: "open"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, Requests, doc{RequestID: "r1", Status: "draft"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("second Create() error = %v, want ErrAlreadyExists", err)
	}

	var got doc
	if err := s.Get(ctx, Requests, "r1", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != "open" {
		t.Errorf("Status = %q, want open", got.Status)
	}
	if err := s.Get(ctx, Requests, "missing", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, Requests, doc{RequestID: "r1", Status: "open", Tags: []string{"a"}})

	tests := []struct {
		name    string
		patch   Patch
		expect  Conditions
		wantErr error
		check   func(t *testing.T, d doc)
	}{
		{
			name:    "status mismatch",
			patch:   Patch{Set: map[string]interface{}{"status": "active"}},
			expect:  Conditions{Eq("status", "draft")},
			wantErr: ErrConditionFailed,
		},
		{
			name:   "add to set",
			patch:  Patch{AddToSet: map[string][]string{"tags": {"b", "a"}}},
			expect: Conditions{Eq("status", "open"), NotContains("tags", "b")},
			check: func(t *testing.T, d doc) {
				if len(d.Tags) != 2 {
					t.Errorf("Tags = %v, want 2 members", d.Tags)
				}
			},
		},
		{
			name:    "contains guard blocks duplicate",
			patch:   Patch{AddToSet: map[string][]string{"tags": {"b"}}},
			expect:  Conditions{NotContains("tags", "b")},
			wantErr: ErrConditionFailed,
		},
		{
			name:   "append and count",
			patch:  Patch{Append: map[string][]string{"log": {"x"}}, Add: map[string]float64{"count": 2}},
			expect: Conditions{NotExists("owner")},
			check: func(t *testing.T, d doc) {
				if len(d.Log) != 1 || d.Count != 2 {
					t.Errorf("Log = %v Count = %d, want [x] 2", d.Log, d.Count)
				}
			},
		},
		{
			name:  "delete last set members removes attribute",
			patch: Patch{DeleteFromSet: map[string][]string{"tags": {"a", "b"}}},
			check: func(t *testing.T, d doc) {
				if len(d.Tags) != 0 {
					t.Errorf("Tags = %v, want empty", d.Tags)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got doc
			err := s.ConditionalUpdate(ctx, Requests, "r1", tt.patch, tt.expect, &got)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ConditionalUpdate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}

	if err := s.ConditionalUpdate(ctx, Requests, "nope", Patch{Set: map[string]interface{}{"status": "x"}}, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing doc error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_QueryLte(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, GroupRequests, map[string]interface{}{"groupRequestId": "g1", "status": "funding", "deadline": 100})
	_ = s.Create(ctx, GroupRequests, map[string]interface{}{"groupRequestId": "g2", "status": "funding", "deadline": 300})
	_ = s.Create(ctx, GroupRequests, map[string]interface{}{"groupRequestId": "g3", "status": "paid", "deadline": 50})

	var got []map[string]interface{}
	err := s.Query(ctx, GroupRequests, Conditions{Eq("status", "funding"), Exists("deadline"), Lte("deadline", int64(200))}, &got)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0]["groupRequestId"] != "g1" {
		t.Errorf("Query() = %v, want only g1", got)
	}
}

func TestMemoryStore_TransactAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, Requests, doc{RequestID: "r1", Status: "open"})

	ops := []TxOp{
		PutIfAbsent(Responses, map[string]string{"responseId": "r1#u1"}),
		UpdateIf(Requests, "r1", Patch{Set: map[string]interface{}{"status": "active"}}, Conditions{Eq("status", "closed")}),
	}
	err := s.Transact(ctx, ops)
	var canceled *TxCanceledError
	if !errors.As(err, &canceled) {
		t.Fatalf("Transact() error = %v, want TxCanceledError", err)
	}
	if canceled.FailedAt(0) || !canceled.FailedAt(1) {
		t.Errorf("Failed = %v, want only operation 1", canceled.Failed)
	}
	if !errors.Is(err, ErrConditionFailed) {
		t.Error("TxCanceledError should match ErrConditionFailed")
	}

	var resp map[string]string
	if err := s.Get(ctx, Responses, "r1#u1", &resp); !errors.Is(err, ErrNotFound) {
		t.Errorf("response written despite canceled transaction: %v", err)
	}

	ops[1] = UpdateIf(Requests, "r1", Patch{Set: map[string]interface{}{"status": "active"}}, Conditions{Eq("status", "open")})
	if err := s.Transact(ctx, ops); err != nil {
		t.Fatalf("Transact() error = %v", err)
	}
	var got doc
	_ = s.Get(ctx, Requests, "r1", &got)
	if got.Status != "active" {
		t.Errorf("Status = %q, want active", got.Status)
	}
}

func TestMemoryStore_ConcurrentConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, Requests, doc{RequestID: "r1", Status: "open"})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ConditionalUpdate(ctx, Requests, "r1",
				Patch{Set: map[string]interface{}{"status": "active"}}, Conditions{Eq("status", "open")}, nil)
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("winners = %d, want 1", wins.Load())
	}
}

func TestMemoryStore_AtomicIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, Requests, doc{RequestID: "r1"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AtomicIncrement(ctx, Requests, "r1", "count", 1)
		}()
	}
	wg.Wait()

	n, err := s.AtomicIncrement(ctx, Requests, "r1", "count", 0)
	if err != nil {
		t.Fatalf("AtomicIncrement() error = %v", err)
	}
	if n != 10 {
		t.Errorf("count = %v, want 10", n)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got := make(chan Change, 4)
	cancel := s.Subscribe(Requests, Conditions{Eq("status", "open")}, func(ch Change) { got <- ch })
	defer cancel()

	_ = s.Create(ctx, Requests, doc{RequestID: "r1", Status: "draft"})
	_ = s.Create(ctx, Requests, doc{RequestID: "r2", Status: "open"})

	select {
	case ch := <-got:
		if ch.ID != "r2" || ch.Kind != ChangeCreated {
			t.Errorf("change = %s %s, want r2 created", ch.ID, ch.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	cancel()
}

func TestMemoryStore_ChangesArriveInCommitOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got := make(chan Change, 64)
	cancel := s.Subscribe(Requests, nil, func(ch Change) { got <- ch })
	defer cancel()

	_ = s.Create(ctx, Requests, doc{RequestID: "r1"})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.ConditionalUpdate(ctx, Requests, "r1", Patch{Add: map[string]float64{"count": 1}}, nil, nil)
		}()
	}
	wg.Wait()

	var prev int64
	var last Change
	for i := 0; i < 21; i++ {
		select {
		case ch := <-got:
			if ch.Version() <= prev {
				t.Fatalf("change %d has version %d after %d", i, ch.Version(), prev)
			}
			prev, last = ch.Version(), ch
		case <-time.After(time.Second):
			t.Fatalf("only %d of 21 changes delivered", i)
		}
	}

	var final, seen doc
	_ = s.Get(ctx, Requests, "r1", &final)
	if err := last.Decode(&seen); err != nil {
		t.Fatal(err)
	}
	if prev != 21 || seen.Count != final.Count || final.Count != 20 {
		t.Errorf("last change = version %d count %d, store count %d", prev, seen.Count, final.Count)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Create(ctx, Requests, doc{RequestID: "r1", Status: "open", Owner: "u1"})

	if err := s.Delete(ctx, Requests, "r1", Conditions{Eq("owner", "u2")}); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("Delete() error = %v, want ErrConditionFailed", err)
	}
	if err := s.Delete(ctx, Requests, "r1", Conditions{Eq("owner", "u1")}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, Requests, "r1", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
