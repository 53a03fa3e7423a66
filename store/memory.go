package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MemoryStore keeps every collection in process. It backs tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string]Item
	feed   *Broker
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]Item),
		feed:   NewBroker(),
	}
}

func (m *MemoryStore) table(c Collection) map[string]Item {
	t, ok := m.tables[c.Table]
	if !ok {
		t = make(map[string]Item)
		m.tables[c.Table] = t
	}
	return t
}

// Get loads one document
func (m *MemoryStore) Get(ctx context.Context, c Collection, id string, out interface{}) error {
	m.mu.Lock()
	item, ok := m.table(c)[id]
	item = copyItem(item)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return attributevalue.UnmarshalMap(item, out)
}

// Create inserts doc when its key is free
func (m *MemoryStore) Create(ctx context.Context, c Collection, doc interface{}) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	id, err := keyOf(c, item)
	if err != nil {
		return err
	}

	m.mu.Lock()
	t := m.table(c)
	if _, exists := t[id]; exists {
		m.mu.Unlock()
		return ErrAlreadyExists
	}
	stampVersion(item)
	t[id] = item
	m.feed.Publish(Change{Collection: c, ID: id, Kind: ChangeCreated, Item: copyItem(item)})
	m.mu.Unlock()
	return nil
}

// ConditionalUpdate patches a document when every expectation holds
func (m *MemoryStore) ConditionalUpdate(ctx context.Context, c Collection, id string, patch Patch, expect Conditions, out interface{}) error {
	m.mu.Lock()
	updated, err := m.updateLocked(c, id, patch, expect)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if out != nil {
		return attributevalue.UnmarshalMap(updated, out)
	}
	return nil
}

func (m *MemoryStore) updateLocked(c Collection, id string, patch Patch, expect Conditions) (Item, error) {
	t := m.table(c)
	current, exists := t[id]
	if !exists {
		return nil, ErrNotFound
	}
	ok, err := evaluate(current, expect)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConditionFailed
	}
	updated, err := applyPatch(current, versioned(patch))
	if err != nil {
		return nil, err
	}
	t[id] = updated
	m.feed.Publish(Change{Collection: c, ID: id, Kind: ChangeUpdated, Item: copyItem(updated)})
	return updated, nil
}

// AtomicIncrement adds delta to a numeric field
func (m *MemoryStore) AtomicIncrement(ctx context.Context, c Collection, id, field string, delta float64) (float64, error) {
	m.mu.Lock()
	updated, err := m.updateLocked(c, id, Patch{Add: map[string]float64{field: delta}}, nil)
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	n := updated[field].(*types.AttributeValueMemberN)
	return strconv.ParseFloat(n.Value, 64)
}

// Delete removes a document when every expectation holds
func (m *MemoryStore) Delete(ctx context.Context, c Collection, id string, expect Conditions) error {
	m.mu.Lock()
	t := m.table(c)
	current, exists := t[id]
	if !exists {
		m.mu.Unlock()
		return ErrNotFound
	}
	ok, err := evaluate(current, expect)
	if err != nil || !ok {
		m.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrConditionFailed
	}
	delete(t, id)
	m.feed.Publish(Change{Collection: c, ID: id, Kind: ChangeDeleted, Item: current})
	m.mu.Unlock()
	return nil
}

// Query returns every document of c matching filter, ordered by key
func (m *MemoryStore) Query(ctx context.Context, c Collection, filter Conditions, out interface{}) error {
	m.mu.Lock()
	t := m.table(c)
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var items []Item
	for _, id := range ids {
		ok, err := evaluate(t[id], filter)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		if ok {
			items = append(items, copyItem(t[id]))
		}
	}
	m.mu.Unlock()

	if items == nil {
		items = []Item{}
	}
	return attributevalue.UnmarshalListOfMaps(items, out)
}

// Transact checks every guard first and only then applies all operations
func (m *MemoryStore) Transact(ctx context.Context, ops []TxOp) error {
	m.mu.Lock()

	staged := make([]Item, len(ops))
	failed := make([]bool, len(ops))
	anyFailed := false
	for i, op := range ops {
		item, err := m.stage(op)
		if err == ErrConditionFailed || err == ErrNotFound {
			failed[i] = true
			anyFailed = true
			continue
		}
		if err != nil {
			m.mu.Unlock()
			return err
		}
		staged[i] = item
	}
	if anyFailed {
		m.mu.Unlock()
		return &TxCanceledError{Failed: failed}
	}

	changes := make([]Change, 0, len(ops))
	for i, op := range ops {
		t := m.table(op.Collection)
		id := op.ID
		if op.Kind == TxPut {
			id, _ = keyOf(op.Collection, staged[i])
		}
		switch op.Kind {
		case TxDelete:
			changes = append(changes, Change{Collection: op.Collection, ID: id, Kind: ChangeDeleted, Item: t[id]})
			delete(t, id)
		case TxPut:
			t[id] = staged[i]
			changes = append(changes, Change{Collection: op.Collection, ID: id, Kind: ChangeCreated, Item: copyItem(staged[i])})
		default:
			t[id] = staged[i]
			changes = append(changes, Change{Collection: op.Collection, ID: id, Kind: ChangeUpdated, Item: copyItem(staged[i])})
		}
	}
	for _, ch := range changes {
		m.feed.Publish(ch)
	}
	m.mu.Unlock()
	return nil
}

// stage computes the post-operation item without writing it
func (m *MemoryStore) stage(op TxOp) (Item, error) {
	t := m.table(op.Collection)
	switch op.Kind {
	case TxPut:
		item, err := attributevalue.MarshalMap(op.Doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item: %w", err)
		}
		id, err := keyOf(op.Collection, item)
		if err != nil {
			return nil, err
		}
		if _, exists := t[id]; exists {
			return nil, ErrConditionFailed
		}
		stampVersion(item)
		return item, nil
	case TxUpdate, TxDelete:
		current, exists := t[op.ID]
		if !exists {
			return nil, ErrNotFound
		}
		ok, err := evaluate(current, op.Expect)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrConditionFailed
		}
		if op.Kind == TxDelete {
			return nil, nil
		}
		return applyPatch(current, versioned(op.Patch))
	}
	return nil, fmt.Errorf("unknown transaction operation %d", op.Kind)
}

// Subscribe registers a change listener
func (m *MemoryStore) Subscribe(c Collection, filter Conditions, onChange func(Change)) func() {
	return m.feed.Subscribe(c, filter, onChange)
}
