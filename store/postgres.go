package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`
	changeChannel = "record_changes"
)

// PostgresStore keeps documents as JSONB rows; conditions are checked under a row lock
type PostgresStore struct {
	pool *pgxpool.Pool
	feed *Broker
}

type changeNotice struct {
	Table string     `json:"table"`
	ID    string     `json:"id"`
	Kind  ChangeKind `json:"kind"`
}

// NewPostgresStore connects to databaseURL and creates the documents table
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	log.Println("✅ Connected to Postgres")
	return &PostgresStore{pool: pool, feed: NewBroker()}, nil
}

// Close releases the pool
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

func itemToJSON(item Item) ([]byte, error) {
	var doc map[string]interface{}
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func jsonToItem(raw []byte) (Item, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return attributevalue.MarshalMap(doc)
}

func (ps *PostgresStore) lockRow(ctx context.Context, tx pgx.Tx, c Collection, id string) (Item, error) {
	var raw []byte
	err := tx.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, c.Table, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jsonToItem(raw)
}

func notify(ctx context.Context, tx pgx.Tx, c Collection, id string, kind ChangeKind) error {
	payload, err := json.Marshal(changeNotice{Table: c.Table, ID: id, Kind: kind})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, string(payload))
	return err
}

// Get loads one document
func (ps *PostgresStore) Get(ctx context.Context, c Collection, id string, out interface{}) error {
	var raw []byte
	err := ps.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`, c.Table, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get item from '%s': %w", c.Table, err)
	}
	item, err := jsonToItem(raw)
	if err != nil {
		return err
	}
	return attributevalue.UnmarshalMap(item, out)
}

// Create inserts doc, ErrAlreadyExists when the key is taken
func (ps *PostgresStore) Create(ctx context.Context, c Collection, doc interface{}) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	id, err := keyOf(c, item)
	if err != nil {
		return err
	}
	stampVersion(item)

	return pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		inserted, err := insertDoc(ctx, tx, c, id, item)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrAlreadyExists
		}
		return notify(ctx, tx, c, id, ChangeCreated)
	})
}

func insertDoc(ctx context.Context, tx pgx.Tx, c Collection, id string, item Item) (bool, error) {
	raw, err := itemToJSON(item)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		c.Table, id, raw)
	if err != nil {
		return false, fmt.Errorf("failed to insert into '%s': %w", c.Table, err)
	}
	return tag.RowsAffected() == 1, nil
}

func writeDoc(ctx context.Context, tx pgx.Tx, c Collection, id string, item Item) error {
	raw, err := itemToJSON(item)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE documents SET doc = $3, updated_at = now() WHERE collection = $1 AND id = $2`,
		c.Table, id, raw)
	if err != nil {
		return fmt.Errorf("failed to update '%s': %w", c.Table, err)
	}
	return nil
}

// ConditionalUpdate locks the row, checks expect and writes the patched document
func (ps *PostgresStore) ConditionalUpdate(ctx context.Context, c Collection, id string, patch Patch, expect Conditions, out interface{}) error {
	updated, err := ps.update(ctx, c, id, patch, expect)
	if err != nil {
		return err
	}
	if out != nil {
		return attributevalue.UnmarshalMap(updated, out)
	}
	return nil
}

func (ps *PostgresStore) update(ctx context.Context, c Collection, id string, patch Patch, expect Conditions) (Item, error) {
	var updated Item
	err := pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		current, err := ps.lockRow(ctx, tx, c, id)
		if err != nil {
			return err
		}
		ok, err := evaluate(current, expect)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConditionFailed
		}
		if updated, err = applyPatch(current, versioned(patch)); err != nil {
			return err
		}
		if err := writeDoc(ctx, tx, c, id, updated); err != nil {
			return err
		}
		return notify(ctx, tx, c, id, ChangeUpdated)
	})
	return updated, err
}

// AtomicIncrement adds delta to a numeric field under a row lock
func (ps *PostgresStore) AtomicIncrement(ctx context.Context, c Collection, id, field string, delta float64) (float64, error) {
	updated, err := ps.update(ctx, c, id, Patch{Add: map[string]float64{field: delta}}, nil)
	if err != nil {
		return 0, err
	}
	n, ok := updated[field].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("field '%s' is not numeric", field)
	}
	return strconv.ParseFloat(n.Value, 64)
}

// Delete removes a document when every expectation holds
func (ps *PostgresStore) Delete(ctx context.Context, c Collection, id string, expect Conditions) error {
	return pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		current, err := ps.lockRow(ctx, tx, c, id)
		if err != nil {
			return err
		}
		ok, err := evaluate(current, expect)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConditionFailed
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, c.Table, id); err != nil {
			return fmt.Errorf("failed to delete from '%s': %w", c.Table, err)
		}
		return notify(ctx, tx, c, id, ChangeDeleted)
	})
}

// Query loads the collection and applies filter in process
func (ps *PostgresStore) Query(ctx context.Context, c Collection, filter Conditions, out interface{}) error {
	rows, err := ps.pool.Query(ctx, `SELECT doc FROM documents WHERE collection = $1 ORDER BY id`, c.Table)
	if err != nil {
		return fmt.Errorf("failed to query '%s': %w", c.Table, err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", c.Table, err)
	}

	items := []Item{}
	for _, raw := range raws {
		item, err := jsonToItem(raw)
		if err != nil {
			return err
		}
		ok, err := evaluate(item, filter)
		if err != nil {
			return err
		}
		if ok {
			items = append(items, item)
		}
	}
	return attributevalue.UnmarshalListOfMaps(items, out)
}

// Transact runs every operation in one database transaction
func (ps *PostgresStore) Transact(ctx context.Context, ops []TxOp) error {
	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	failed := make([]bool, len(ops))
	anyFailed := false
	for i, op := range ops {
		err := ps.applyTxOp(ctx, tx, op)
		if errors.Is(err, ErrConditionFailed) || errors.Is(err, ErrNotFound) {
			failed[i] = true
			anyFailed = true
			continue
		}
		if err != nil {
			return err
		}
	}
	if anyFailed {
		return &TxCanceledError{Failed: failed}
	}
	return tx.Commit(ctx)
}

func (ps *PostgresStore) applyTxOp(ctx context.Context, tx pgx.Tx, op TxOp) error {
	switch op.Kind {
	case TxPut:
		item, err := attributevalue.MarshalMap(op.Doc)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		id, err := keyOf(op.Collection, item)
		if err != nil {
			return err
		}
		stampVersion(item)
		inserted, err := insertDoc(ctx, tx, op.Collection, id, item)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrConditionFailed
		}
		return notify(ctx, tx, op.Collection, id, ChangeCreated)
	case TxUpdate, TxDelete:
		current, err := ps.lockRow(ctx, tx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		ok, err := evaluate(current, op.Expect)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConditionFailed
		}
		if op.Kind == TxDelete {
			if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, op.Collection.Table, op.ID); err != nil {
				return err
			}
			return notify(ctx, tx, op.Collection, op.ID, ChangeDeleted)
		}
		updated, err := applyPatch(current, versioned(op.Patch))
		if err != nil {
			return err
		}
		if err := writeDoc(ctx, tx, op.Collection, op.ID, updated); err != nil {
			return err
		}
		return notify(ctx, tx, op.Collection, op.ID, ChangeUpdated)
	}
	return fmt.Errorf("unknown transaction operation %d", op.Kind)
}

// Listen forwards committed changes from LISTEN/NOTIFY to subscribers until ctx is cancelled
func (ps *PostgresStore) Listen(ctx context.Context) error {
	conn, err := ps.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	byTable := make(map[string]Collection, len(Collections))
	for _, c := range Collections {
		byTable[c.Table] = c
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("notification wait failed: %w", err)
		}

		var notice changeNotice
		if err := json.Unmarshal([]byte(n.Payload), &notice); err != nil {
			log.Printf("⚠️ Ignoring malformed change notice: %v", err)
			continue
		}
		c, ok := byTable[notice.Table]
		if !ok {
			continue
		}

		item := keyItem(c, notice.ID)
		if notice.Kind != ChangeDeleted {
			var raw []byte
			err := ps.pool.QueryRow(ctx,
				`SELECT doc FROM documents WHERE collection = $1 AND id = $2`, c.Table, notice.ID).Scan(&raw)
			if err != nil {
				continue
			}
			if item, err = jsonToItem(raw); err != nil {
				continue
			}
		}
		ps.feed.Publish(Change{Collection: c, ID: notice.ID, Kind: notice.Kind, Item: item})
	}
}

// Subscribe registers a change listener; Listen must be running for it to fire
func (ps *PostgresStore) Subscribe(c Collection, filter Conditions, onChange func(Change)) func() {
	return ps.feed.Subscribe(c, filter, onChange)
}
