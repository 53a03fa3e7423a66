// Package store is the record store behind the request lifecycle: keyed documents with
// conditional updates, atomic counters, multi-document transactions and change subscriptions.
//
// Documents are structs tagged with `dynamodbav` and are held as DynamoDB attribute maps by every
// backend, so the DynamoDB, Postgres and in-memory stores share one set of semantics.
package store

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
)

// Item is one stored document
type Item = map[string]types.AttributeValue

// Collection names a table and its partition key attribute
type Collection struct {
	Table string
	Key   string
}

var (
	Requests       = Collection{Table: models.RequestsTable, Key: "requestId"}
	Responses      = Collection{Table: models.ResponsesTable, Key: "responseId"}
	HiddenRequests = Collection{Table: models.HiddenRequestsTable, Key: "hiddenId"}
	GroupRequests  = Collection{Table: models.GroupRequestsTable, Key: "groupRequestId"}
	GroupMembers   = Collection{Table: models.GroupMembersTable, Key: "membershipId"}
	Meetings       = Collection{Table: models.MeetingsTable, Key: "meetingId"}
)

// Collections lists every collection the service uses
var Collections = []Collection{Requests, Responses, HiddenRequests, GroupRequests, GroupMembers, Meetings}

// Store is implemented by DynamoStore, PostgresStore and MemoryStore.
type Store interface {
	// Get loads the document into out, ErrNotFound when absent.
	Get(ctx context.Context, c Collection, id string, out interface{}) error
	// Create writes doc only if no document with the same key exists (ErrAlreadyExists).
	Create(ctx context.Context, c Collection, doc interface{}) error
	// ConditionalUpdate applies patch when every expectation holds (ErrConditionFailed otherwise).
	// When out is non-nil it receives the updated document.
	ConditionalUpdate(ctx context.Context, c Collection, id string, patch Patch, expect Conditions, out interface{}) error
	// AtomicIncrement adds delta to a numeric field and returns the new value.
	AtomicIncrement(ctx context.Context, c Collection, id, field string, delta float64) (float64, error)
	// Delete removes the document when every expectation holds.
	Delete(ctx context.Context, c Collection, id string, expect Conditions) error
	// Query loads every document matching filter into out, a pointer to a slice.
	Query(ctx context.Context, c Collection, filter Conditions, out interface{}) error
	// Transact applies all operations or none (*TxCanceledError reports which guard failed).
	Transact(ctx context.Context, ops []TxOp) error
	// Subscribe registers onChange for changes in c matching filter; the returned func cancels.
	Subscribe(c Collection, filter Conditions, onChange func(Change)) (cancel func())
}

// ChangeKind tells subscribers what happened to a document
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is pushed to subscribers after a successful write
type Change struct {
	Collection Collection
	ID         string
	Kind       ChangeKind
	Item       Item // new image, old image for deletes
}

// Decode unmarshals the change image into out
func (ch Change) Decode(out interface{}) error {
	return attributevalue.UnmarshalMap(ch.Item, out)
}

// Version is the document version of the image, 0 when the image carries none
func (ch Change) Version() int64 {
	n, ok := ch.Item[VersionField].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// TxKind is the kind of one transactional operation
type TxKind int

const (
	TxPut TxKind = iota
	TxUpdate
	TxDelete
)

// TxOp is one operation of a Transact call
type TxOp struct {
	Kind       TxKind
	Collection Collection
	ID         string
	Doc        interface{}
	Patch      Patch
	Expect     Conditions
}

// PutIfAbsent creates doc inside a transaction, failing when the key already exists
func PutIfAbsent(c Collection, doc interface{}) TxOp {
	return TxOp{Kind: TxPut, Collection: c, Doc: doc}
}

// UpdateIf patches a document inside a transaction
func UpdateIf(c Collection, id string, patch Patch, expect Conditions) TxOp {
	return TxOp{Kind: TxUpdate, Collection: c, ID: id, Patch: patch, Expect: expect}
}

// DeleteIf deletes a document inside a transaction
func DeleteIf(c Collection, id string, expect Conditions) TxOp {
	return TxOp{Kind: TxDelete, Collection: c, ID: id, Expect: expect}
}
