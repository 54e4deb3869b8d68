// Package client defines the abstract operations the driver requires from
// a store. How they are serialized and transported is the backend's
// business; the driver only depends on the semantics declared here.
package client

import (
	"context"
	"errors"

	"github.com/chertdb/chert/entity"
	"github.com/chertdb/chert/query"
	"github.com/chertdb/chert/wire"
)

// Errors detected by the store and passed through the driver unmodified.
var (
	// ErrNoSuchEntity is returned by a save with MethodUpdate when the key
	// denotes no entity.
	ErrNoSuchEntity = errors.New("chert: no such entity")

	// ErrAlreadyExists is returned by a save with MethodInsert when the key
	// already denotes an entity.
	ErrAlreadyExists = errors.New("chert: entity already exists")

	// ErrConflict is the optimistic-concurrency rejection: an entity in the
	// transaction's read or write set was modified by another committed
	// transaction after this one took its snapshot. Nothing was applied;
	// retry with a new transaction.
	ErrConflict = errors.New("chert: transaction conflict")

	// ErrValueTooLarge is returned at commit when an indexed value exceeds
	// wire.MaxIndexedValueBytes.
	ErrValueTooLarge = errors.New("chert: indexed value too large")

	// ErrReadOnly is returned when a commit carrying writes is attempted in
	// a read-only transaction.
	ErrReadOnly = errors.New("chert: write in read-only transaction")
)

// TxID identifies a store-side transaction snapshot. The zero value means
// no transaction: the operation runs against the current state.
type TxID string

// Method selects the save precondition of a mutation.
type Method string

// Save methods. MethodUpsert always succeeds; the other two fail against
// the errors documented above.
const (
	MethodUpsert Method = "upsert"
	MethodInsert Method = "insert"
	MethodUpdate Method = "update"
)

// Mutation is one buffered write. Entity is nil iff Delete is true.
type Mutation struct {
	Key    *entity.Key
	Entity *wire.Entity
	Method Method
	Delete bool
}

// Client is a logical connection to the store. All methods are safe for
// concurrent use. Every method either succeeds fully or reports an error
// with no partial effect.
type Client interface {
	// Lookup fetches the entities for the given keys. The result is
	// parallel to keys, with nil for absent entities. With a transaction it
	// reads from the transaction's snapshot and records the keys in its
	// read set.
	Lookup(ctx context.Context, tx TxID, keys []*entity.Key) ([]*wire.Entity, error)

	// RunQuery evaluates the query against the current state or, with a
	// transaction, against its snapshot (recording the results in the read
	// set).
	RunQuery(ctx context.Context, tx TxID, q *query.Query) (*query.Result, error)

	// BeginTransaction starts a transaction over a snapshot of the current
	// state.
	BeginTransaction(ctx context.Context, readOnly bool) (TxID, error)

	// Commit atomically applies the mutations and closes the transaction.
	// The returned keys are parallel to mutations; mutations saved under
	// incomplete keys come back completed with store-assigned IDs. On error
	// (including ErrConflict) nothing is applied and the transaction is
	// closed.
	Commit(ctx context.Context, tx TxID, mutations []Mutation) ([]*entity.Key, error)

	// Rollback discards the transaction.
	Rollback(ctx context.Context, tx TxID) error

	// AllocateIDs completes the given incomplete keys with distinct,
	// never-used numeric IDs.
	AllocateIDs(ctx context.Context, keys []*entity.Key) ([]*entity.Key, error)
}
