package chert

import (
	"context"
	"fmt"

	"github.com/chertdb/chert/client"
	"github.com/chertdb/chert/entity"
	"github.com/chertdb/chert/query"
	"github.com/chertdb/chert/wire"
	"go.uber.org/zap"
)

type txnStage int

const (
	txnNotStarted txnStage = iota
	txnActive
	txnCommitted
	txnRolledBack
)

// TxOption configures a transaction at creation.
type TxOption func(*Transaction)

// ReadOnly makes the transaction accept reads and queries only. A commit
// carrying buffered writes fails with ErrReadOnly.
func ReadOnly(tx *Transaction) {
	tx.readOnly = true
}

// pending is one buffered mutation. For saves, entity receives the
// store-assigned key after a successful commit of an incomplete-key save.
type pending struct {
	mut    client.Mutation
	entity *entity.Entity
}

// Transaction is a bounded scope of reads and buffered writes applied
// atomically at Commit. Not safe for concurrent use.
//
// The lifecycle is Begin, then any number of Get/Run/Put/Delete, then
// exactly one Commit or Rollback. Reads observe the snapshot taken at
// Begin; they never observe the transaction's own uncommitted buffer.
type Transaction struct {
	db       *DB
	readOnly bool

	stage   txnStage
	id      client.TxID
	order   []string
	pending map[string]*pending
	nth     int
}

// NewTransaction creates a transaction. No store communication happens
// until Begin.
func (db *DB) NewTransaction(opts ...TxOption) *Transaction {
	tx := &Transaction{db: db, pending: map[string]*pending{}}
	for _, opt := range opts {
		opt(tx)
	}
	return tx
}

// RunInTransaction begins a transaction, calls fn with it, and commits.
// If fn returns an error, the transaction is rolled back and the error
// returned. A commit conflict surfaces as ErrConflict; the caller decides
// whether to run a fresh transaction.
func (db *DB) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error, opts ...TxOption) error {
	tx := db.NewTransaction(opts...)
	if err := tx.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if tx.stage == txnActive {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Begin starts the transaction, taking a snapshot at the store.
func (tx *Transaction) Begin(ctx context.Context) error {
	switch tx.stage {
	case txnActive:
		return ErrTxnStarted
	case txnCommitted, txnRolledBack:
		return ErrTxnClosed
	}
	id, err := tx.db.client.BeginTransaction(ctx, tx.readOnly)
	if err != nil {
		return err
	}
	tx.id = id
	tx.stage = txnActive
	return nil
}

func (tx *Transaction) active() error {
	switch tx.stage {
	case txnNotStarted:
		return ErrTxnNotStarted
	case txnCommitted, txnRolledBack:
		return ErrTxnClosed
	}
	return nil
}

// Get reads the entity under the key from the transaction's snapshot. The
// read bypasses the local write buffer, and its key joins the read set
// checked at commit.
func (tx *Transaction) Get(ctx context.Context, key *entity.Key) (*entity.Entity, bool, error) {
	res, err := tx.GetMulti(ctx, []*entity.Key{key})
	if err != nil {
		return nil, false, err
	}
	if res[0] == nil {
		return nil, false, nil
	}
	return res[0], true, nil
}

// GetMulti reads all keys from the transaction's snapshot. The result is
// parallel to keys, with nil entries for absent entities.
func (tx *Transaction) GetMulti(ctx context.Context, keys []*entity.Key) ([]*entity.Entity, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	encoded, err := tx.db.client.Lookup(ctx, tx.id, keys)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.Entity, len(encoded))
	for i, we := range encoded {
		if we == nil {
			continue
		}
		if res[i], err = wire.Decode(we); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Run executes a query against the transaction's snapshot.
func (tx *Transaction) Run(ctx context.Context, q *query.Query) (*QueryResult, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	res, err := tx.db.client.RunQuery(ctx, tx.id, q)
	if err != nil {
		return nil, err
	}
	return decodeResult(res)
}

// Put buffers a save of the entity. No store communication happens until
// Commit. Per key, the last buffered operation wins: a later Put replaces
// an earlier Put or Delete of the same key.
func (tx *Transaction) Put(e *entity.Entity, exclude ...string) error {
	return tx.save(e, client.MethodUpsert, exclude)
}

// Insert buffers a save that will fail the commit with ErrAlreadyExists if
// the key already denotes an entity.
func (tx *Transaction) Insert(e *entity.Entity, exclude ...string) error {
	return tx.save(e, client.MethodInsert, exclude)
}

// Update buffers a save that will fail the commit with ErrNoSuchEntity if
// the key denotes no entity.
func (tx *Transaction) Update(e *entity.Entity, exclude ...string) error {
	return tx.save(e, client.MethodUpdate, exclude)
}

func (tx *Transaction) save(e *entity.Entity, method client.Method, exclude []string) error {
	if err := tx.active(); err != nil {
		return err
	}
	key := e.Key()
	if err := key.Validate(); err != nil {
		return err
	}
	encoded, err := wire.Encode(e, exclude)
	if err != nil {
		return err
	}
	tx.buffer(bufferKey(key, tx.nextNth()), &pending{
		mut:    client.Mutation{Key: key, Entity: encoded, Method: method},
		entity: e,
	})
	return nil
}

// Delete buffers a deletion of the key. Per key, the last buffered
// operation wins: a later Delete supersedes a buffered Put.
func (tx *Transaction) Delete(key *entity.Key) error {
	if err := tx.active(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}
	if key.Incomplete() {
		return fmt.Errorf("%w: cannot delete incomplete key %s", ErrInvalidKey, key)
	}
	tx.buffer(bufferKey(key, 0), &pending{
		mut: client.Mutation{Key: key, Delete: true},
	})
	return nil
}

// bufferKey is the write-buffer resolution key. Complete keys resolve
// last-write-wins; each incomplete key is a distinct pending entity and
// gets a synthetic slot.
func bufferKey(key *entity.Key, nth int) string {
	if key.Incomplete() {
		return fmt.Sprintf("\x00incomplete:%d", nth)
	}
	return key.Encode()
}

func (tx *Transaction) nextNth() int {
	tx.nth++
	return tx.nth
}

func (tx *Transaction) buffer(bk string, p *pending) {
	if _, seen := tx.pending[bk]; !seen {
		tx.order = append(tx.order, bk)
	}
	tx.pending[bk] = p
}

// Commit applies all buffered mutations as one atomic unit and closes the
// transaction. Saves under incomplete keys receive store-assigned IDs,
// applied to the saved entities' keys.
//
// The attempt is terminal whatever the outcome: a failed commit (including
// ErrConflict and ErrReadOnly) leaves no mutation applied, and the
// transaction object cannot be reused. Conflicts are never retried by the
// driver.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.active(); err != nil {
		return err
	}
	tx.stage = txnCommitted

	if tx.readOnly && len(tx.pending) > 0 {
		_ = tx.db.client.Rollback(ctx, tx.id)
		return ErrReadOnly
	}

	muts := make([]client.Mutation, len(tx.order))
	pendings := make([]*pending, len(tx.order))
	for i, bk := range tx.order {
		muts[i] = tx.pending[bk].mut
		pendings[i] = tx.pending[bk]
	}

	keys, err := tx.db.client.Commit(ctx, tx.id, muts)
	if err != nil {
		tx.db.logger.Debug("Commit failed", zap.String("tx", string(tx.id)), zap.Error(err))
		return err
	}
	for i, p := range pendings {
		if p.entity != nil && p.mut.Key.Incomplete() {
			p.entity.SetKey(keys[i])
		}
	}
	return nil
}

// Rollback discards the buffer and closes the transaction. No buffered
// mutation becomes visible.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if err := tx.active(); err != nil {
		return err
	}
	tx.stage = txnRolledBack
	return tx.db.client.Rollback(ctx, tx.id)
}
