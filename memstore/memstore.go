// Package memstore is an in-process store engine implementing the
// client.Client contract. It keeps the dataset in an indexed in-memory
// database and detects transaction conflicts optimistically: a commit is
// rejected if any entity in the transaction's read or write set changed
// after the transaction took its snapshot.
//
// It backs unit and component tests, and serves embedders that want the
// full driver semantics without an external store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/chertdb/chert/client"
	"github.com/chertdb/chert/entity"
	"github.com/chertdb/chert/query"
	"github.com/chertdb/chert/wire"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/ridge/must/v2"
	"go.uber.org/zap"
)

const tableEntities = "entities"

// record is one stored entity. Rev is the store revision that last wrote
// it.
type record struct {
	EK     string // encoded key, primary index
	Kind   string
	Entity *wire.Entity
	Rev    uint64
}

type txnState struct {
	readOnly bool
	snap     *memdb.Txn
	beginRev uint64
	reads    map[string]struct{}
}

// Store is an in-memory store. Safe for concurrent use.
type Store struct {
	logger *zap.Logger

	mu     sync.Mutex
	db     *memdb.MemDB
	rev    uint64
	nextID int64
	txns   map[client.TxID]*txnState
}

var _ client.Client = (*Store)(nil)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableEntities: {
			Name: tableEntities,
			Indexes: map[string]*memdb.IndexSchema{
				"id":   {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "EK"}},
				"kind": {Name: "kind", Indexer: &memdb.StringFieldIndex{Field: "Kind"}},
			},
		},
	},
}

// New creates an empty store. A nil logger disables logging.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger: logger,
		db:     must.OK1(memdb.NewMemDB(schema)),
		txns:   map[client.TxID]*txnState{},
	}
}

// Lookup implements client.Client.
func (s *Store) Lookup(ctx context.Context, tx client.TxID, keys []*entity.Key) ([]*wire.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, snap, err := s.snapshot(tx)
	if err != nil {
		return nil, err
	}

	res := make([]*wire.Entity, len(keys))
	for i, key := range keys {
		ek, err := completeKey(key)
		if err != nil {
			return nil, err
		}
		if state != nil {
			state.reads[ek] = struct{}{}
		}
		if rec := getRecord(snap, ek); rec != nil {
			res[i] = rec.Entity.Clone()
		}
	}
	return res, nil
}

// RunQuery implements client.Client.
func (s *Store) RunQuery(ctx context.Context, tx client.TxID, q *query.Query) (*query.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, snap, err := s.snapshot(tx)
	if err != nil {
		return nil, err
	}

	var dataset []*wire.Entity
	iter := must.OK1(snap.Get(tableEntities, "kind", q.Kind()))
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		dataset = append(dataset, raw.(*record).Entity)
	}

	res, err := query.Execute(q, dataset)
	if err != nil {
		return nil, err
	}
	for i, e := range res.Entities {
		if state != nil {
			state.reads[e.Key.Encode()] = struct{}{}
		}
		res.Entities[i] = e.Clone()
	}
	return res, nil
}

// BeginTransaction implements client.Client.
func (s *Store) BeginTransaction(ctx context.Context, readOnly bool) (client.TxID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := client.TxID(uuid.NewString())
	s.txns[tx] = &txnState{
		readOnly: readOnly,
		snap:     s.db.Txn(false),
		beginRev: s.rev,
		reads:    map[string]struct{}{},
	}
	s.logger.Debug("Transaction started", zap.String("tx", string(tx)), zap.Bool("readOnly", readOnly))
	return tx, nil
}

// Commit implements client.Client. The commit attempt is terminal for the
// transaction whatever the outcome.
func (s *Store) Commit(ctx context.Context, tx client.TxID, mutations []client.Mutation) ([]*entity.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state *txnState
	if tx != "" {
		state = s.txns[tx]
		if state == nil {
			return nil, fmt.Errorf("unknown or closed transaction %q", tx)
		}
		defer s.close(tx, state)
	}

	if state != nil {
		if state.readOnly && len(mutations) > 0 {
			return nil, client.ErrReadOnly
		}
		if ek := s.conflictingKey(state, mutations); ek != "" {
			return nil, fmt.Errorf("%w: %q changed since snapshot", client.ErrConflict, ek)
		}
	}

	for _, m := range mutations {
		if err := validateMutation(m); err != nil {
			return nil, err
		}
	}

	wtxn := s.db.Txn(true)
	rev := s.rev + 1
	keys := make([]*entity.Key, len(mutations))
	for i, m := range mutations {
		key, err := s.apply(wtxn, m, rev)
		if err != nil {
			wtxn.Abort()
			return nil, err
		}
		keys[i] = key
	}
	wtxn.Commit()
	s.rev = rev

	s.logger.Debug("Committed", zap.String("tx", string(tx)),
		zap.Int("mutations", len(mutations)), zap.Uint64("rev", rev))
	return keys, nil
}

// Rollback implements client.Client.
func (s *Store) Rollback(ctx context.Context, tx client.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.txns[tx]
	if state == nil {
		return fmt.Errorf("unknown or closed transaction %q", tx)
	}
	s.close(tx, state)
	return nil
}

// AllocateIDs implements client.Client.
func (s *Store) AllocateIDs(ctx context.Context, keys []*entity.Key) ([]*entity.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*entity.Key, len(keys))
	for i, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, err
		}
		if !key.Incomplete() {
			return nil, fmt.Errorf("%w: %s", entity.ErrKeyComplete, key)
		}
		res[i] = must.OK1(key.WithID(s.allocateID()))
	}
	return res, nil
}

func (s *Store) allocateID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) close(tx client.TxID, state *txnState) {
	state.snap.Abort()
	delete(s.txns, tx)
}

// snapshot resolves the read view for an operation: the transaction's
// snapshot, or the current state when tx is zero.
func (s *Store) snapshot(tx client.TxID) (*txnState, *memdb.Txn, error) {
	if tx == "" {
		return nil, s.db.Txn(false), nil
	}
	state := s.txns[tx]
	if state == nil {
		return nil, nil, fmt.Errorf("unknown or closed transaction %q", tx)
	}
	return state, state.snap, nil
}

// conflictingKey checks the transaction's read set and write set against
// changes committed after its snapshot. Returns the first conflicting
// encoded key, or "".
func (s *Store) conflictingKey(state *txnState, mutations []client.Mutation) string {
	cur := s.db.Txn(false)
	check := func(ek string) bool {
		snapRec, curRec := getRecord(state.snap, ek), getRecord(cur, ek)
		switch {
		case snapRec == nil && curRec == nil:
			return false
		case snapRec == nil || curRec == nil:
			return true
		default:
			return curRec.Rev > state.beginRev
		}
	}

	for ek := range state.reads {
		if check(ek) {
			return ek
		}
	}
	for _, m := range mutations {
		if m.Key.Incomplete() {
			continue
		}
		if ek := m.Key.Encode(); check(ek) {
			return ek
		}
	}
	return ""
}

func getRecord(txn *memdb.Txn, ek string) *record {
	raw := must.OK1(txn.First(tableEntities, "id", ek))
	if raw == nil {
		return nil
	}
	return raw.(*record)
}

func validateMutation(m client.Mutation) error {
	if err := m.Key.Validate(); err != nil {
		return err
	}
	if m.Delete {
		if m.Key.Incomplete() {
			return fmt.Errorf("%w: cannot delete incomplete key %s", entity.ErrInvalidKey, m.Key)
		}
		return nil
	}
	return checkIndexedSizes(m.Entity, m.Key.String())
}

// checkIndexedSizes enforces the store's limit on indexed string and byte
// values. Values excluded from indexes are exempt.
func checkIndexedSizes(e *wire.Entity, path string) error {
	for name, v := range e.Properties {
		if err := checkIndexedValueSize(v, path+"/"+name); err != nil {
			return err
		}
	}
	return nil
}

func checkIndexedValueSize(v wire.Value, path string) error {
	switch v.Type {
	case wire.TypeString:
		if v.Indexed && len(v.String) > wire.MaxIndexedValueBytes {
			return fmt.Errorf("%w: %s (%d bytes)", client.ErrValueTooLarge, path, len(v.String))
		}
	case wire.TypeBytes:
		if v.Indexed && len(v.Bytes) > wire.MaxIndexedValueBytes {
			return fmt.Errorf("%w: %s (%d bytes)", client.ErrValueTooLarge, path, len(v.Bytes))
		}
	case wire.TypeEntity:
		return checkIndexedSizes(v.Entity, path)
	case wire.TypeArray:
		for i, el := range v.Array {
			if err := checkIndexedValueSize(el, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply performs one mutation inside the write transaction, completing
// incomplete keys with fresh IDs.
func (s *Store) apply(wtxn *memdb.Txn, m client.Mutation, rev uint64) (*entity.Key, error) {
	key := m.Key
	if !m.Delete && key.Incomplete() {
		key = must.OK1(key.WithID(s.allocateID()))
	}
	ek := key.Encode()

	if m.Delete {
		if rec := getRecord(wtxn, ek); rec != nil {
			must.OK(wtxn.Delete(tableEntities, rec))
		}
		return key, nil
	}

	existing := getRecord(wtxn, ek)
	switch m.Method {
	case client.MethodInsert:
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", client.ErrAlreadyExists, key)
		}
	case client.MethodUpdate:
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", client.ErrNoSuchEntity, key)
		}
	}

	ent := m.Entity.Clone()
	ent.Key = key
	must.OK(wtxn.Insert(tableEntities, &record{EK: ek, Kind: key.Kind, Entity: ent, Rev: rev}))
	return key, nil
}

func completeKey(key *entity.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if key.Incomplete() {
		return "", fmt.Errorf("%w: incomplete key %s", entity.ErrInvalidKey, key)
	}
	return key.Encode(), nil
}
