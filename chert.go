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

// Config is the configuration of a DB.
type Config struct {
	// Client is the connection to the store.
	Client client.Client

	// Logger is used for driver-level logging. Optional.
	Logger *zap.Logger
}

// DB is the entry point of the driver. Safe for concurrent use.
type DB struct {
	client client.Client
	logger *zap.Logger
}

// New creates a DB over a store connection.
func New(config Config) *DB {
	if config.Client == nil {
		panic("chert: Config.Client is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{client: config.Client, logger: logger}
}

// QueryResult is one page of decoded query results.
type QueryResult struct {
	// Entities are the matching entities in result order. Keys-only results
	// have empty property maps.
	Entities []*entity.Entity

	// EndCursor resumes the query immediately after the last entity of the
	// page.
	EndCursor query.Cursor

	// More reports whether results remain beyond EndCursor.
	More bool
}

// Get fetches the entity stored under the key. The second return value
// reports whether the entity exists; absence is not an error.
func (db *DB) Get(ctx context.Context, key *entity.Key) (*entity.Entity, bool, error) {
	var e *entity.Entity
	var ok bool
	err := db.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		e, ok, err = tx.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return e, ok, nil
}

// GetMulti fetches the entities for all keys in one operation. The result
// is parallel to keys, with nil entries for absent entities.
func (db *DB) GetMulti(ctx context.Context, keys []*entity.Key) ([]*entity.Entity, error) {
	var res []*entity.Entity
	err := db.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		res, err = tx.GetMulti(ctx, keys)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Put saves the entity under its key, creating or overwriting. If the key
// is incomplete, the store assigns an ID: the completed key is returned and
// applied to the entity.
//
// The optional exclude arguments are exclude-from-indexes path expressions
// (see package wire); they affect index participation of this save only.
func (db *DB) Put(ctx context.Context, e *entity.Entity, exclude ...string) (*entity.Key, error) {
	return db.save(ctx, e, client.MethodUpsert, exclude)
}

// Insert saves the entity like Put, but fails with ErrAlreadyExists if the
// key already denotes an entity.
func (db *DB) Insert(ctx context.Context, e *entity.Entity, exclude ...string) (*entity.Key, error) {
	return db.save(ctx, e, client.MethodInsert, exclude)
}

// Update saves the entity like Put, but fails with ErrNoSuchEntity if the
// key denotes no entity.
func (db *DB) Update(ctx context.Context, e *entity.Entity, exclude ...string) (*entity.Key, error) {
	return db.save(ctx, e, client.MethodUpdate, exclude)
}

func (db *DB) save(ctx context.Context, e *entity.Entity, method client.Method, exclude []string) (*entity.Key, error) {
	err := db.RunInTransaction(ctx, func(tx *Transaction) error {
		return tx.save(e, method, exclude)
	})
	if err != nil {
		return nil, err
	}
	return e.Key(), nil
}

// PutMulti saves all entities in one atomic operation: either every save is
// applied and becomes visible together, or none is. The returned keys are
// parallel to the entities, completed where the store assigned IDs. The
// exclusion expressions apply to every entity of the batch.
func (db *DB) PutMulti(ctx context.Context, es []*entity.Entity, exclude ...string) ([]*entity.Key, error) {
	err := db.RunInTransaction(ctx, func(tx *Transaction) error {
		for _, e := range es {
			if err := tx.save(e, client.MethodUpsert, exclude); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	keys := make([]*entity.Key, len(es))
	for i, e := range es {
		keys[i] = e.Key()
	}
	return keys, nil
}

// Delete removes the entity stored under the key. Deleting an absent entity
// is not an error.
func (db *DB) Delete(ctx context.Context, key *entity.Key) error {
	return db.RunInTransaction(ctx, func(tx *Transaction) error {
		return tx.Delete(key)
	})
}

// DeleteMulti removes all keys as one atomic unit.
func (db *DB) DeleteMulti(ctx context.Context, keys []*entity.Key) error {
	return db.RunInTransaction(ctx, func(tx *Transaction) error {
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Run executes a query against the current state of the store and returns
// one page of results.
func (db *DB) Run(ctx context.Context, q *query.Query) (*QueryResult, error) {
	res, err := db.client.RunQuery(ctx, "", q)
	if err != nil {
		return nil, err
	}
	return decodeResult(res)
}

// AllocateIDs reserves n distinct IDs for the incomplete key template,
// returning n complete keys with the template's kind and ancestor path.
// The IDs are permanently taken and will never be assigned again.
func (db *DB) AllocateIDs(ctx context.Context, template *entity.Key, n int) ([]*entity.Key, error) {
	if err := template.Validate(); err != nil {
		return nil, err
	}
	if !template.Incomplete() {
		return nil, fmt.Errorf("%w: %s", entity.ErrKeyComplete, template)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative key count %d", n)
	}
	templates := make([]*entity.Key, n)
	for i := range templates {
		templates[i] = template
	}
	return db.client.AllocateIDs(ctx, templates)
}

func decodeResult(res *query.Result) (*QueryResult, error) {
	out := &QueryResult{EndCursor: res.EndCursor, More: res.More}
	for _, we := range res.Entities {
		e, err := wire.Decode(we)
		if err != nil {
			return nil, err
		}
		out.Entities = append(out.Entities, e)
	}
	return out, nil
}
