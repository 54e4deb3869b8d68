// Package chert is a client driver for a hierarchical, schemaless entity
// store.
//
// The name comes from the sedimentary theme: chert is the hard nodular rock
// that forms inside limestone beds.
//
// # Keys and entities
//
// Every entity is addressed by an entity.Key: a path of (kind, identifier)
// elements where each element's parent is the preceding one. The path
// prefix above the last element is the entity's ancestor path and defines
// hierarchical containment. A key whose last element has no identifier yet
// is incomplete; saving under it makes the store assign a permanent numeric
// ID.
//
// An entity is a free-form property map attached to its key. Values are
// dynamically typed within a closed set (see package entity); integers and
// doubles are distinct types even when numerically equal, and survive a
// save/load round trip as such.
//
// # Index exclusion
//
// Individual property occurrences can be kept out of the store's secondary
// indexes at save time by path expressions such as "metadata.blob" or
// "tags[]". Exclusion affects only index participation: excluded values are
// invisible to filters and sort keys but load back unchanged. The store
// rejects indexed string or byte values longer than wire.MaxIndexedValueBytes;
// excluding the property lifts the limit.
//
// # Queries
//
// Queries are built with the immutable query.NewQuery builder and executed
// with DB.Run (or Transaction.Run for snapshot-consistent results):
//
//	q := query.NewQuery("Character").
//	    Ancestor(book).
//	    Filter("appearances >=", 20).
//	    Order("-appearances").
//	    Limit(10)
//	res, err := db.Run(ctx, q)
//
// Results come in pages; Result.EndCursor resumes a logically identical
// query exactly after the last entity returned, with no gaps and no
// duplicates. Without an explicit order, results come in key order; with
// one, the key is the final tie-break, so the total order is always
// deterministic.
//
// # Transactions
//
// A Transaction buffers saves and deletes locally and applies them
// atomically at Commit. Reads inside a transaction see the snapshot taken
// at Begin and never the transaction's own buffer. Concurrency control is
// optimistic: no locks are held, and Commit fails with ErrConflict if any
// entity the transaction read or writes was changed by another committed
// transaction in the meantime. The caller retries by running a new
// transaction; the driver never retries on its own.
//
//	tx := db.NewTransaction()
//	if err := tx.Begin(ctx); err != nil { ... }
//	ent, ok, err := tx.Get(ctx, key)
//	...
//	if err := tx.Put(ent); err != nil { ... }
//	if err := tx.Commit(ctx); err != nil { ... }
//
// RunInTransaction wraps the begin/commit/rollback ceremony around a
// callback. Read-only transactions accept reads and queries but reject any
// commit carrying writes with ErrReadOnly.
//
// Non-transactional DB.Put, DB.Get and DB.Delete are implicit
// single-operation transactions and share the same atomicity and conflict
// semantics.
//
// # Backends
//
// The driver talks to the store through the client.Client interface.
// Package memstore provides a complete in-process implementation used in
// tests and by embedders; network transports implement the same contract.
package chert
