package chert

import (
	"errors"

	"github.com/chertdb/chert/client"
	"github.com/chertdb/chert/entity"
)

// Convenience re-exports of errors detected by the store or the key model.
// See the declaring packages for details.
var (
	ErrNoSuchEntity  = client.ErrNoSuchEntity
	ErrAlreadyExists = client.ErrAlreadyExists
	ErrConflict      = client.ErrConflict
	ErrReadOnly      = client.ErrReadOnly
	ErrValueTooLarge = client.ErrValueTooLarge
	ErrInvalidKey    = entity.ErrInvalidKey
	ErrKeyComplete   = entity.ErrKeyComplete
)

// Transaction state machine misuse, detected locally before contacting the
// store.
var (
	// ErrTxnNotStarted is returned by any transaction operation before
	// Begin.
	ErrTxnNotStarted = errors.New("chert: transaction not started")

	// ErrTxnStarted is returned by Begin on a transaction that is already
	// running.
	ErrTxnStarted = errors.New("chert: transaction already started")

	// ErrTxnClosed is returned by any operation on a committed or rolled
	// back transaction.
	ErrTxnClosed = errors.New("chert: transaction already committed or rolled back")
)
