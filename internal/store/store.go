package store

import (
	"context"
	"database/sql"
	"log/slog"
)

// baseDB embeds *sql.DB and exposes BeginTx under the TxOptions interface,
// grounded on internal/db/interfaces.go's BaseDB/NewBaseDB pair.
type baseDB struct {
	*sql.DB
}

func newBaseDB(db *sql.DB) *baseDB {
	return &baseDB{DB: db}
}

// BeginTx implements BatchedQuerier.
func (b *baseDB) BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx, error) {
	return b.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly()})
}

// Store is the dead-letter-office and actor-audit persistence layer,
// wrapping a *sql.DB with retrying transaction support. Grounded on
// internal/db/store.go's Store/NewStore/WithTx/WithReadTx shape, adapted to
// this package's hand-written Queries instead of a sqlc-generated one.
type Store struct {
	*baseDB

	q          *Queries
	txExecutor *TransactionExecutor[*Queries]
	log        *slog.Logger
}

// NewStore wraps db in a Store using the default slog logger.
func NewStore(db *sql.DB) *Store {
	return NewStoreWithLogger(db, slog.Default())
}

// NewStoreWithLogger wraps db in a Store using a caller-supplied logger.
func NewStoreWithLogger(db *sql.DB, log *slog.Logger) *Store {
	base := newBaseDB(db)

	createQuery := func(tx *sql.Tx) *Queries {
		return New(tx)
	}

	return &Store{
		baseDB:     base,
		q:          New(base.DB),
		txExecutor: NewTransactionExecutor(base, createQuery, log),
		log:        log,
	}
}

// Queries returns the non-transactional query handle for direct reads.
func (s *Store) Queries() *Queries {
	return s.q
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.baseDB.DB
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.baseDB.Close()
}

// ExecTx runs txBody inside a retrying transaction bound to txOptions.
func (s *Store) ExecTx(ctx context.Context, txOptions TxOptions,
	txBody func(*Queries) error) error {

	return s.txExecutor.ExecTx(ctx, txOptions, txBody)
}

// TxFunc is the callback signature used by WithTx/WithReadTx.
type TxFunc func(ctx context.Context, q *Queries) error

// WithTx runs fn inside a read-write transaction, retrying on
// serialization/deadlock errors.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	return s.ExecTx(ctx, WriteTxOption(), func(q *Queries) error {
		return fn(ctx, q)
	})
}

// WithReadTx runs fn inside a read-only transaction.
func (s *Store) WithReadTx(ctx context.Context, fn TxFunc) error {
	return s.ExecTx(ctx, ReadTxOption(), func(q *Queries) error {
		return fn(ctx, q)
	})
}
