package store

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	prand "math/rand"
	"time"
)

const (
	// DefaultNumTxRetries is the default number of times a transaction is
	// retried on a repeatable error.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay is the default initial backoff, doubled on
	// each retry and capped at DefaultMaxRetryDelay.
	DefaultInitialRetryDelay = 40 * time.Millisecond

	// DefaultMaxRetryDelay caps the retry backoff.
	DefaultMaxRetryDelay = 3 * time.Second
)

// TxOptions controls whether a transaction is read-only.
type TxOptions interface {
	ReadOnly() bool
}

// BaseTxOptions is the concrete TxOptions implementation.
type BaseTxOptions struct {
	readOnly bool
}

// ReadOnly implements TxOptions.
func (o *BaseTxOptions) ReadOnly() bool { return o.readOnly }

// ReadTxOption returns a read-only TxOptions.
func ReadTxOption() *BaseTxOptions { return &BaseTxOptions{readOnly: true} }

// WriteTxOption returns a read-write TxOptions.
func WriteTxOption() *BaseTxOptions { return &BaseTxOptions{readOnly: false} }

// QueryCreator builds a Querier of type Q bound to a *sql.Tx.
type QueryCreator[Q any] func(*sql.Tx) Q

// BatchedQuerier can begin a transaction given a set of TxOptions.
type BatchedQuerier interface {
	BeginTx(ctx context.Context, opts TxOptions) (*sql.Tx, error)
}

// txExecutorOptions configures a TransactionExecutor's retry behavior,
// grounded on internal/db/tx_executor.go's randomized exponential backoff.
type txExecutorOptions struct {
	numRetries        int
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
}

func defaultTxExecutorOptions() *txExecutorOptions {
	return &txExecutorOptions{
		numRetries:        DefaultNumTxRetries,
		initialRetryDelay: DefaultInitialRetryDelay,
		maxRetryDelay:     DefaultMaxRetryDelay,
	}
}

func (o *txExecutorOptions) randRetryDelay(attempt int) time.Duration {
	halfDelay := o.initialRetryDelay / 2
	randDelay := prand.Int63n(int64(o.initialRetryDelay)) //nolint:gosec
	initialDelay := halfDelay + time.Duration(randDelay)

	if attempt == 0 {
		return initialDelay
	}

	factor := time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	actualDelay := initialDelay * factor
	if actualDelay > o.maxRetryDelay {
		return o.maxRetryDelay
	}
	return actualDelay
}

// TxExecutorOption configures a TransactionExecutor.
type TxExecutorOption func(*txExecutorOptions)

// WithTxRetries overrides the retry count.
func WithTxRetries(n int) TxExecutorOption {
	return func(o *txExecutorOptions) { o.numRetries = n }
}

// TransactionExecutor runs a txBody against a Querier of type Q inside a
// database transaction, retrying on serialization/deadlock errors.
// Grounded on internal/db/tx_executor.go's identical generic design,
// which is already domain-agnostic and needed no behavioral change here.
type TransactionExecutor[Q any] struct {
	BatchedQuerier
	createQuery QueryCreator[Q]
	opts        *txExecutorOptions
	log         *slog.Logger
}

// NewTransactionExecutor constructs a TransactionExecutor.
func NewTransactionExecutor[Q any](db BatchedQuerier,
	createQuery QueryCreator[Q], log *slog.Logger,
	opts ...TxExecutorOption) *TransactionExecutor[Q] {

	txOpts := defaultTxExecutorOptions()
	for _, opt := range opts {
		opt(txOpts)
	}

	return &TransactionExecutor[Q]{
		BatchedQuerier: db,
		createQuery:    createQuery,
		opts:           txOpts,
		log:            log,
	}
}

// ExecTx runs txBody inside a transaction, retrying on serialization or
// deadlock errors up to the configured retry count.
func (t *TransactionExecutor[Q]) ExecTx(ctx context.Context,
	txOptions TxOptions, txBody func(Q) error) error {

	waitBeforeRetry := func(attempt int) {
		delay := t.opts.randRetryDelay(attempt)
		t.log.DebugContext(ctx,
			"retrying transaction after serialization/deadlock error",
			"attempt", attempt, "delay", delay,
		)
		time.Sleep(delay)
	}

	for i := 0; i < t.opts.numRetries; i++ {
		tx, err := t.BeginTx(ctx, txOptions)
		if err != nil {
			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}
			return dbErr
		}

		defer func() { _ = tx.Rollback() }()

		if err := txBody(t.createQuery(tx)); err != nil {
			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				_ = tx.Rollback()
				waitBeforeRetry(i)
				continue
			}
			return dbErr
		}

		if err := tx.Commit(); err != nil {
			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				_ = tx.Rollback()
				waitBeforeRetry(i)
				continue
			}
			return dbErr
		}

		return nil
	}

	return ErrRetriesExceeded
}
