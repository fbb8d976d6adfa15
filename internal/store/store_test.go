package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testStore(t *testing.T) (*SqliteStore, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "solidframe-store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSqliteStore(&SqliteConfig{DatabaseFileName: dbPath}, nil)
	require.NoError(t, err)

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func TestNewSqliteStoreRunsMigrations(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	require.NotNil(t, s.DB())

	var name string
	row := s.DB().QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='dead_letters'`,
	)
	require.NoError(t, row.Scan(&name))
	require.Equal(t, "dead_letters", name)
}

func TestDeadLetterEnqueueListDrain(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	ctx := context.Background()
	q := s.Queries()

	now := time.Unix(1_700_000_000, 0)
	id, err := q.EnqueueDeadLetter(ctx, DeadLetter{
		IdempotencyKey:  "evt-1",
		ActorIndex:      3,
		ActorGeneration: 1,
		EventMask:       uint32(0x1),
		PayloadJSON:     `{"hello":"world"}`,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	pending, err := q.CountPendingDeadLetters(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	list, err := q.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "evt-1", list[0].IdempotencyKey)
	require.Equal(t, StatusPending, list[0].Status)

	drained, err := q.DrainPendingDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, drained, 1)
	require.Equal(t, StatusDelivering, drained[0].Status)

	// A second drain should find nothing left pending.
	drained2, err := q.DrainPendingDeadLetters(ctx)
	require.NoError(t, err)
	require.Empty(t, drained2)

	require.NoError(t, q.MarkDeadLetterDelivered(ctx, id))

	stats, err := q.DeadLetterStatsQuery(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Delivered)
	require.Equal(t, int64(0), stats.Pending)
}

func TestDeadLetterMarkFailedRetries(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	ctx := context.Background()
	q := s.Queries()

	now := time.Unix(1_700_000_000, 0)
	id, err := q.EnqueueDeadLetter(ctx, DeadLetter{
		IdempotencyKey: "evt-2",
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = q.DrainPendingDeadLetters(ctx)
	require.NoError(t, err)

	require.NoError(t, q.MarkDeadLetterFailed(ctx, id, "connection refused"))

	list, err := q.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, StatusPending, list[0].Status)
	require.Equal(t, 1, list[0].Attempts)
	require.Equal(t, "connection refused", list[0].LastError)
}

func TestDeadLetterPurgeExpired(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	ctx := context.Background()
	q := s.Queries()

	past := time.Unix(1_000, 0)
	future := time.Unix(4_000_000_000, 0)

	_, err := q.EnqueueDeadLetter(ctx, DeadLetter{
		IdempotencyKey: "expired",
		CreatedAt:      past,
		ExpiresAt:      past.Add(time.Second),
	})
	require.NoError(t, err)

	_, err = q.EnqueueDeadLetter(ctx, DeadLetter{
		IdempotencyKey: "fresh",
		CreatedAt:      past,
		ExpiresAt:      future,
	})
	require.NoError(t, err)

	n, err := q.PurgeExpiredDeadLetters(ctx, time.Unix(2_000, 0))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	list, err := q.ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "fresh", list[0].IdempotencyKey)
}

func TestActorAuditInsertAndList(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	ctx := context.Background()
	q := s.Queries()

	rec := AuditRecord{
		ActorIndex:      7,
		ActorGeneration: 2,
		ReactorID:       0,
		Event:           "registered",
		RecordedAt:      time.Unix(1_700_000_100, 0),
	}
	id, err := q.InsertAuditRecord(ctx, rec)
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = q.InsertAuditRecord(ctx, AuditRecord{
		ActorIndex:      7,
		ActorGeneration: 2,
		ReactorID:       0,
		Event:           "unregistered",
		RecordedAt:      time.Unix(1_700_000_200, 0),
	})
	require.NoError(t, err)

	trail, err := q.ListAuditRecords(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, "registered", trail[0].Event)
	require.Equal(t, "unregistered", trail[1].Event)
}

func TestStoreWithTxRollsBackOnError(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()

	ctx := context.Background()
	boom := require.New(t)

	err := s.WithTx(ctx, func(ctx context.Context, q *Queries) error {
		_, err := q.EnqueueDeadLetter(ctx, DeadLetter{
			IdempotencyKey: "rolled-back",
			CreatedAt:      time.Unix(1, 0),
			ExpiresAt:      time.Unix(2, 0),
		})
		require.NoError(t, err)
		return errBoom
	})
	boom.ErrorIs(err, errBoom)

	list, err := s.Queries().ListDeadLetters(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}
