package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory(context.Background(), t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	v1, err := db.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	require.NoError(t, db.Migrate(ctx, conn))

	v2, err := db.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestWorker_RollsBackOnError(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	ctx := context.Background()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO societies(society_id, name, created_at_ms) VALUES ('S-x', 'x', 0)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM societies`).Scan(&n))
	assert.Zero(t, n)
}

func TestWorker_SerializesReadModifyWrite(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	ctx := context.Background()

	_, err := conn.Exec(`CREATE TABLE counter (n INTEGER NOT NULL); INSERT INTO counter VALUES (0);`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
				var n int
				if err := tx.QueryRowContext(ctx, `SELECT n FROM counter`).Scan(&n); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `UPDATE counter SET n = ?`, n+1)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int
	require.NoError(t, conn.QueryRow(`SELECT n FROM counter`).Scan(&n))
	assert.Equal(t, 50, n)
}

func TestWorker_CancelledCallerGetsStartedJobResult(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	ctx, cancel := context.WithCancel(context.Background())
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
			close(entered)
			<-release
			_, err := tx.ExecContext(ctx,
				`INSERT INTO societies(society_id, name, created_at_ms) VALUES ('S-x', 'x', 0)`)
			return err
		})
	}()

	<-entered
	cancel()
	select {
	case err := <-done:
		t.Fatalf("Do returned %v while its transaction was still open", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	err := <-done
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM societies`).Scan(&n))
	assert.Equal(t, err == nil, n == 1, "Do reported %v with %d row(s) written", err, n)
}

func TestWorker_ResultMatchesCommitUnderCancellation(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("S-%d", i)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(time.Duration(i%5) * 100 * time.Microsecond)
			cancel()
		}()
		err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO societies(society_id, name, created_at_ms) VALUES (?, 'x', 0)`, id)
			return err
		})
		cancel()

		var n int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM societies WHERE society_id = ?`, id).Scan(&n))
		assert.Equal(t, err == nil, n == 1, "iteration %d: err=%v rows=%d", i, err, n)
	}
}

func TestWorker_DoAfterClose(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, db.ErrWorkerClosed)
}

func TestSeedDev_Repeatable(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(w.Close)
	ctx := context.Background()

	require.NoError(t, db.SeedDev(ctx, w, db.DefaultSeed))
	require.NoError(t, db.SeedDev(ctx, w, db.DefaultSeed))

	var flats, guards int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM flats`).Scan(&flats))
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM guards`).Scan(&guards))
	assert.Equal(t, len(db.DefaultSeed.FlatIDs), flats)
	assert.Equal(t, 1, guards)
}
