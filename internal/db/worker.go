package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// ErrWorkerClosed is returned by Do after Close.
var ErrWorkerClosed = errors.New("db worker closed")

type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx     context.Context
	fn      TxFn
	ch      chan error
	started chan struct{} // closed when the loop picks the job up
}

// Worker owns every write transaction. Jobs run one at a time in FIFO order,
// so a read-modify-write inside a TxFn cannot interleave with another writer.
type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewWorker(db *sql.DB) *Worker {
	return NewWorkerSize(db, 256)
}

// NewWorkerSize is NewWorker with an explicit queue depth.
func NewWorkerSize(db *sql.DB, depth int) *Worker {
	if depth <= 0 {
		depth = 1
	}
	w := &Worker{
		db:   db,
		jobs: make(chan job, depth),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close stops accepting jobs, finishes the queued ones and waits.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	<-w.done
}

// Do runs fn inside one transaction. fn returning an error rolls back.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch, started: make(chan struct{})}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWorkerClosed
	}
	select {
	case w.jobs <- j:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
	}

	// A started job may still commit, so its own result is the only honest
	// answer. The transaction is bound to ctx and ends promptly. A job not
	// yet started will see the cancellation and never run.
	select {
	case <-j.started:
		return <-ch
	default:
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		// Close before the ctx check; Do relies on that order.
		close(j.started)
		if err := j.ctx.Err(); err != nil {
			j.ch <- err
			continue
		}
		j.ch <- w.run(j)
	}
}

func (w *Worker) run(j job) error {
	tx, err := w.db.BeginTx(j.ctx, nil)
	if err != nil {
		return err
	}

	if err := j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
