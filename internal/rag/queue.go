package rag

import (
	"context"
	"sync"
	"time"

	"github.com/licium/licium/internal/log"
)

// DefaultQueueSize is the enqueue buffer used when the configuration does not
// set one.
const DefaultQueueSize = 64

// jobTimeout bounds one background indexing run. Generous: a large note with
// a slow local model still fits.
const jobTimeout = 5 * time.Minute

// Queue runs indexing jobs in the background. Enqueue never blocks the
// caller: when the buffer is full the job is dropped and logged, and the
// note will be picked up again on its next save.
//
// Jobs for different notes run concurrently across workers; jobs for the
// same note are serialized by a per-note lock so delete-then-insert runs
// from two rapid saves cannot interleave.
type Queue struct {
	indexer *Indexer
	jobs    chan IndexRequest
	logger  log.Logger

	locks locksByNote

	wg     sync.WaitGroup
	cancel context.CancelFunc

	// mu guards closed so Enqueue never sends on the closed jobs channel.
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewQueue starts a Queue with the given number of workers draining a buffer
// of size jobs. Non-positive arguments fall back to 1 worker and
// DefaultQueueSize.
func NewQueue(indexer *Indexer, workers, size int, logger log.Logger) *Queue {
	if logger == nil {
		logger = log.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		indexer: indexer,
		jobs:    make(chan IndexRequest, size),
		logger:  logger,
		locks:   locksByNote{held: make(map[string]*noteLock)},
		cancel:  cancel,
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker(ctx)
	}
	return q
}

// Enqueue schedules a note for background indexing and reports whether the
// job was accepted. A full buffer or a closed queue drops the job; Enqueue
// never blocks and is safe to race with Close.
func (q *Queue) Enqueue(req IndexRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("indexing queue closed, dropping job", "note_id", req.NoteID)
		return false
	}
	select {
	case q.jobs <- req:
		return true
	default:
		q.logger.Warn("indexing queue full, dropping job", "note_id", req.NoteID)
		return false
	}
}

// Close stops accepting work and waits for buffered and in-flight jobs to
// finish.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.jobs)
		q.wg.Wait()
		q.cancel()
	})
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for req := range q.jobs {
		if ctx.Err() != nil {
			q.logger.Warn("queue shutting down, dropping job", "note_id", req.NoteID)
			continue
		}
		q.run(ctx, req)
	}
}

func (q *Queue) run(ctx context.Context, req IndexRequest) {
	unlock := q.locks.lock(req.NoteID)
	defer unlock()

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if err := q.indexer.Index(jobCtx, req); err != nil {
		q.logger.Error("background indexing failed", "note_id", req.NoteID, "error", err)
	}
}

// locksByNote hands out one mutex per note id, reference counted so the map
// does not grow with every note ever indexed.
type locksByNote struct {
	mu   sync.Mutex
	held map[string]*noteLock
}

type noteLock struct {
	mu   sync.Mutex
	refs int
}

func (l *locksByNote) lock(noteID string) (unlock func()) {
	l.mu.Lock()
	nl, ok := l.held[noteID]
	if !ok {
		nl = &noteLock{}
		l.held[noteID] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()
	return func() {
		nl.mu.Unlock()
		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.held, noteID)
		}
		l.mu.Unlock()
	}
}
