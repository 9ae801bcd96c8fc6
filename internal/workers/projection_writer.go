package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
)

// ErrWriterStopped is returned by Do once the writer has shut down.
var ErrWriterStopped = errors.New("projection writer stopped")

type writeTask struct {
	ctx    context.Context
	itemID string
	fn     func(ctx context.Context) error
	done   chan error
}

type projectionWriter struct {
	shards   []chan writeTask
	stopped  chan struct{}
	finished chan struct{}
	once     sync.Once
}

var _ domain.ProjectionWriter = (*projectionWriter)(nil)

// NewProjectionWriter routes every item to one of n shards. A shard runs its tasks one at a
// time, so tasks of the same item never overlap.
func NewProjectionWriter(n, queueSize int) *projectionWriter {
	n = max(n, 1)
	shards := make([]chan writeTask, n)
	for i := range shards {
		shards[i] = make(chan writeTask, queueSize)
	}
	return &projectionWriter{
		shards:   shards,
		stopped:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (w *projectionWriter) shard(itemID string) chan writeTask {
	return w.shards[xxhash.Sum64String(itemID)%uint64(len(w.shards))]
}

// Start runs the shards until ctx is done. Queued tasks are drained before it returns.
func (w *projectionWriter) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i, ch := range w.shards {
		i, ch := i, ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, i, ch)
		}()
	}
	<-ctx.Done()
	w.once.Do(func() { close(w.stopped) })
	wg.Wait()
	close(w.finished)
	logrus.Info("projection writer stopped")
}

func (w *projectionWriter) run(ctx context.Context, i int, ch chan writeTask) {
	for {
		select {
		case task := <-ch:
			w.exec(task)
		case <-ctx.Done():
			for {
				select {
				case task := <-ch:
					w.exec(task)
				default:
					logrus.Debugf("projection writer shard %d drained", i)
					return
				}
			}
		}
	}
}

func (w *projectionWriter) exec(task writeTask) {
	if err := task.ctx.Err(); err != nil {
		task.done <- err
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("projection write for item %s panicked: %v", task.itemID, r)
			task.done <- domain.ErrInternalServerError
		}
	}()
	task.done <- task.fn(task.ctx)
}

func (w *projectionWriter) Do(ctx context.Context, itemID string, fn func(ctx context.Context) error) error {
	task := writeTask{ctx: ctx, itemID: itemID, fn: fn, done: make(chan error, 1)}

	select {
	case <-w.stopped:
		return ErrWriterStopped
	default:
	}

	select {
	case w.shard(itemID) <- task:
	case <-w.stopped:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-task.done:
		return err
	case <-w.finished:
		// enqueued after the shard drained
		select {
		case err := <-task.done:
			return err
		default:
			return ErrWriterStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
