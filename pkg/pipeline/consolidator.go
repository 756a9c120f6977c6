package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Task is one unit of post-turn consolidation work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Consolidator is a small supervised worker pool for post-turn work:
// persisting the turn record, mirroring fragments, updating affect. Submit
// never blocks the response path; when the queue is full the task is
// dropped with a warning rather than delaying the next turn. Worker
// failures surface on Errors instead of vanishing.
type Consolidator struct {
	tasks chan Task
	errs  chan error

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewConsolidator(workers, queueSize int) *Consolidator {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	c := &Consolidator{
		tasks: make(chan Task, queueSize),
		errs:  make(chan error, queueSize),
	}
	c.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go c.worker()
	}
	return c
}

// Submit queues a task without blocking. It reports whether the task was
// accepted.
func (c *Consolidator) Submit(task Task) bool {
	select {
	case c.tasks <- task:
		return true
	default:
		log.Warn().Str("task", task.Name).Msg("consolidation queue full, dropping task")
		return false
	}
}

// Errors delivers failures from consolidation tasks. The channel is closed
// by Close. Readers are optional; undelivered errors are dropped after
// being logged.
func (c *Consolidator) Errors() <-chan error {
	return c.errs
}

// Close stops accepting tasks, waits for in-flight work, and closes Errors.
func (c *Consolidator) Close() {
	c.closeOnce.Do(func() {
		close(c.tasks)
		c.wg.Wait()
		close(c.errs)
	})
}

func (c *Consolidator) worker() {
	defer c.wg.Done()
	for task := range c.tasks {
		if err := task.Run(context.Background()); err != nil {
			log.Warn().Err(err).Str("task", task.Name).Msg("consolidation task failed")
			select {
			case c.errs <- errors.Wrap(err, task.Name):
			default:
			}
		}
	}
}
