package chain

import (
	"context"
	"sync"
	"time"

	"github.com/lspecian/chain-of-experts/logger"
	"github.com/lspecian/chain-of-experts/stage"
)

const scoreTimeout = 30 * time.Second

// scoreTask grades one stage output on the background queue.
type scoreTask struct {
	scorer stage.Scorer
	name   string
	in     stage.Input
	output any
	ec     *stage.ExecutionContext
}

// scoreQueue runs stage self-scoring off the request path. The queue is
// bounded; when full, new tasks are dropped with a warning rather than
// blocking the chain. close drains everything already queued.
type scoreQueue struct {
	log   *logger.Logger
	tasks chan scoreTask
	wg    sync.WaitGroup
	once  sync.Once
}

func newScoreQueue(size, workers int, log *logger.Logger) *scoreQueue {
	if size <= 0 {
		size = 64
	}
	if workers <= 0 {
		workers = 2
	}
	q := &scoreQueue{
		log:   log.WithComponent("scoring"),
		tasks: make(chan scoreTask, size),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *scoreQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *scoreQueue) run(t scoreTask) {
	ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
	defer cancel()

	scores, err := t.scorer.CalculateScores(ctx, t.in, t.output)
	if err != nil {
		q.log.Warn("scoring failed", map[string]interface{}{
			logger.FieldStage: t.name,
			"error":           err.Error(),
		})
		return
	}
	t.ec.Set("scores:"+t.name, scores)
	q.log.Debug("scores recorded", map[string]interface{}{
		logger.FieldStage: t.name,
		"scores":          scores,
	})
}

// enqueue submits a task without blocking. Returns false if the queue
// is full and the task was dropped.
func (q *scoreQueue) enqueue(t scoreTask) bool {
	select {
	case q.tasks <- t:
		return true
	default:
		q.log.Warn("score queue full, dropping task", map[string]interface{}{
			logger.FieldStage: t.name,
		})
		return false
	}
}

// close stops intake and waits for queued tasks to drain.
func (q *scoreQueue) close() {
	q.once.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}

// enqueueScoring submits a completed stage for background scoring when
// the stage grades its own output.
func (e *Executor) enqueueScoring(s stage.Stage, in stage.Input, output any, ec *stage.ExecutionContext) {
	sc, ok := s.(stage.Scorer)
	if !ok {
		return
	}
	e.scores.enqueue(scoreTask{
		scorer: sc,
		name:   s.Name(),
		in:     in,
		output: output,
		ec:     ec,
	})
}
