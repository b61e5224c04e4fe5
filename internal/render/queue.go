package render

import (
	"runtime"
	"sync"
	"time"

	"tagdeck/internal/logging"
)

// Queue is the bounded thumbnail work queue: a FIFO of render jobs consumed
// by a fixed pool of workers, with whole-queue cancellation gated by a cutoff
// watermark. Jobs enqueued after the last CancelAll run in submission order.
type Queue struct {
	logger *logging.Logger
	nowFn  func() int64

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     []Job
	cutoff   int64
	workers  int
	started  bool
	shutdown bool

	wg sync.WaitGroup
}

func NewQueue(logger *logging.Logger) *Queue {
	if logger == nil {
		panic("render.NewQueue: logger must not be nil")
	}
	q := &Queue{
		logger: logger,
		nowFn:  func() int64 { return time.Now().UnixNano() },
	}
	q.cond = sync.NewCond(&q.mu)
	q.cutoff = q.nowFn()
	return q
}

// StartWorkers launches the worker pool. Zero or negative count sizes the
// pool to the available CPU parallelism. Repeat calls are no-ops.
func (q *Queue) StartWorkers(count int) {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	q.mu.Lock()
	if q.started || q.shutdown {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.workers = count
	q.mu.Unlock()

	q.logger.Debug("starting render workers", logging.Field("count", count))
	for i := 0; i < count; i++ {
		q.wg.Add(1)
		go q.workerLoop(i)
	}
}

// Now returns the queue's current timestamp, to be stamped on content jobs.
func (q *Queue) Now() int64 {
	return q.nowFn()
}

// Cutoff returns the live watermark. Render calls compare their own job
// timestamp against it immediately before committing output.
func (q *Queue) Cutoff() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cutoff
}

// ShouldCommit reports whether a result stamped with timestamp is still
// current. Results older than the watermark are discarded by their renderer.
func (q *Queue) ShouldCommit(timestamp int64) bool {
	return timestamp >= q.Cutoff()
}

// Submit enqueues a render job. Non-blocking; after Shutdown it is a no-op.
func (q *Queue) Submit(job Job) {
	if job.isTerminator() {
		panic("render.Queue.Submit: job render function must not be nil")
	}
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.cond.Signal()
}

// CancelAll atomically drops every pending job and advances the cutoff so
// in-flight renders discard their results. Clearing and advancing happen in
// one critical section: a job submitted concurrently either lands before the
// clear (dropped, and its timestamp predates the new cutoff) or after it
// (kept, and stamped at or past the cutoff).
func (q *Queue) CancelAll() {
	q.mu.Lock()
	dropped := 0
	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if job.isTerminator() {
			// Terminators survive cancellation so Shutdown still joins.
			kept = append(kept, job)
			continue
		}
		dropped++
	}
	q.jobs = kept
	q.cond.Broadcast()
	q.cutoff = q.nowFn()
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Debug("canceled pending render jobs", logging.Field("count", dropped))
	}
}

// Shutdown sends one terminator per worker and blocks until all workers have
// drained to their terminator and exited. Safe to call more than once.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.shutdown = true
	for i := 0; i < q.workers; i++ {
		q.jobs = append(q.jobs, Job{})
	}
	q.mu.Unlock()
	q.cond.Broadcast()

	q.wg.Wait()
	q.logger.Debug("render workers stopped")
}

// PendingJobs counts queued non-terminator jobs.
func (q *Queue) PendingJobs() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, job := range q.jobs {
		if !job.isTerminator() {
			count++
		}
	}
	return count
}

func (q *Queue) workerLoop(id int) {
	defer q.wg.Done()
	for {
		job, ok := q.pop()
		if !ok {
			q.logger.Debug("render worker exiting", logging.Field("worker", id))
			return
		}
		q.runJob(id, job)
	}
}

// pop blocks until a job is available. The false return means the worker
// consumed its terminator.
func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 {
		q.cond.Wait()
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if job.isTerminator() {
		return Job{}, false
	}
	return job, true
}

// runJob invokes the render function, keeping the worker loop alive through
// render panics. Panics during shutdown are expected teardown races and only
// logged at debug level; anything else is surfaced as an error.
func (q *Queue) runJob(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.mu.Lock()
			closing := q.shutdown
			q.mu.Unlock()
			if closing {
				q.logger.Debug("render call aborted during shutdown",
					logging.Field("worker", id),
					logging.Field("panic", r),
				)
				return
			}
			q.logger.Error("render call panicked",
				logging.Field("worker", id),
				logging.Field("path", job.Args.Path),
				logging.Field("panic", r),
			)
		}
	}()
	job.Render(job.Args)
}
