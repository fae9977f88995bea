package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"megatrade-web/metrics"
	"megatrade-web/models"
	"megatrade-web/queue"
)

const (
	MinConcurrency = 2
	MaxConcurrency = 8

	// PromoteSchedule is how often due retry jobs move back to the main queue.
	PromoteSchedule = "@every 5s"

	dequeueTimeout = 5 * time.Second
)

// JobSource is the queue the worker drains.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, err error) error
	ProcessDelayedJobs(ctx context.Context) error
}

// EventStore persists ledger entries.
type EventStore interface {
	SavePaymentEvent(ctx context.Context, event *models.PaymentEvent) error
}

// Worker writes queued payment events to the ledger.
type Worker struct {
	queue    JobSource
	store    EventStore
	cron     *cron.Cron
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
}

func NewWorker(q JobSource, store EventStore) *Worker {
	return &Worker{
		queue:    q,
		store:    store,
		shutdown: make(chan struct{}),
	}
}

// ClampConcurrency keeps n within the supported pool size.
func ClampConcurrency(n int) int {
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// Start launches the worker goroutines and the delayed job promoter.
func (w *Worker) Start(concurrency int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(PromoteSchedule, w.promoteDelayed); err != nil {
		return fmt.Errorf("failed to schedule delayed job promotion: %w", err)
	}
	c.Start()
	w.cron = c

	concurrency = ClampConcurrency(concurrency)
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.isRunning = true

	log.Printf("Started %d worker goroutines", concurrency)
	return nil
}

// Stop signals the goroutines to exit and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	log.Println("Stopping worker...")
	<-w.cron.Stop().Done()
	close(w.shutdown)
	w.wg.Wait()
}

func (w *Worker) promoteDelayed() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
		log.Printf("Error promoting delayed jobs: %v", err)
	}
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	log.Debugf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Debugf("Worker %d shutting down", workerID)
			return
		default:
		}

		processed, err := w.RunOnce(context.Background())
		if err != nil {
			log.Printf("Worker %d: %v", workerID, err)
			time.Sleep(time.Second)
			continue
		}
		if !processed {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// RunOnce takes at most one job off the queue and handles it. It reports
// whether a job was found.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	dequeueCtx, cancel := context.WithTimeout(ctx, dequeueTimeout+5*time.Second)
	job, err := w.queue.Dequeue(dequeueCtx, dequeueTimeout)
	cancel()
	if err != nil {
		return false, fmt.Errorf("error dequeuing job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	logger := log.WithFields(log.Fields{"job_id": job.ID, "job_type": job.Type, "retry": job.RetryCount})

	if jobErr := w.processJob(ctx, job); jobErr != nil {
		logger.Printf("Error processing job: %v", jobErr)
		metrics.ObserveJob(string(job.Type), "failed")

		failCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := w.queue.FailJob(failCtx, job, jobErr); err != nil {
			return true, fmt.Errorf("error marking job %s as failed: %w", job.ID, err)
		}
		return true, nil
	}

	metrics.ObserveJob(string(job.Type), "completed")

	completeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.queue.CompleteJob(completeCtx, job); err != nil {
		return true, fmt.Errorf("error marking job %s as complete: %w", job.ID, err)
	}
	return true, nil
}

var errMalformedEvent = errors.New("malformed payment event payload")

func (w *Worker) processJob(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRecordPaymentEvent:
		return w.recordPaymentEvent(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) recordPaymentEvent(ctx context.Context, job *queue.Job) error {
	var event models.PaymentEvent
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.ID == "" || event.Kind == "" {
		return errMalformedEvent
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = job.CreatedAt
	}
	return w.store.SavePaymentEvent(ctx, &event)
}
