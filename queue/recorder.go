package queue

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
)

const enqueueTimeout = 3 * time.Second

// LedgerRecorder hands payment events to the worker through the job queue.
type LedgerRecorder struct {
	queue *Queue
}

func NewLedgerRecorder(q *Queue) *LedgerRecorder {
	return &LedgerRecorder{queue: q}
}

// Record enqueues event. Failures are logged; the user flow never waits on the
// ledger beyond a short enqueue timeout.
func (r *LedgerRecorder) Record(ctx context.Context, event models.PaymentEvent) {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	if err := r.queue.Enqueue(ctx, JobTypeRecordPaymentEvent, event); err != nil {
		log.WithFields(log.Fields{
			"event_id": event.ID,
			"kind":     event.Kind,
			"user_id":  event.UserID,
		}).Printf("Error enqueueing payment event: %v", err)
	}
}
