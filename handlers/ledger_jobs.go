package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/queue"
	"megatrade-web/utils"
)

// FailedJobQueue exposes ledger jobs that ran out of retries.
type FailedJobQueue interface {
	FailedJobs(ctx context.Context, limit int) ([]queue.Job, error)
	RetryJob(ctx context.Context, jobID string) error
}

// LedgerJobsHandler lets admins inspect and requeue ledger writes that failed.
type LedgerJobsHandler struct {
	jobs FailedJobQueue
}

func NewLedgerJobsHandler(jobs FailedJobQueue) *LedgerJobsHandler {
	return &LedgerJobsHandler{jobs: jobs}
}

func (h *LedgerJobsHandler) FailedJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := h.jobs.FailedJobs(r.Context(), limit)
	if err != nil {
		log.Printf("Error listing failed ledger jobs: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to list failed jobs")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Failed jobs retrieved",
		Data:    jobs,
	})
}

// Retry puts a failed job back on the queue with a fresh retry budget.
func (h *LedgerJobsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	if err := h.jobs.RetryJob(r.Context(), jobID); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Job not found")
			return
		}
		log.WithField("job_id", jobID).Printf("Error retrying ledger job: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to retry job")
		return
	}

	log.WithField("admin_id", identityFrom(r).AdminID).Printf("Requeued ledger job %s", jobID)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Job requeued",
		Data:    map[string]string{"id": jobID},
	})
}
