package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sungwon/mailjobs/internal/dispatch"
	"github.com/sungwon/mailjobs/internal/job"
	"github.com/sungwon/mailjobs/internal/logger"
)

// statusNotFound is reported for ids the store does not know.
const statusNotFound = "NOT_FOUND"

// statusResponse is the JSON response for a job status query.
type statusResponse struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// toStatusResponse exposes the stored result bytes unchanged so repeated
// reads of a terminal job are identical.
func toStatusResponse(j *job.Job) statusResponse {
	resp := statusResponse{
		TaskID: j.ID,
		Status: string(j.Status),
	}
	if j.Status.Terminal() {
		resp.Result = j.Result
	}
	if j.Status == job.StatusFailed {
		resp.Error = j.Error
	}
	return resp
}

// EmailStatusHandler handles GET /api/v1/email-status/{task_id}/.
func EmailStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "task_id")

		j, err := svc.GetStatus(r.Context(), id)
		if err != nil {
			if errors.Is(err, dispatch.ErrNotFound) {
				respondJSON(w, http.StatusNotFound, statusResponse{
					TaskID: id,
					Status: statusNotFound,
					Error:  "job not found",
				})
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("job_id", id).Msg("failed to read job status")
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		respondJSON(w, http.StatusOK, toStatusResponse(j))
	}
}
