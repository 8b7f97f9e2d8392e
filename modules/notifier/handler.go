package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/dispatch"
)

const maxRequestBody = 1 << 20 // 1 MiB

// QueueStats is the slice of the dispatch queue the HTTP surface reads.
type QueueStats interface {
	Stats(ctx context.Context) (dispatch.Stats, error)
}

// Handler serves the notification HTTP API.
type Handler struct {
	service *Service
	stats   QueueStats
}

// NewHandler creates the HTTP handler set. stats may be nil, in which case
// the queue stats endpoint is not mounted.
func NewHandler(service *Service, stats QueueStats) *Handler {
	return &Handler{service: service, stats: stats}
}

type acceptedResponse struct {
	ID     uuid.UUID `json:"id"`
	Status Status    `json:"status"`
}

// createNotification handles POST /notifications. A request matching an
// already-accepted notification returns the original record's id with 202,
// same as a fresh accept.
func (h *Handler) createNotification(w http.ResponseWriter, r *http.Request) {
	var params CreateParams
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&params); err != nil {
		errs := NewValidationError()
		errs.Add("body", "invalid JSON payload")
		writeError(w, errs)
		return
	}

	n, err := h.service.CreateNotification(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: n.ID, Status: n.Status})
}

func (h *Handler) getNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ErrNotFound)
		return
	}

	n, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ErrNotFound)
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) listByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		errs := NewValidationError()
		errs.Add("userID", "must be a valid UUID")
		writeError(w, errs)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	list, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// retryNotification handles POST /notifications/{id}/retry, the manual
// escape hatch for failed notifications.
func (h *Handler) retryNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, ErrNotFound)
		return
	}

	n, err := h.service.Retry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: n.ID, Status: n.Status})
}

func (h *Handler) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
