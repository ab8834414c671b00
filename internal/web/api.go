package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"contest-portal/internal/contest"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: userMessage(err)}
	var ve *contest.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeJSON(w, status, body)
}

// ListSubmissions handles GET /api/submissions.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSubmissions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []contest.Submission{}
	}
	writeJSON(w, http.StatusOK, struct {
		Data  []contest.Submission `json:"data"`
		Count int                  `json:"count"`
	}{list, len(list)})
}

// GetSubmission handles GET /api/submissions/{id}.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// DeleteSubmission handles DELETE /api/submissions/{id}. Deleting an id that
// does not exist succeeds.
func (h *Handler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.svc.DeleteSubmission(r.Context(), id)
	if err != nil && !errors.Is(err, contest.ErrNotFound) {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveParticipant handles POST /api/participants.
// Body: { "tg_id": "42", "full_name": "Jane Doe", "username": "jdoe" }.
func (h *Handler) SaveParticipant(w http.ResponseWriter, r *http.Request) {
	var in contest.Identity
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
		h.log.Debug("invalid participant body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if in.ExternalID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Missing required field: tg_id", Field: "tg_id"})
		return
	}

	p, created, err := h.svc.SaveParticipant(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	action := "updated"
	if created {
		action = "created"
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                 `json:"success"`
		Message string               `json:"message"`
		Action  string               `json:"action"`
		Data    *contest.Participant `json:"data"`
	}{true, "User " + action + " successfully", action, p})
}

type progressBody struct {
	Phase      string  `json:"phase"`
	Percent    int     `json:"percent"`
	BytesSent  int64   `json:"bytes_sent"`
	BytesTotal int64   `json:"bytes_total"`
	SpeedBPS   float64 `json:"speed_bps"`
	ETASeconds int64   `json:"eta_seconds"`
}

// UploadProgress handles GET /api/uploads/{attempt}.
func (h *Handler) UploadProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := h.tracker.Snapshot(chi.URLParam(r, "attempt"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown upload attempt"})
		return
	}
	writeJSON(w, http.StatusOK, progressBody{
		Phase:      p.Phase.String(),
		Percent:    p.Percent,
		BytesSent:  p.BytesSent,
		BytesTotal: p.BytesTotal,
		SpeedBPS:   p.Speed,
		ETASeconds: p.ETASeconds(),
	})
}

// ReleaseUpload handles DELETE /api/uploads/{attempt}. The submit page calls
// it once it has shown the result of an attempt.
func (h *Handler) ReleaseUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Release(chi.URLParam(r, "attempt")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
