package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contest-portal/internal/dashboard"
	"contest-portal/internal/report"

	"github.com/go-chi/chi/v5"
)

// ManagerRows handles GET /manager/rows: the table body for the current
// search and sort, for in-page refreshes.
func (h *Handler) ManagerRows(w http.ResponseWriter, r *http.Request) {
	_, v := h.dashboard(r.Context(), r.URL.Query())
	if v.Err != nil {
		h.writeError(w, v.Err)
		return
	}
	var buf bytes.Buffer
	if err := h.render.Rows(&buf, v); err != nil {
		h.log.Error("render rows failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// ManagerEvents handles GET /manager/events. Whenever the dashboard poll
// sees the submission count change it streams a "rows" event with the table
// body and a "stats" event with the new totals.
func (h *Handler) ManagerEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.streams, cancel)
	defer stop()

	ctrl, _ := h.dashboard(ctx, r.URL.Query())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: %d\n\n", h.opts.PollInterval.Milliseconds())
	flusher.Flush()

	ctrl.Watch(ctx, h.opts.PollInterval, func(v dashboard.View) {
		var buf bytes.Buffer
		if err := h.render.Rows(&buf, v); err != nil {
			h.log.Error("render rows failed", slog.String("error", err.Error()))
			return
		}
		stats, err := json.Marshal(statsBody{
			Submissions:  v.Stats.Submissions,
			Participants: v.Stats.Participants,
		})
		if err != nil {
			h.log.Error("encode stats failed", slog.String("error", err.Error()))
			return
		}
		if err := writeEvent(w, "rows", buf.String()); err != nil {
			h.log.Debug("event stream closed", slog.String("error", err.Error()))
			return
		}
		if err := writeEvent(w, "stats", string(stats)); err != nil {
			h.log.Debug("event stream closed", slog.String("error", err.Error()))
			return
		}
		flusher.Flush()
	})
}

type statsBody struct {
	Submissions  int `json:"submissions"`
	Participants int `json:"participants"`
}

// writeEvent writes one server-sent event; multi-line data is split across
// data fields.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// ManagerReport handles GET /manager/report.pdf.
func (h *Handler) ManagerReport(w http.ResponseWriter, r *http.Request) {
	_, v := h.dashboard(r.Context(), r.URL.Query())
	if v.Err != nil {
		h.writeError(w, v.Err)
		return
	}

	var buf bytes.Buffer
	if err := report.WritePDF(&buf, v, report.Options{GeneratedAt: time.Now()}); err != nil {
		h.log.Error("report failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="submissions.pdf"`)
	w.Write(buf.Bytes())
}

// ManagerDelete handles POST /manager/submissions/{id}/delete from the
// dashboard table and returns to the dashboard.
func (h *Handler) ManagerDelete(w http.ResponseWriter, r *http.Request) {
	ctrl := dashboard.NewController(h.svc, h.log)
	if _, err := ctrl.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.log.Error("delete failed", slog.String("error", err.Error()))
		http.Error(w, "could not delete submission", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/manager", http.StatusSeeOther)
}

// ManagerClear handles POST /manager/submissions/clear: removes every
// submission and returns to the dashboard.
func (h *Handler) ManagerClear(w http.ResponseWriter, r *http.Request) {
	ctrl := dashboard.NewController(h.svc, h.log)
	_, n, err := ctrl.Clear(r.Context())
	if err != nil {
		h.log.Error("clear failed", slog.String("error", err.Error()))
		http.Error(w, "could not clear submissions", http.StatusInternalServerError)
		return
	}
	h.log.Info("dashboard cleared", slog.Int("removed", n))
	http.Redirect(w, r, "/manager", http.StatusSeeOther)
}
