package web

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"contest-portal/internal/contest"
	"contest-portal/internal/dashboard"
	"contest-portal/internal/platform/metrics"
	"contest-portal/internal/shell"
	"contest-portal/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Options configures the web handler.
type Options struct {
	MaxUploadBytes int64
	PollInterval   time.Duration
	Rules          template.HTML
	// VideoDir, when set, is served under /videos/.
	VideoDir string
}

// Handler serves the portal's pages and JSON API.
type Handler struct {
	svc     *contest.Service
	tracker *upload.Tracker
	render  *Renderer
	log     *slog.Logger
	metrics *metrics.Metrics
	opts    Options
	newID   func() string

	streams     context.Context
	stopStreams context.CancelFunc
}

// NewHandler returns a Handler. Metrics may be nil.
func NewHandler(svc *contest.Service, tracker *upload.Tracker, render *Renderer, log *slog.Logger, m *metrics.Metrics, opts Options) *Handler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = dashboard.DefaultPollInterval
	}
	streams, stop := context.WithCancel(context.Background())
	return &Handler{
		svc:         svc,
		tracker:     tracker,
		render:      render,
		log:         log,
		metrics:     m,
		opts:        opts,
		newID:       uuid.NewString,
		streams:     streams,
		stopStreams: stop,
	}
}

// CloseStreams ends every open /manager/events stream. Streams opened
// afterwards end immediately.
func (h *Handler) CloseStreams() { h.stopStreams() }

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/submissions", h.ListSubmissions)
		r.Get("/submissions/{id}", h.GetSubmission)
		r.Delete("/submissions/{id}", h.DeleteSubmission)
		r.Post("/participants", h.SaveParticipant)
		r.Get("/uploads/{attempt}", h.UploadProgress)
		r.Delete("/uploads/{attempt}", h.ReleaseUpload)
	})

	r.Post("/submit", h.Submit)

	r.Get("/manager/rows", h.ManagerRows)
	r.Get("/manager/events", h.ManagerEvents)
	r.Get("/manager/report.pdf", h.ManagerReport)
	r.Post("/manager/submissions/clear", h.ManagerClear)
	r.Post("/manager/submissions/{id}/delete", h.ManagerDelete)

	if h.opts.VideoDir != "" {
		r.Handle("/videos/*", http.StripPrefix("/videos/", http.FileServer(http.Dir(h.opts.VideoDir))))
	}

	r.Get("/", h.Page)
	r.Get("/submit", h.Page)
	r.Get("/manager", h.Page)
	r.Get("/*", h.Page)
}

// Page handles GET for every view path. Unknown paths render the landing view.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	doc := shell.NewDocument(h.render.Layout, h.log)
	defer doc.Close()

	router := shell.NewRouter(shell.NewRequestHistory(r), doc)
	router.AddRoute(shell.RootPath, h.landingView)
	router.AddRoute("/submit", h.submitView)
	router.AddRoute("/manager", h.managerView)

	if err := router.HandleRoute(r.Context()); err != nil {
		h.log.Error("route failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.writeDocument(w, http.StatusOK, doc)
}

func (h *Handler) landingView(_ context.Context, loc shell.Location) (shell.View, error) {
	return &page{
		r:     h.render,
		name:  "landing",
		title: "Video contest",
		data: landingData{
			Heading:   "Video contest",
			Rules:     h.opts.Rules,
			SubmitURL: withQuery("/submit", identityQuery(identityFrom(loc.Query))),
		},
	}, nil
}

func (h *Handler) submitView(_ context.Context, loc shell.Location) (shell.View, error) {
	return h.submitPage(submitData{
		Attempt:  h.newID(),
		Identity: identityFrom(loc.Query),
	}), nil
}

func (h *Handler) submitPage(d submitData) *page {
	d.MaxTeam = h.svc.MaxTeamSize()
	d.MaxBytes = h.opts.MaxUploadBytes
	return &page{r: h.render, name: "submit", title: "Submit a video", data: d}
}

func (h *Handler) managerView(ctx context.Context, loc shell.Location) (shell.View, error) {
	_, v := h.dashboard(ctx, loc.Query)
	q := viewQuery(v)
	return &page{
		r:     h.render,
		name:  "manager",
		title: "Manager",
		data: managerData{
			View:      v,
			RetryURL:  withQuery("/manager", q),
			ReportURL: withQuery("/manager/report.pdf", q),
		},
	}, nil
}

// dashboard mounts a fresh dashboard controller with the search and sort
// carried by q.
func (h *Handler) dashboard(ctx context.Context, q url.Values) (*dashboard.Controller, dashboard.View) {
	ctrl := dashboard.NewController(h.svc, h.log)
	ctrl.Load(ctx)
	if col := dashboard.ParseColumn(q.Get("sort")); col != dashboard.ColumnNone {
		ctrl.SortBy(col, dashboard.ParseDirection(q.Get("dir")))
	}
	return ctrl, ctrl.Search(q.Get("q"))
}

func (h *Handler) writeDocument(w http.ResponseWriter, status int, doc *shell.Document) {
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		h.log.Error("render failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// writeView renders v as a full page outside of routing.
func (h *Handler) writeView(w http.ResponseWriter, status int, v shell.View) {
	doc := shell.NewDocument(h.render.Layout, h.log)
	defer doc.Close()
	doc.Mount(v)
	h.writeDocument(w, status, doc)
}

func identityFrom(q url.Values) contest.Identity {
	return contest.Identity{
		FullName:   q.Get("full_name"),
		Handle:     q.Get("username"),
		ExternalID: q.Get("id"),
	}
}

func identityQuery(id contest.Identity) url.Values {
	q := url.Values{}
	if id.FullName != "" {
		q.Set("full_name", id.FullName)
	}
	if id.Handle != "" {
		q.Set("username", id.Handle)
	}
	if id.ExternalID != "" {
		q.Set("id", id.ExternalID)
	}
	return q
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var (
		ve  *contest.ValidationError
		te  *contest.TransferError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &te):
		return http.StatusBadGateway
	case errors.Is(err, contest.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, upload.ErrAttemptInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err. Store failures are not detailed.
func userMessage(err error) string {
	var (
		ve *contest.ValidationError
		te *contest.TransferError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &te):
		return "The upload failed. Your file is still selected, please try again."
	case errors.Is(err, upload.ErrAttemptInFlight):
		return "This form is already being submitted."
	case errors.Is(err, contest.ErrNotFound):
		return "not found"
	default:
		return "Something went wrong while saving. Please try again."
	}
}
