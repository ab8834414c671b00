package web

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"contest-portal/internal/contest"
	"contest-portal/internal/upload"
)

const (
	// multipartMemory is kept in memory; larger parts spill to temp files.
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// Submit handles POST /submit (multipart/form-data). Fields: attempt, title,
// team_count, video, and the optional full_name, username and id.
// Clients sending Accept: application/json get a JSON result; others get the
// submit page re-rendered.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.respondSubmit(w, r, "", upload.Form{}, &contest.ValidationError{
				Field:  "file",
				Reason: "must be at most " + contest.FormatFileSize(h.opts.MaxUploadBytes),
			})
			return
		}
		h.log.Debug("invalid submit form", slog.String("error", err.Error()))
		h.respondSubmit(w, r, "", upload.Form{}, &contest.ValidationError{Field: "form", Reason: "could not be read"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	attempt := strings.TrimSpace(r.FormValue("attempt"))
	if attempt == "" {
		attempt = h.newID()
	}
	team, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("team_count")))
	form := upload.Form{
		Title:     r.FormValue("title"),
		TeamCount: team,
		Identity:  identityFrom(r.MultipartForm.Value),
	}

	ctrl := h.tracker.Controller(attempt, func() *upload.Controller {
		return upload.NewController(h.svc, h.log,
			upload.WithMaxTeamSize(h.svc.MaxTeamSize()),
			upload.WithMaxBytes(h.opts.MaxUploadBytes))
	})
	ctrl.SetIdentity(form.Identity)

	file, hdr, err := r.FormFile("video")
	switch {
	case err == nil:
		defer file.Close()
		err = ctrl.SelectFile(upload.SelectedFile{
			Name:        hdr.Filename,
			Size:        hdr.Size,
			ContentType: partContentType(hdr.Header.Get("Content-Type"), hdr.Filename),
			Content:     file,
		})
	case errors.Is(err, http.ErrMissingFile):
		err = ctrl.RemoveFile()
	}
	if err != nil {
		h.respondSubmit(w, r, attempt, form, err)
		return
	}

	sub, err := ctrl.Submit(r.Context(), form)
	if err != nil {
		var se *contest.StoreError
		if errors.As(err, &se) && se.Op == "record" {
			h.metrics.IncOrphanedObjects()
		}
		h.respondSubmit(w, r, attempt, form, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, struct {
			Success bool                `json:"success"`
			Attempt string              `json:"attempt"`
			Data    *contest.Submission `json:"data"`
		}{true, attempt, sub})
		return
	}
	h.writeView(w, http.StatusCreated, h.submitPage(submitData{
		Attempt:  h.newID(),
		Identity: form.Identity,
		Success:  sub,
	}))
}

func (h *Handler) respondSubmit(w http.ResponseWriter, r *http.Request, attempt string, form upload.Form, err error) {
	if wantsJSON(r) {
		h.writeError(w, err)
		return
	}

	d := submitData{Attempt: attempt, Identity: form.Identity, Draft: form}
	if d.Attempt == "" {
		d.Attempt = h.newID()
	}
	fe := &fieldError{Message: userMessage(err)}
	var ve *contest.ValidationError
	if errors.As(err, &ve) {
		fe.Field = ve.Field
	}
	d.Error = fe

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("submission failed", slog.String("attempt", attempt), slog.String("error", err.Error()))
	}
	h.writeView(w, status, h.submitPage(d))
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// partContentType falls back to the file extension when the client sent no
// useful type for the part.
func partContentType(declared, filename string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		mt, _, _ = mime.ParseMediaType(byExt)
		return mt
	}
	return declared
}
