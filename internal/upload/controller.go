package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"contest-portal/internal/contest"
)

var (
	// ErrAttemptInFlight is returned when a submit or selection change arrives
	// while an attempt is between Validating and Recording.
	ErrAttemptInFlight = errors.New("an upload is already in progress")
	// ErrClosed is returned by a controller whose view has been unmounted.
	ErrClosed = errors.New("upload controller closed")
)

// Store is the part of the Submission Store the controller drives.
type Store interface {
	Upload(ctx context.Context, f contest.File, onProgress contest.ProgressFunc) (contest.Location, error)
	RecordSubmission(ctx context.Context, in contest.NewSubmission) (*contest.Submission, error)
}

// SelectedFile is the file held by a form. Content is rewound before every
// attempt so a failed transfer can be retried without re-picking the file.
type SelectedFile struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.ReadSeeker
}

// Form holds the text fields of the submit view.
type Form struct {
	Title     string
	TeamCount int
	Identity  contest.Identity
}

// Controller drives one submit form from file selection to a recorded
// submission. Progress observations are published on Events.
type Controller struct {
	store    Store
	log      *slog.Logger
	maxTeam  int
	maxBytes int64
	now      func() time.Time
	observe  func(Progress)

	mu          sync.Mutex
	phase       Phase
	file        *SelectedFile
	draft       Form
	last        Progress
	lastPercent int
	events      chan Progress
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxTeamSize bounds the team count (0 means unbounded).
func WithMaxTeamSize(n int) Option { return func(c *Controller) { c.maxTeam = n } }

// WithMaxBytes rejects files larger than n bytes at selection (0 means unbounded).
func WithMaxBytes(n int64) Option { return func(c *Controller) { c.maxBytes = n } }

// WithClock replaces time.Now for progress math.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.events = make(chan Progress, n)
		}
	}
}

// WithObserver registers fn to receive every progress observation
// synchronously. fn must not block or call back into the controller.
func WithObserver(fn func(Progress)) Option { return func(c *Controller) { c.observe = fn } }

// NewController returns an Idle controller bound to store.
func NewController(store Store, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		log:    log,
		now:    time.Now,
		events: make(chan Progress, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events streams progress observations. When the consumer falls behind the
// oldest buffered observation is dropped; the transfer is never blocked. The
// channel is closed by Close.
func (c *Controller) Events() <-chan Progress { return c.events }

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns the most recent observation.
func (c *Controller) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// File returns the selected file, or nil.
func (c *Controller) File() *SelectedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file
}

// Draft returns the form fields as they should be re-rendered: the last
// submitted values after a failure, cleared after a success.
func (c *Controller) Draft() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetIdentity seeds the submitter identity carried by the form.
func (c *Controller) SetIdentity(id contest.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Identity = id
}

// SelectFile replaces the selected file. Non-video files and files over the
// size bound are rejected with a *contest.ValidationError and no state change.
func (c *Controller) SelectFile(f SelectedFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.phase.InFlight() {
		return ErrAttemptInFlight
	}
	if !contest.IsVideo(f.ContentType) {
		return &contest.ValidationError{Field: "file", Reason: "must be a video"}
	}
	if c.maxBytes > 0 && f.Size > c.maxBytes {
		return &contest.ValidationError{
			Field:  "file",
			Reason: "must be at most " + contest.FormatFileSize(c.maxBytes),
		}
	}
	if f.Content == nil {
		return &contest.ValidationError{Field: "file", Reason: "is empty"}
	}

	c.file = &f
	c.reset(FileSelected)
	return nil
}

// RemoveFile clears the selection.
func (c *Controller) RemoveFile() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.InFlight() {
		return ErrAttemptInFlight
	}
	c.file = nil
	c.reset(Idle)
	return nil
}

// Submit runs one attempt: validate, upload, record. Validation failures
// leave the phase unchanged and touch nothing remote. A transfer failure
// returns the form to FileSelected with the file kept; a record failure
// returns it to Idle and the uploaded object is left orphaned. On success
// the selection and form are cleared.
func (c *Controller) Submit(ctx context.Context, form Form) (*contest.Submission, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.phase.InFlight() {
		c.mu.Unlock()
		return nil, ErrAttemptInFlight
	}
	prev := c.phase
	file := c.file
	if form.Identity == (contest.Identity{}) {
		form.Identity = c.draft.Identity
	}
	c.draft = form
	c.setPhase(Validating)
	c.mu.Unlock()

	if err := c.validate(&form, file); err != nil {
		c.mu.Lock()
		c.reset(prev)
		c.mu.Unlock()
		return nil, err
	}

	loc, err := c.transfer(ctx, file)
	if err != nil {
		c.log.Warn("upload attempt failed",
			slog.String("file", file.Name),
			slog.String("error", err.Error()))
		c.mu.Lock()
		c.setPhase(Failed)
		c.settle(FileSelected)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.setPhase(Recording)
	c.mu.Unlock()

	sub, err := c.store.RecordSubmission(ctx, contest.NewSubmission{
		Title:     form.Title,
		TeamCount: form.TeamCount,
		Location:  loc,
		Identity:  form.Identity,
	})
	if err != nil {
		c.log.Error("submission not recorded; uploaded video is orphaned",
			slog.String("key", loc.Key),
			slog.String("error", err.Error()))
		c.mu.Lock()
		c.file = nil
		c.setPhase(Failed)
		c.settle(Idle)
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.file = nil
	c.draft = Form{Identity: form.Identity}
	c.setPhase(Done)
	c.settle(Idle)
	c.mu.Unlock()
	return sub, nil
}

// Close tears the controller down. Later calls fail with ErrClosed and the
// Events channel is closed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

func (c *Controller) validate(form *Form, file *SelectedFile) error {
	title, err := contest.ValidateTitle(form.Title)
	if err != nil {
		return err
	}
	form.Title = title
	if err := contest.ValidateTeamCount(form.TeamCount, c.maxTeam); err != nil {
		return err
	}
	if file == nil {
		return &contest.ValidationError{Field: "file", Reason: "is required"}
	}
	return nil
}

func (c *Controller) transfer(ctx context.Context, file *SelectedFile) (contest.Location, error) {
	if _, err := file.Content.Seek(0, io.SeekStart); err != nil {
		return contest.Location{}, &contest.TransferError{Err: fmt.Errorf("rewind %s: %w", file.Name, err)}
	}

	start := c.now()
	c.mu.Lock()
	c.lastPercent = 0
	c.last = Progress{Phase: Uploading, BytesTotal: file.Size, Started: start}
	c.setPhase(Uploading)
	c.mu.Unlock()

	loc, err := c.store.Upload(ctx, contest.File{
		Name:        file.Name,
		Size:        file.Size,
		ContentType: file.ContentType,
		Content:     file.Content,
	}, func(sent, total int64) {
		c.progress(sent, total, start)
	})
	if err != nil {
		var te *contest.TransferError
		if !errors.As(err, &te) {
			err = &contest.TransferError{Err: err}
		}
		return contest.Location{}, err
	}
	return loc, nil
}

func (c *Controller) progress(sent, total int64, start time.Time) {
	p := Measure(sent, total, start, c.now())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Uploading {
		return
	}
	if p.Percent < c.lastPercent {
		p.Percent = c.lastPercent
	}
	c.lastPercent = p.Percent
	c.emit(p)
}

// setPhase moves an attempt forward; c.mu must be held.
func (c *Controller) setPhase(ph Phase) {
	c.phase = ph
	p := c.last
	p.Phase = ph
	switch ph {
	case Validating:
		p = Progress{Phase: ph}
	case Done:
		p.Percent = 100
		p.BytesSent = p.BytesTotal
		p.ETA = 0
	}
	c.emit(p)
}

// reset moves the form to a resting phase after a user action; c.mu must be held.
func (c *Controller) reset(ph Phase) {
	c.phase = ph
	c.emit(Progress{Phase: ph})
}

// settle ends an attempt in a resting phase. The Done or Failed observation
// stays as the snapshot; c.mu must be held.
func (c *Controller) settle(ph Phase) {
	c.phase = ph
}

// emit publishes p; c.mu must be held.
func (c *Controller) emit(p Progress) {
	c.last = p
	if c.observe != nil {
		c.observe(p)
	}
	if c.closed {
		return
	}
	select {
	case c.events <- p:
		return
	default:
	}
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- p:
	default:
	}
}
