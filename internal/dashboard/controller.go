package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"contest-portal/internal/contest"
)

// DefaultPollInterval is the background refresh period.
const DefaultPollInterval = 30 * time.Second

// Store is the read/delete surface of the Submission Store.
type Store interface {
	ListSubmissions(ctx context.Context) ([]contest.Submission, error)
	CountSubmissions(ctx context.Context) (int, error)
	DeleteSubmission(ctx context.Context, id string) error
	ClearSubmissions(ctx context.Context) (int, error)
}

// Stats summarises the full listing regardless of the active filter.
type Stats struct {
	Submissions  int
	Participants int
}

// View is the current projection of the listing.
type View struct {
	Rows      []Row
	Term      string
	Column    Column
	Direction Direction
	Stats     Stats
	// Err is set when the last load failed; the table shows a retry
	// placeholder instead of rows.
	Err      error
	LoadedAt time.Time
}

// NextDirection is the direction a click on col should request.
func (v View) NextDirection(col Column) Direction {
	if v.Column == col {
		return v.Direction.flip()
	}
	return Asc
}

// Controller projects the Submission Store into a searchable, sortable table.
// One Controller serves one mounted dashboard view.
type Controller struct {
	store Store
	log   *slog.Logger
	now   func() time.Time

	mu       sync.Mutex
	all      []contest.Submission
	term     string
	column   Column
	dir      Direction
	err      error
	loadedAt time.Time
	rendered int
}

// NewController returns a Controller with no listing loaded.
func NewController(store Store, log *slog.Logger) *Controller {
	return &Controller{store: store, log: log, now: time.Now, dir: Asc}
}

// Load fetches the full listing. On failure the previous rows are dropped
// and the view carries the error.
func (c *Controller) Load(ctx context.Context) (View, error) {
	list, err := c.store.ListSubmissions(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Warn("dashboard load failed", slog.String("error", err.Error()))
		c.all = nil
		c.err = err
		return c.viewLocked(), err
	}
	c.replaceLocked(list)
	return c.viewLocked(), nil
}

// Search filters by term over title and display name.
func (c *Controller) Search(term string) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = term
	return c.viewLocked()
}

// Sort toggles the direction on repeated clicks of the same column and
// resets to ascending on a new column.
func (c *Controller) Sort(col Column) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col == c.column {
		c.dir = c.dir.flip()
	} else {
		c.column = col
		c.dir = Asc
	}
	return c.viewLocked()
}

// SortBy sets column and direction explicitly.
func (c *Controller) SortBy(col Column, dir Direction) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.column = col
	c.dir = dir
	return c.viewLocked()
}

// View returns the current projection.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Refresh re-fetches only the submission count and reloads the listing when
// it differs from the last render. Edits that keep the count unchanged are
// not detected. Errors are logged and reported as no change; the rows on
// screen are kept.
func (c *Controller) Refresh(ctx context.Context) (View, bool) {
	n, err := c.store.CountSubmissions(ctx)
	if err != nil {
		c.log.Warn("dashboard poll failed", slog.String("error", err.Error()))
		return c.View(), false
	}

	c.mu.Lock()
	same := c.err == nil && n == c.rendered
	c.mu.Unlock()
	if same {
		return c.View(), false
	}

	list, err := c.store.ListSubmissions(ctx)
	if err != nil {
		c.log.Warn("dashboard poll reload failed", slog.String("error", err.Error()))
		return c.View(), false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(list)
	return c.viewLocked(), true
}

// Watch calls Refresh every interval until ctx is done, passing changed
// views to onChange.
func (c *Controller) Watch(ctx context.Context, interval time.Duration, onChange func(View)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if v, changed := c.Refresh(ctx); changed {
				onChange(v)
			}
		}
	}
}

// Delete removes a submission and reloads. Deleting an id that no longer
// exists succeeds.
func (c *Controller) Delete(ctx context.Context, id string) (View, error) {
	err := c.store.DeleteSubmission(ctx, id)
	if err != nil && !errors.Is(err, contest.ErrNotFound) {
		return c.View(), err
	}
	return c.Load(ctx)
}

// Clear removes every submission and reloads.
func (c *Controller) Clear(ctx context.Context) (View, int, error) {
	n, err := c.store.ClearSubmissions(ctx)
	if err != nil {
		return c.View(), 0, err
	}
	v, err := c.Load(ctx)
	return v, n, err
}

func (c *Controller) replaceLocked(list []contest.Submission) {
	c.all = list
	c.err = nil
	c.loadedAt = c.now()
	c.rendered = len(list)
}

func (c *Controller) viewLocked() View {
	v := View{
		Term:      c.term,
		Column:    c.column,
		Direction: c.dir,
		Err:       c.err,
		LoadedAt:  c.loadedAt,
	}
	rows := make([]Row, 0, len(c.all))
	for _, s := range c.all {
		v.Stats.Submissions++
		v.Stats.Participants += s.TeamCount
		if r := newRow(s); r.Matches(c.term) {
			rows = append(rows, r)
		}
	}
	sortRows(rows, c.column, c.dir)
	v.Rows = rows
	return v
}
