package contest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"contest-portal/internal/platform/metrics"

	"github.com/google/uuid"
)

// Notifier relays a freshly recorded submission to an external system.
type Notifier interface {
	Notify(ctx context.Context, s Submission) error
}

// Service is the Submission Store: it uploads video bytes to an ObjectStore,
// records metadata rows in a Repository and relays new rows to a Notifier.
type Service struct {
	repo     Repository
	objects  ObjectStore
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
	maxTeam  int
	now      func() time.Time
	newID    func() string

	relays sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the relay used after each successful record.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithMaxTeamSize bounds the team count accepted by RecordSubmission.
func WithMaxTeamSize(n int) Option { return func(s *Service) { s.maxTeam = n } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a Service backed by repo and objects.
func NewService(repo Repository, objects ObjectStore, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		objects: objects,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTeamSize returns the configured team size bound (0 means unbounded).
func (s *Service) MaxTeamSize() int { return s.maxTeam }

// Upload streams f to object storage under a fresh key, calling onProgress as
// bytes are consumed. Failures are returned as *TransferError.
func (s *Service) Upload(ctx context.Context, f File, onProgress ProgressFunc) (Location, error) {
	key := s.newID() + objectExt(f.Name)
	if onProgress != nil {
		onProgress(0, f.Size)
	}
	pr := &progressReader{r: f.Content, total: f.Size, fn: onProgress}

	url, n, err := s.objects.Put(ctx, key, pr, f.ContentType)
	s.metrics.AddUploadBytes(n)
	if err != nil {
		s.metrics.IncUploadFailures()
		s.log.Warn("video upload failed",
			slog.String("key", key),
			slog.Int64("bytes_sent", n),
			slog.String("error", err.Error()))
		// Partially written objects are left to the object store.
		return Location{}, &TransferError{Err: err}
	}

	s.log.Debug("video uploaded", slog.String("key", key), slog.Int64("bytes", n))
	return Location{Key: key, URL: url}, nil
}

// RecordSubmission validates in and writes a metadata row referencing the
// uploaded object. The new row is relayed to the notifier in the background;
// relay failures never affect the result.
func (s *Service) RecordSubmission(ctx context.Context, in NewSubmission) (*Submission, error) {
	if err := in.Validate(s.maxTeam); err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:        s.newID(),
		Title:     in.Title,
		TeamCount: in.TeamCount,
		VideoURL:  in.Location.URL,
		VideoKey:  in.Location.Key,
		Identity:  in.Identity,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, &StoreError{Op: "record", Err: err}
	}

	s.metrics.IncSubmissionsRecorded()
	s.log.Info("submission recorded",
		slog.String("id", sub.ID),
		slog.String("title", sub.Title),
		slog.Int("team_count", sub.TeamCount))

	s.relay(*sub)
	return sub, nil
}

// ListSubmissions returns all submissions, newest first.
func (s *Service) ListSubmissions(ctx context.Context) ([]Submission, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return list, nil
}

// CountSubmissions returns the number of stored submissions.
func (s *Service) CountSubmissions(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// GetSubmission returns one submission or ErrNotFound.
func (s *Service) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	sub, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return sub, nil
}

// DeleteSubmission removes the row and then, best effort, its video object.
// A missing id yields ErrNotFound.
func (s *Service) DeleteSubmission(ctx context.Context, id string) error {
	sub, err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	s.metrics.IncSubmissionsDeleted()
	s.log.Info("submission deleted", slog.String("id", id))

	s.removeObject(ctx, *sub)
	return nil
}

// ClearSubmissions removes every row and then, best effort, each video
// object. It returns the number of rows removed.
func (s *Service) ClearSubmissions(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, &StoreError{Op: "clear", Err: err}
	}
	for _, sub := range removed {
		s.metrics.IncSubmissionsDeleted()
		s.removeObject(ctx, sub)
	}
	s.log.Info("submissions cleared", slog.Int("count", len(removed)))
	return len(removed), nil
}

func (s *Service) removeObject(ctx context.Context, sub Submission) {
	if sub.VideoKey == "" {
		return
	}
	if err := s.objects.Delete(ctx, sub.VideoKey); err != nil {
		s.log.Warn("video object not removed",
			slog.String("id", sub.ID),
			slog.String("key", sub.VideoKey),
			slog.String("error", err.Error()))
	}
}

// SaveParticipant upserts a participant profile keyed by external id.
func (s *Service) SaveParticipant(ctx context.Context, id Identity) (*Participant, bool, error) {
	id.ExternalID = strings.TrimSpace(id.ExternalID)
	if id.ExternalID == "" {
		return nil, false, &ValidationError{Field: "tg_id", Reason: "is required"}
	}
	id.FullName = strings.TrimSpace(id.FullName)
	id.Handle = strings.TrimSpace(id.Handle)

	p, created, err := s.repo.UpsertParticipant(ctx, id, s.now().UTC())
	if err != nil {
		return nil, false, &StoreError{Op: "participant", Err: err}
	}
	return p, created, nil
}

// Wait blocks until in-flight notifier relays have finished.
func (s *Service) Wait() {
	s.relays.Wait()
}

func (s *Service) relay(sub Submission) {
	if s.notifier == nil {
		return
	}
	s.relays.Add(1)
	go func() {
		defer s.relays.Done()
		if err := s.notifier.Notify(context.Background(), sub); err != nil {
			s.metrics.IncNotificationsFailed()
			s.log.Error("submission relay failed",
				slog.String("id", sub.ID),
				slog.String("error", err.Error()))
		}
	}()
}

func objectExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
