package contest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository is the persistence contract for submission rows and participant
// profiles. Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts s. ID and CreatedAt are set by the caller.
	Create(ctx context.Context, s *Submission) error

	// Get returns the submission with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Submission, error)

	// List returns all submissions ordered by creation time, newest first.
	List(ctx context.Context) ([]Submission, error)

	// Count returns the number of stored submissions.
	Count(ctx context.Context) (int, error)

	// Delete removes a submission and returns the removed row, or ErrNotFound.
	Delete(ctx context.Context, id string) (*Submission, error)

	// DeleteAll removes every submission and returns the removed rows.
	DeleteAll(ctx context.Context) ([]Submission, error)

	// UpsertParticipant inserts or updates a participant keyed by
	// Identity.ExternalID. created reports which of the two happened.
	UpsertParticipant(ctx context.Context, id Identity, now time.Time) (p *Participant, created bool, err error)
}

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
type InMemoryRepository struct {
	mu           sync.RWMutex
	submissions  map[string]inMemoryRow
	participants map[string]*Participant
	seq          int64
}

type inMemoryRow struct {
	sub Submission
	seq int64
}

// NewInMemoryRepository returns an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		submissions:  make(map[string]inMemoryRow),
		participants: make(map[string]*Participant),
	}
}

// Create implements Repository.Create.
func (r *InMemoryRepository) Create(_ context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.submissions[s.ID] = inMemoryRow{sub: *s, seq: r.seq}
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s := row.sub
	return &s, nil
}

// List implements Repository.List.
func (r *InMemoryRepository) List(_ context.Context) ([]Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]inMemoryRow, 0, len(r.submissions))
	for _, row := range r.submissions {
		rows = append(rows, row)
	}
	// Newest first; insertion order breaks ties between equal timestamps.
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].sub.CreatedAt.Equal(rows[j].sub.CreatedAt) {
			return rows[i].sub.CreatedAt.After(rows[j].sub.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]Submission, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.sub)
	}
	return out, nil
}

// Count implements Repository.Count.
func (r *InMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.submissions), nil
}

// Delete implements Repository.Delete.
func (r *InMemoryRepository) Delete(_ context.Context, id string) (*Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.submissions, id)
	s := row.sub
	return &s, nil
}

// DeleteAll implements Repository.DeleteAll.
func (r *InMemoryRepository) DeleteAll(_ context.Context) ([]Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]Submission, 0, len(r.submissions))
	for _, row := range r.submissions {
		removed = append(removed, row.sub)
	}
	r.submissions = make(map[string]inMemoryRow)
	return removed, nil
}

// UpsertParticipant implements Repository.UpsertParticipant.
func (r *InMemoryRepository) UpsertParticipant(_ context.Context, id Identity, now time.Time) (*Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[id.ExternalID]; ok {
		p.FullName = id.FullName
		p.Handle = id.Handle
		p.UpdatedAt = now
		cp := *p
		return &cp, false, nil
	}

	p := &Participant{Identity: id, CreatedAt: now, UpdatedAt: now}
	r.participants[id.ExternalID] = p
	cp := *p
	return &cp, true, nil
}
