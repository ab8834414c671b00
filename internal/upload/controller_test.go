package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"contest-portal/internal/contest"
	"contest-portal/internal/platform/logger"
)

type fakeStore struct {
	mu        sync.Mutex
	uploads   int
	records   []contest.NewSubmission
	received  []int
	uploadErr error
	recordErr error

	started chan struct{}
	release chan struct{}
}

func (s *fakeStore) Upload(ctx context.Context, f contest.File, onProgress contest.ProgressFunc) (contest.Location, error) {
	s.mu.Lock()
	s.uploads++
	uploadErr := s.uploadErr
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}

	onProgress(0, f.Size)
	half := f.Size / 2
	first, err := io.ReadAll(io.LimitReader(f.Content, half))
	if err != nil {
		return contest.Location{}, &contest.TransferError{Err: err}
	}
	onProgress(int64(len(first)), f.Size)
	if uploadErr != nil {
		return contest.Location{}, uploadErr
	}
	rest, err := io.ReadAll(f.Content)
	if err != nil {
		return contest.Location{}, &contest.TransferError{Err: err}
	}
	sent := int64(len(first) + len(rest))
	onProgress(sent, f.Size)

	s.mu.Lock()
	s.received = append(s.received, int(sent))
	s.mu.Unlock()
	return contest.Location{Key: "k1.mp4", URL: "/videos/k1.mp4"}, nil
}

func (s *fakeStore) RecordSubmission(_ context.Context, in contest.NewSubmission) (*contest.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, in)
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return &contest.Submission{
		ID:        "sub-1",
		Title:     in.Title,
		TeamCount: in.TeamCount,
		VideoURL:  in.Location.URL,
		VideoKey:  in.Location.Key,
		Identity:  in.Identity,
	}, nil
}

func (s *fakeStore) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads, len(s.records)
}

func video(size int) SelectedFile {
	return SelectedFile{
		Name:        "demo.mp4",
		Size:        int64(size),
		ContentType: "video/mp4",
		Content:     bytes.NewReader(make([]byte, size)),
	}
}

func newController(store Store, opts ...Option) *Controller {
	opts = append([]Option{WithMaxTeamSize(1000)}, opts...)
	return NewController(store, logger.Discard(), opts...)
}

func drain(c *Controller) []Progress {
	var out []Progress
	for {
		select {
		case p := <-c.Events():
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestController_end_to_end(t *testing.T) {
	store := &fakeStore{}
	c := newController(store)
	c.SetIdentity(contest.Identity{FullName: "Jane", Handle: "jdoe"})

	if err := c.SelectFile(video(10 << 20)); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if c.Phase() != FileSelected {
		t.Fatalf("phase = %v, want file_selected", c.Phase())
	}

	sub, err := c.Submit(context.Background(), Form{Title: "  Demo ", TeamCount: 3})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub == nil || sub.ID != "sub-1" {
		t.Fatalf("unexpected submission %+v", sub)
	}

	if u, r := store.calls(); u != 1 || r != 1 {
		t.Fatalf("uploads=%d records=%d, want 1 and 1", u, r)
	}
	rec := store.records[0]
	if rec.Title != "Demo" || rec.TeamCount != 3 || rec.Location.URL != "/videos/k1.mp4" || rec.Location.Key != "k1.mp4" {
		t.Fatalf("unexpected record input %+v", rec)
	}
	if rec.Identity.FullName != "Jane" || rec.Identity.Handle != "jdoe" {
		t.Fatalf("identity not carried: %+v", rec.Identity)
	}

	var percents []int
	var phases []Phase
	for _, p := range drain(c) {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
		if p.Phase == Uploading && (len(percents) == 0 || percents[len(percents)-1] != p.Percent) {
			percents = append(percents, p.Percent)
		}
	}
	wantPercents := []int{0, 50, 100}
	if len(percents) != len(wantPercents) {
		t.Fatalf("percents = %v, want %v", percents, wantPercents)
	}
	for i := range wantPercents {
		if percents[i] != wantPercents[i] {
			t.Fatalf("percents = %v, want %v", percents, wantPercents)
		}
	}
	wantPhases := []Phase{FileSelected, Validating, Uploading, Recording, Done}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Fatalf("phases = %v, want %v", phases, wantPhases)
		}
	}

	if c.Phase() != Idle || c.File() != nil {
		t.Fatalf("form not reset: phase=%v file=%v", c.Phase(), c.File())
	}
	if d := c.Draft(); d.Title != "" || d.TeamCount != 0 {
		t.Fatalf("draft not cleared: %+v", d)
	}
	if snap := c.Snapshot(); snap.Phase != Done || snap.Percent != 100 {
		t.Fatalf("snapshot = %+v, want done at 100%%", snap)
	}
}

func TestController_validation_gating(t *testing.T) {
	cases := []struct {
		name  string
		file  bool
		form  Form
		field string
	}{
		{"empty title", true, Form{Title: "", TeamCount: 2}, "title"},
		{"blank title", true, Form{Title: "   ", TeamCount: 2}, "title"},
		{"no file", false, Form{Title: "Demo", TeamCount: 2}, "file"},
		{"zero team", true, Form{Title: "Demo", TeamCount: 0}, "team_count"},
		{"team too large", true, Form{Title: "Demo", TeamCount: 1001}, "team_count"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			c := newController(store)
			want := Idle
			if tc.file {
				if err := c.SelectFile(video(10)); err != nil {
					t.Fatalf("SelectFile: %v", err)
				}
				want = FileSelected
			}

			_, err := c.Submit(context.Background(), tc.form)
			var ve *contest.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("err = %v, want validation error on %s", err, tc.field)
			}
			if u, r := store.calls(); u != 0 || r != 0 {
				t.Fatalf("store touched: uploads=%d records=%d", u, r)
			}
			if c.Phase() != want {
				t.Fatalf("phase = %v, want %v", c.Phase(), want)
			}
			if d := c.Draft(); d.Title != tc.form.Title {
				t.Fatalf("draft lost after validation failure: %+v", d)
			}
		})
	}
}

func TestController_SelectFile(t *testing.T) {
	c := newController(&fakeStore{}, WithMaxBytes(100))

	var ve *contest.ValidationError
	err := c.SelectFile(SelectedFile{Name: "a.png", Size: 10, ContentType: "image/png", Content: bytes.NewReader(nil)})
	if !errors.As(err, &ve) || ve.Field != "file" {
		t.Fatalf("expected file validation error, got %v", err)
	}
	if c.Phase() != Idle || c.File() != nil {
		t.Fatal("rejected file changed state")
	}

	if err := c.SelectFile(video(10)); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	first := c.File()

	if err := c.SelectFile(SelectedFile{Name: "notes.txt", ContentType: "text/plain", Content: bytes.NewReader(nil)}); err == nil {
		t.Fatal("expected rejection")
	}
	if c.File() != first || c.Phase() != FileSelected {
		t.Fatal("rejected file replaced the selection")
	}

	if err := c.SelectFile(video(101)); !errors.As(err, &ve) {
		t.Fatalf("expected size rejection, got %v", err)
	}

	next := video(20)
	next.Name = "other.webm"
	if err := c.SelectFile(next); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if c.File().Name != "other.webm" {
		t.Fatalf("selection not replaced: %+v", c.File())
	}

	if err := c.RemoveFile(); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if c.Phase() != Idle || c.File() != nil {
		t.Fatal("RemoveFile did not reset")
	}
}

func TestController_double_submit(t *testing.T) {
	store := &fakeStore{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := newController(store)
	if err := c.SelectFile(video(1000)); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 1})
		errc <- err
	}()
	<-store.started

	if c.Phase() != Uploading {
		t.Fatalf("phase = %v, want uploading", c.Phase())
	}
	if _, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 1}); !errors.Is(err, ErrAttemptInFlight) {
		t.Fatalf("second submit: %v", err)
	}
	if err := c.SelectFile(video(5)); !errors.Is(err, ErrAttemptInFlight) {
		t.Fatalf("select during upload: %v", err)
	}
	if err := c.RemoveFile(); !errors.Is(err, ErrAttemptInFlight) {
		t.Fatalf("remove during upload: %v", err)
	}

	close(store.release)
	if err := <-errc; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if u, r := store.calls(); u != 1 || r != 1 {
		t.Fatalf("uploads=%d records=%d, want 1 and 1", u, r)
	}
}

func TestController_transfer_failure_keeps_file(t *testing.T) {
	store := &fakeStore{uploadErr: errors.New("connection reset")}
	c := newController(store)
	if err := c.SelectFile(video(1000)); err != nil {
		t.Fatal(err)
	}

	_, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 2})
	var te *contest.TransferError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if c.Phase() != FileSelected || c.File() == nil {
		t.Fatalf("phase=%v file=%v, want file kept", c.Phase(), c.File())
	}
	if snap := c.Snapshot(); snap.Phase != Failed {
		t.Fatalf("snapshot phase = %v, want failed", snap.Phase)
	}
	if d := c.Draft(); d.Title != "Demo" || d.TeamCount != 2 {
		t.Fatalf("draft lost: %+v", d)
	}

	store.mu.Lock()
	store.uploadErr = nil
	store.mu.Unlock()
	if _, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 2}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := store.received; len(got) != 1 || got[0] != 1000 {
		t.Fatalf("retry did not resend the whole file: %v", got)
	}
}

func TestController_record_failure_resets(t *testing.T) {
	store := &fakeStore{recordErr: &contest.StoreError{Op: "record", Err: errors.New("db down")}}
	c := newController(store)
	if err := c.SelectFile(video(10)); err != nil {
		t.Fatal(err)
	}

	_, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 2})
	var se *contest.StoreError
	if !errors.As(err, &se) || se.Op != "record" {
		t.Fatalf("expected record StoreError, got %v", err)
	}
	if c.Phase() != Idle || c.File() != nil {
		t.Fatalf("phase=%v file=%v, want idle with no file", c.Phase(), c.File())
	}
	if u, r := store.calls(); u != 1 || r != 1 {
		t.Fatalf("uploads=%d records=%d", u, r)
	}
}

func TestController_Close(t *testing.T) {
	c := newController(&fakeStore{})
	if err := c.SelectFile(video(10)); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	for range c.Events() {
	}
	if _, err := c.Submit(context.Background(), Form{Title: "x", TeamCount: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close: %v", err)
	}
	if err := c.SelectFile(video(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("SelectFile after Close: %v", err)
	}
}

func TestController_slow_consumer_keeps_latest(t *testing.T) {
	store := &fakeStore{}
	c := newController(store, WithEventBuffer(2))
	if err := c.SelectFile(video(100)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 1}); err != nil {
		t.Fatal(err)
	}
	got := drain(c)
	if len(got) != 2 {
		t.Fatalf("buffered %d events, want 2", len(got))
	}
	if got[1].Phase != Done {
		t.Fatalf("last event = %v, want done", got[1].Phase)
	}
}

func TestController_observer(t *testing.T) {
	var seen []Phase
	c := newController(&fakeStore{}, WithObserver(func(p Progress) { seen = append(seen, p.Phase) }))
	if err := c.SelectFile(video(10)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 1}); err != nil {
		t.Fatal(err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != Done {
		t.Fatalf("observer saw %v", seen)
	}
}

func TestController_progress_uses_clock(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	c := newController(&fakeStore{}, WithClock(clock))
	if err := c.SelectFile(video(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 1}); err != nil {
		t.Fatal(err)
	}
	var sawSpeed bool
	for _, p := range drain(c) {
		if p.Phase == Uploading && p.BytesSent > 0 && p.Speed > 0 {
			sawSpeed = true
		}
	}
	if !sawSpeed {
		t.Fatal("no throughput estimate observed")
	}
}
