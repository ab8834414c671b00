package upload

import (
	"context"
	"testing"
	"time"
)

func TestTracker(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(time.Minute)
	tr.now = func() time.Time { return now }

	created := 0
	create := func() *Controller {
		created++
		return newController(&fakeStore{})
	}

	a := tr.Controller("a", create)
	if again := tr.Controller("a", create); again != a || created != 1 {
		t.Fatalf("same id must reuse the controller (created=%d)", created)
	}
	if err := a.SelectFile(video(10)); err != nil {
		t.Fatal(err)
	}
	if snap, ok := tr.Snapshot("a"); !ok || snap.Phase != FileSelected {
		t.Fatalf("snapshot = %+v, %v", snap, ok)
	}
	if _, ok := tr.Snapshot("missing"); ok {
		t.Fatal("unknown id reported")
	}

	now = now.Add(2 * time.Minute)
	tr.Controller("b", create)
	if _, ok := tr.Snapshot("a"); ok {
		t.Fatal("expired attempt not pruned")
	}
	if _, err := a.Submit(context.Background(), Form{}); err != ErrClosed {
		t.Fatalf("pruned controller not closed: %v", err)
	}

	if err := tr.Release("b"); err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 0 {
		t.Fatalf("Len = %d", tr.Len())
	}
	if err := tr.Release("b"); err != nil {
		t.Fatalf("releasing an unknown id: %v", err)
	}
}

func TestTracker_Release_keeps_in_flight(t *testing.T) {
	tr := NewTracker(time.Minute)
	store := &fakeStore{started: make(chan struct{}), release: make(chan struct{})}
	c := tr.Controller("a", func() *Controller { return newController(store) })
	if err := c.SelectFile(video(10)); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), Form{Title: "Demo", TeamCount: 1})
		done <- err
	}()
	<-store.started

	if err := tr.Release("a"); err != ErrAttemptInFlight {
		t.Fatalf("Release during upload = %v", err)
	}
	if tr.Len() != 1 {
		t.Fatal("in-flight attempt was forgotten")
	}

	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := tr.Release("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Submit(context.Background(), Form{}); err != ErrClosed {
		t.Fatalf("released controller not closed: %v", err)
	}
}
