package upload

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPercent_monotonic(t *testing.T) {
	const total = 999_983
	last := -1
	for sent := int64(0); sent <= total; sent += 7919 {
		p := Percent(sent, total)
		if p < last {
			t.Fatalf("percent decreased at %d: %d < %d", sent, p, last)
		}
		if p == 100 {
			t.Fatalf("reached 100%% before completion at %d", sent)
		}
		last = p
	}
	if got := Percent(total, total); got != 100 {
		t.Fatalf("Percent(total,total) = %d", got)
	}
}

func TestPercent_edges(t *testing.T) {
	cases := []struct {
		sent, total int64
		want        int
	}{
		{0, 0, 100},
		{0, 10, 0},
		{-5, 10, 0},
		{5, 10, 50},
		{9, 10, 90},
		{999, 1000, 99},
		{20, 10, 100},
	}
	for _, tc := range cases {
		if got := Percent(tc.sent, tc.total); got != tc.want {
			t.Errorf("Percent(%d,%d) = %d, want %d", tc.sent, tc.total, got, tc.want)
		}
	}
}

func TestMeasure(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Measure(4<<20, 10<<20, start, start.Add(2*time.Second))

	if p.Percent != 40 {
		t.Fatalf("Percent = %d", p.Percent)
	}
	if p.Speed != float64(2<<20) {
		t.Fatalf("Speed = %v", p.Speed)
	}
	if p.ETA != 3*time.Second {
		t.Fatalf("ETA = %v", p.ETA)
	}
	if p.ETASeconds() != 3 {
		t.Fatalf("ETASeconds = %d", p.ETASeconds())
	}

	idle := Measure(0, 100, start, start)
	if idle.Speed != 0 || idle.ETA != 0 {
		t.Fatalf("zero elapsed must not estimate: %+v", idle)
	}
}

func TestPhase_JSON(t *testing.T) {
	b, err := json.Marshal(Progress{Phase: Recording, Percent: 100})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["phase"] != "recording" {
		t.Fatalf("phase = %v", m["phase"])
	}
	if Phase(42).String() != "unknown" {
		t.Fatal("out of range phase must stringify as unknown")
	}
}
