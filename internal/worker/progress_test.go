package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func done(name string, seed uint32, elapsed time.Duration, err error) Result {
	return Result{Task: Task{Name: name, Seed: seed}, Seed: seed, Elapsed: elapsed, Err: err}
}

func TestProgress_RecordTracksFailedSeeds(t *testing.T) {
	p := NewProgress(4, false)

	p.Record(done("dunes-9", 9, time.Second, errors.New("boom")), 1, 4, 1)
	p.Record(done("dunes-3", 3, time.Second, nil), 2, 4, 1)
	p.Record(done("dunes-5", 5, time.Second, errors.New("boom")), 3, 4, 2)

	got := p.FailedSeeds()
	want := []uint32{5, 9}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("FailedSeeds() = %v, want %v", got, want)
	}
	if p.lastName != "dunes-5" {
		t.Errorf("Expected last terrain dunes-5, got %q", p.lastName)
	}
}

func TestProgress_Print(t *testing.T) {
	var buf bytes.Buffer

	p := NewProgress(10, true)
	p.output = &buf
	p.startTime = time.Now().Add(-10 * time.Second)

	for i := 1; i <= 5; i++ {
		var err error
		if i == 2 {
			err = errors.New("boom")
		}
		failed := 0
		if i >= 2 {
			failed = 1
		}
		p.Record(done("ridge", uint32(i), 2*time.Second, err), i, 10, failed)
	}

	line := buf.String()[strings.LastIndex(buf.String(), "\r"):]
	for _, want := range []string{"█", "5/10 terrains", "(1 failed)", "2.0s/terrain", "last ridge", "ETA:"} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in output, got: %s", want, line)
		}
	}
}

func TestProgress_Done(t *testing.T) {
	var buf bytes.Buffer

	p := NewProgress(3, true)
	p.output = &buf
	p.startTime = time.Now().Add(-3 * time.Second)

	p.Record(done("a", 1, time.Second, nil), 3, 3, 0)
	buf.Reset()

	p.Done()

	output := buf.String()
	if !strings.Contains(output, "Done in") {
		t.Errorf("Expected 'Done in' in output, got: %s", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Expected output to end with newline")
	}
}

func TestProgress_SummaryListsFailedSeeds(t *testing.T) {
	p := NewProgress(4, false)
	p.Record(done("a", 40, 100*time.Millisecond, nil), 1, 4, 0)
	p.Record(done("b", 12, 300*time.Millisecond, errors.New("boom")), 2, 4, 1)
	p.Record(done("c", 7, 200*time.Millisecond, errors.New("boom")), 3, 4, 2)
	p.Record(done("d", 41, 200*time.Millisecond, nil), 4, 4, 2)

	summary := p.Summary()
	for _, want := range []string{"Generated 2/4 terrains", "avg 200ms/terrain", "2 failed, seeds: 7, 12"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Expected %q in summary, got: %s", want, summary)
		}
	}
}

func TestProgress_SummaryWithoutFailures(t *testing.T) {
	p := NewProgress(1, false)
	p.Record(done("a", 1, time.Second, nil), 1, 1, 0)

	if summary := p.Summary(); strings.Contains(summary, "failed") {
		t.Errorf("Expected no failure section, got: %s", summary)
	}
}

func TestProgress_Disabled(t *testing.T) {
	var buf bytes.Buffer

	p := NewProgress(10, false)
	p.output = &buf

	p.Record(done("a", 1, time.Second, nil), 5, 10, 0)

	if buf.Len() != 0 {
		t.Errorf("Expected no output when disabled, got: %s", buf.String())
	}
}

func TestProgress_CallbackFromPool(t *testing.T) {
	p := NewProgress(3, false)
	pool := New(Config{
		Workers: 2,
		Generator: &mockGenerator{
			delay:        time.Millisecond,
			failTerrains: map[string]bool{"dunes-2": true},
		},
		OnProgress: p.Callback(),
	})

	pool.Run(context.Background(), SeedTasks("dunes", 1, 3, false))

	if p.completed != 3 || p.failed != 1 {
		t.Fatalf("Expected 3 completed / 1 failed, got %d / %d", p.completed, p.failed)
	}
	if seeds := p.FailedSeeds(); len(seeds) != 1 || seeds[0] != 2 {
		t.Errorf("Expected failed seeds [2], got %v", seeds)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		expected string
		duration time.Duration
	}{
		{duration: 250 * time.Millisecond, expected: "250ms"},
		{duration: 30 * time.Second, expected: "30.0s"},
		{duration: 90 * time.Second, expected: "1m30s"},
		{duration: 65 * time.Minute, expected: "1h5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %s, want %s", tt.duration, got, tt.expected)
			}
		})
	}
}
