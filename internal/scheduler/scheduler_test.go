package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_InvalidTimezone(t *testing.T) {
	if _, err := New("Not/AZone"); err == nil {
		t.Error("expected error for invalid timezone")
	}
}

func TestSchedule_InvalidSpec(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}
	tests := []string{"", "not a cron", "61 * * * *", "* * * * * * *"}
	for _, spec := range tests {
		if err := s.Schedule(spec, func(context.Context) {}); err == nil {
			t.Errorf("Schedule(%q) expected error", spec)
		}
	}
	if err := s.Schedule("@daily", nil); err == nil {
		t.Error("expected error for nil task")
	}
}

func TestSchedule_Next(t *testing.T) {
	s, err := New("Europe/Lisbon")
	if err != nil {
		t.Fatal(err)
	}
	if s.Location().String() != "Europe/Lisbon" {
		t.Errorf("location = %s", s.Location())
	}
	if err := s.Schedule("0 6 * * *", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	next := s.Next().In(s.Location())
	if next.IsZero() {
		t.Fatal("expected next activation after start")
	}
	if next.Hour() != 6 || next.Minute() != 0 {
		t.Errorf("next = %v, want 06:00 local", next)
	}
	if !next.After(time.Now()) {
		t.Errorf("next = %v is not in the future", next)
	}
}

func TestSchedule_RunsAndStops(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int32
	var cancelled atomic.Bool
	done := make(chan struct{}, 1)
	err = s.Schedule("@every 1s", func(ctx context.Context) {
		runs.Add(1)
		select {
		case done <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		s.Stop()
		t.Fatal("task did not run")
	}

	// Stop cancels the task context and waits for the task to return.
	s.Stop()
	if !cancelled.Load() {
		t.Error("task context was not cancelled by Stop")
	}
	if runs.Load() != 1 {
		t.Errorf("got %d runs, want 1 (overlapping runs are skipped)", runs.Load())
	}
}
