package requeue

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunDaemon_InvalidSchedule(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	err := s.RunDaemon(context.Background(), "not a schedule", nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse schedule") {
		t.Errorf("error = %v", err)
	}
}

func TestRunDaemon_StopsOnCancel(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- s.RunDaemon(ctx, "* * * * *", &out) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}

	if !strings.Contains(out.String(), "stopped") {
		t.Errorf("output = %q, want stop message", out.String())
	}
}
