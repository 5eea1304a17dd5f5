package generation

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{StatePending, StateProcessing, true},
		{StatePending, StateCompleted, true},
		{StatePending, StateFailed, true},
		{StatePending, StateCancelled, true},
		{StateProcessing, StateCompleted, true},
		{StateProcessing, StateFailed, true},
		{StateProcessing, StateCancelled, true},
		{StateProcessing, StatePending, false},
		{StateCompleted, StateFailed, false},
		{StateCompleted, StateProcessing, false},
		{StateFailed, StateCompleted, false},
		{StateCancelled, StateProcessing, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionTimestamps(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	job := &Job{ID: "j1", State: StatePending, CreatedAt: now, UpdatedAt: now}

	later := now.Add(time.Minute)
	if err := job.Transition(StateProcessing, later); err != nil {
		t.Fatalf("transition to processing: %v", err)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(later) {
		t.Fatalf("expected StartedAt %v, got %v", later, job.StartedAt)
	}
	if job.CompletedAt != nil {
		t.Fatal("CompletedAt should not be set before terminal state")
	}

	done := later.Add(time.Minute)
	if err := job.Transition(StateCompleted, done); err != nil {
		t.Fatalf("transition to completed: %v", err)
	}
	if job.CompletedAt == nil || !job.CompletedAt.Equal(done) {
		t.Fatalf("expected CompletedAt %v, got %v", done, job.CompletedAt)
	}
}

func TestTransitionRejectsTerminalExit(t *testing.T) {
	job := &Job{ID: "j1", State: StateCompleted}
	err := job.Transition(StateProcessing, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionSameStateIsNoop(t *testing.T) {
	job := &Job{ID: "j1", State: StateProcessing}
	if err := job.Transition(StateProcessing, time.Now()); err != nil {
		t.Fatalf("same-state transition should be a no-op, got %v", err)
	}
}

func TestMarkCompletedWithoutLocator(t *testing.T) {
	job := &Job{ID: "j1", State: StateProcessing}
	if err := job.MarkCompleted("   ", time.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if job.State != StateCompleted {
		t.Fatalf("expected completed, got %s", job.State)
	}
	if job.Annotation != AnnotationNotPublished {
		t.Fatalf("expected annotation %q, got %q", AnnotationNotPublished, job.Annotation)
	}
}

func TestMarkCompletedWithLocator(t *testing.T) {
	job := &Job{ID: "j1", State: StateProcessing}
	if err := job.MarkCompleted("https://cdn.example/v.mp4", time.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if job.Annotation != "" {
		t.Fatalf("unexpected annotation %q", job.Annotation)
	}
	if job.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", job.Progress)
	}
}

func TestMarkFailedPreservesMessageVerbatim(t *testing.T) {
	job := &Job{ID: "j1", State: StateProcessing}
	const reason = "quota exceeded"
	if err := job.MarkFailed(reason, time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if job.ErrorMessage != reason {
		t.Fatalf("expected error message %q, got %q", reason, job.ErrorMessage)
	}
}

func TestMarkCancelledOnTerminalIsNoop(t *testing.T) {
	for _, state := range []State{StateCompleted, StateFailed, StateCancelled} {
		job := &Job{ID: "j1", State: state}
		if err := job.MarkCancelled(time.Now()); err != nil {
			t.Fatalf("cancel of %s job should be a no-op, got %v", state, err)
		}
		if job.State != state {
			t.Fatalf("state changed from %s to %s", state, job.State)
		}
	}
}

func TestParseStateAndKind(t *testing.T) {
	if state, ok := ParseState(" Processing "); !ok || state != StateProcessing {
		t.Fatalf("ParseState: got %q, %v", state, ok)
	}
	if _, ok := ParseState("bogus"); ok {
		t.Fatal("ParseState accepted unknown state")
	}
	if kind, ok := ParseKind("AVATAR"); !ok || kind != KindAvatar {
		t.Fatalf("ParseKind: got %q, %v", kind, ok)
	}
	if _, ok := ParseKind(""); ok {
		t.Fatal("ParseKind accepted empty string")
	}
}
