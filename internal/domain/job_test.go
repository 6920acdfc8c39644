package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseJobKind(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, err := ParseJobKind(string(kind))
		if err != nil {
			t.Errorf("kind %s: unexpected error: %v", kind, err)
		}
		if parsed != kind {
			t.Errorf("expected %s, got %s", kind, parsed)
		}
	}

	if _, err := ParseJobKind("send-email"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNewJob_Defaults(t *testing.T) {
	runAt := time.Now().Add(time.Hour)
	job, err := NewJob(KindNotifyEvent, NotifyEventPayload{EventID: uuid.New()}, runAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != JobStatusQueued {
		t.Errorf("expected QUEUED, got %s", job.Status)
	}
	if job.Attempts != 0 {
		t.Errorf("expected 0 attempts, got %d", job.Attempts)
	}
	if !job.RunAt.Equal(runAt.UTC()) {
		t.Errorf("run_at not preserved: %v", job.RunAt)
	}
}

func TestJob_DecodePayload_KindMismatch(t *testing.T) {
	job, err := NewJob(KindExpandSeries, ExpandSeriesPayload{SeriesID: uuid.New()}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := job.DecodeNotifyEventPayload(); err == nil {
		t.Error("expected error decoding notify payload from expand-series job")
	}
	if _, err := job.DecodeExpandSeriesPayload(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	for _, status := range []JobStatus{JobStatusQueued, JobStatusRunning} {
		if status.IsTerminal() {
			t.Errorf("%s must not be terminal", status)
		}
	}
	for _, status := range []JobStatus{JobStatusDone, JobStatusFailed} {
		if !status.IsTerminal() {
			t.Errorf("%s must be terminal", status)
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	parsed, err := ParseJobStatus("RUNNING")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != JobStatusRunning {
		t.Errorf("expected RUNNING, got %s", parsed)
	}

	if _, err := ParseJobStatus("SLEEPING"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestJob_CanRetry(t *testing.T) {
	job := &Job{Attempts: 4}
	if !job.CanRetry(5) {
		t.Error("4 of 5 attempts: retry should be allowed")
	}
	job.Attempts = 5
	if job.CanRetry(5) {
		t.Error("5 of 5 attempts: retry must not be allowed")
	}
}

func TestDedupMembers(t *testing.T) {
	a := Member{ID: uuid.New(), Name: "a"}
	b := Member{ID: uuid.New(), Name: "b"}

	out := DedupMembers([]Member{a, b, a, b, a})
	if len(out) != 2 {
		t.Fatalf("expected 2 members, got %d", len(out))
	}
	if out[0].ID != a.ID || out[1].ID != b.ID {
		t.Error("dedup must preserve first-seen order")
	}
}
