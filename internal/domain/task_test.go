package domain

import (
	"errors"
	"testing"
)

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskStatus
		wantErr bool
	}{
		{"ONGOING", TaskStatusOngoing, false},
		{"ongoing", TaskStatusOngoing, false},
		{" done ", TaskStatusDone, false},
		{"on-hold", TaskStatusOnHold, false},
		{"On Hold", TaskStatusOnHold, false},
		{"canceled", TaskStatusCanceled, false},
		{"started", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTaskStatus(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("ParseTaskStatus(%q) err = %v, want ErrInvalidStatus", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTaskStatus(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestTaskStatus_TimerRules(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusTodo, TaskStatusOngoing, TaskStatusOnHold, TaskStatusDone, TaskStatusClosed, TaskStatusCanceled} {
		if got := s.AllowsTimer(); got != (s == TaskStatusOngoing) {
			t.Errorf("%s.AllowsTimer() = %v", s, got)
		}
		terminal := s == TaskStatusDone || s == TaskStatusClosed || s == TaskStatusCanceled
		if got := s.IsTerminal(); got != terminal {
			t.Errorf("%s.IsTerminal() = %v", s, got)
		}
	}
}

func TestIsPlaceholderTaskID(t *testing.T) {
	if !IsPlaceholderTaskID("") || !IsPlaceholderTaskID(PlaceholderTaskID) {
		t.Error("empty and placeholder ids should count as no task")
	}
	if IsPlaceholderTaskID("task-1") {
		t.Error("real id reported as placeholder")
	}
}
