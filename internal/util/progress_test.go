package util

import (
	"testing"

	"github.com/OFFIS-RIT/outreach/pkg/store"
)

func TestBuildRunProgress(t *testing.T) {
	run := store.Run{Status: store.RunRunning, Total: 4, Sent: 1, Failed: 1, DelayMs: 1000}
	p := BuildRunProgress(run)

	if p.Percentage != 50 {
		t.Fatalf("expected 50%%, got %d", p.Percentage)
	}
	if p.Step != "2/4" {
		t.Fatalf("expected step 2/4, got %q", p.Step)
	}
	if p.TimeRemaining == nil || *p.TimeRemaining != 1000 {
		t.Fatalf("expected 1000ms remaining, got %v", p.TimeRemaining)
	}
}

func TestBuildRunProgressFinished(t *testing.T) {
	p := BuildRunProgress(store.Run{Status: store.RunDone, Total: 3, Sent: 2, Failed: 0, DelayMs: 1000})
	if p.Percentage != 100 {
		t.Fatalf("expected 100%% for a done run, got %d", p.Percentage)
	}
	if p.Step != "" || p.TimeRemaining != nil {
		t.Fatalf("finished runs carry no step or estimate: %+v", p)
	}

	p = BuildRunProgress(store.Run{Status: store.RunCancelled, Total: 4, Sent: 1})
	if p.Percentage != 25 {
		t.Fatalf("expected 25%% for a cancelled run, got %d", p.Percentage)
	}
}

func TestCalculateRunProgressPercentage(t *testing.T) {
	tests := []struct {
		processed, total int64
		want             int32
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{3, 3, 100},
		{5, 3, 100},
	}
	for _, tc := range tests {
		if got := CalculateRunProgressPercentage(tc.processed, tc.total); got != tc.want {
			t.Fatalf("CalculateRunProgressPercentage(%d, %d) = %d, want %d", tc.processed, tc.total, got, tc.want)
		}
	}
}
