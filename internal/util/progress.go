package util

import (
	"fmt"

	"github.com/OFFIS-RIT/outreach/pkg/store"
)

type RunProgress struct {
	Status     string `json:"status"`
	Step       string `json:"step,omitempty"`
	Sent       int32  `json:"sent"`
	Failed     int32  `json:"failed"`
	Total      int32  `json:"total"`
	Percentage int32  `json:"percentage"`
	// TimeRemaining is the lower bound in milliseconds until the last
	// message is started, derived from the delay between messages.
	TimeRemaining *int64 `json:"time_remaining,omitempty"`
}

// BuildRunProgress summarises the counters of a run for API responses.
func BuildRunProgress(run store.Run) RunProgress {
	processed := int64(run.Sent) + int64(run.Failed)
	total := int64(run.Total)

	p := RunProgress{
		Status:     run.Status,
		Sent:       run.Sent,
		Failed:     run.Failed,
		Total:      run.Total,
		Percentage: CalculateRunProgressPercentage(processed, total),
	}
	if total > 0 && !run.Finished() {
		p.Step = fmt.Sprintf("%d/%d", processed, total)
	}
	if !run.Finished() && processed < total && run.DelayMs > 0 {
		// processed counts finished sends, so the next one may already be in
		// flight; the estimate never goes below zero.
		remaining := max(total-processed-1, 0) * run.DelayMs
		p.TimeRemaining = &remaining
	}
	if run.Status == store.RunDone && total > 0 {
		p.Percentage = 100
	}
	return p
}

func CalculateRunProgressPercentage(processed, total int64) int32 {
	if total <= 0 {
		return 0
	}
	processed = min(processed, total)
	return int32(processed * 100 / total)
}
