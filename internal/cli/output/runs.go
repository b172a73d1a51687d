package output

import (
	"time"

	"github.com/leapstack-labs/compass/pkg/core"
)

// NewRunInfo maps a stored run onto the shared JSON shape. Iterations
// may be nil for listing surfaces that skip the process log.
func NewRunInfo(run *core.Run, iterations []core.IterationRecord) RunInfo {
	info := RunInfo{
		ID:        run.ID,
		Question:  run.Question,
		Status:    string(run.Status),
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Approved:  run.ApprovedRelations,
		SQL:       run.SQL,
	}
	if run.CompletedAt != nil {
		info.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	for _, it := range iterations {
		info.Iterations = append(info.Iterations, IterationInfo{
			Depth:          it.Depth,
			CandidateCount: it.CandidateCount,
			Verdict:        it.Verdict,
			Reasoning:      it.Reasoning,
		})
	}
	return info
}
