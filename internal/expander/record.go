package expander

import (
	"log/slog"

	"github.com/leapstack-labs/compass/pkg/core"
)

// RecordOutcome persists a finished expansion into the run history.
// History is observability, not part of the answer path: store failures
// are logged and swallowed.
func RecordOutcome(store core.Store, runID string, outcome *Outcome, runErr error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if outcome != nil {
		for i, it := range outcome.Iterations {
			if err := store.RecordIteration(runID, i, it); err != nil {
				logger.Warn("failed to record iteration", "run", runID, "error", err)
				break
			}
		}
	}

	status := core.RunStatusFailed
	var sqlText, errMsg string
	var approved []string
	if runErr != nil {
		errMsg = runErr.Error()
	} else if outcome != nil {
		sqlText = outcome.SQL
		errMsg = outcome.Error
		approved = outcome.Approved
		switch outcome.Status {
		case StatusSuccess:
			status = core.RunStatusSuccess
		case StatusExhausted:
			status = core.RunStatusExhausted
		}
	}
	if err := store.CompleteRun(runID, status, sqlText, errMsg, approved); err != nil {
		logger.Warn("failed to complete run record", "run", runID, "error", err)
	}
}
