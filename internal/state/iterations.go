package state

import (
	"fmt"
)

// RecordIteration appends one widening step to a run's process log.
// Sequence numbers are assigned by the caller and unique per run.
func (s *SQLiteStore) RecordIteration(runID string, seq int, rec IterationRecord) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT INTO iterations (run_id, seq, depth, candidate_count, verdict, reasoning)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, seq, rec.Depth, rec.CandidateCount, rec.Verdict, rec.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("failed to record iteration: %w", err)
	}

	return nil
}

// GetIterations returns a run's widening steps in sequence order.
func (s *SQLiteStore) GetIterations(runID string) ([]IterationRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT depth, candidate_count, verdict, reasoning FROM iterations WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get iterations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var iterations []IterationRecord
	for rows.Next() {
		var rec IterationRecord
		if err := rows.Scan(&rec.Depth, &rec.CandidateCount, &rec.Verdict, &rec.Reasoning); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		iterations = append(iterations, rec)
	}

	return iterations, rows.Err()
}
