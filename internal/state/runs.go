package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const defaultListLimit = 50

// CreateRun records the start of a scope-expansion run.
func (s *SQLiteStore) CreateRun(question string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Question:  question,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, question, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Question, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, question, status, approved_relations, sql_text, error, started_at, completed_at
		 FROM runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run finished with its outcome. The approved
// relations are stored as a JSON array alongside the generated SQL.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, sqlText, errMsg string, approved []string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var approvedJSON *string
	if len(approved) > 0 {
		encoded, err := json.Marshal(approved)
		if err != nil {
			return fmt.Errorf("failed to encode approved relations: %w", err)
		}
		val := string(encoded)
		approvedJSON = &val
	}

	var sqlPtr *string
	if sqlText != "" {
		sqlPtr = &sqlText
	}
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, sql_text = ?, error = ?, approved_relations = ?, completed_at = ? WHERE id = ?`,
		status, sqlPtr, errorPtr, approvedJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns retrieves the most recent runs, newest first. A non-positive
// limit falls back to a sane default.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(
		`SELECT id, question, status, approved_relations, sql_text, error, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var approved, sqlText, errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Question, &run.Status, &approved, &sqlText, &errMsg, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if approved.Valid && approved.String != "" {
		if err := json.Unmarshal([]byte(approved.String), &run.ApprovedRelations); err != nil {
			return nil, fmt.Errorf("failed to decode approved relations: %w", err)
		}
	}
	if sqlText.Valid {
		run.SQL = sqlText.String
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return run, nil
}
