package storage

import (
	"fmt"
	"time"
)

// Submission is one recorded question/answer run. History is append-only
// and purely informational; outcomes are never served from it.
type Submission struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	State      string    `json:"state"`
	Answer     string    `json:"answer,omitempty"`
	Message    string    `json:"message,omitempty"`
	Model      string    `json:"model,omitempty"`
	K          int       `json:"k,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordSubmission appends one submission to the history.
func (s *Store) RecordSubmission(sub Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO submissions (id, question, state, answer, message, model, k, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Question, sub.State, sub.Answer, sub.Message, sub.Model, sub.K, sub.DurationMs,
		sub.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the most recent submissions, newest first.
// limit <= 0 defaults to 20.
func (s *Store) ListSubmissions(limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, question, state, answer, message, model, k, duration_ms, created_at
		 FROM submissions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.Question, &sub.State, &sub.Answer, &sub.Message,
			&sub.Model, &sub.K, &sub.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for submission %s: %w", sub.ID, err)
		}
		sub.CreatedAt = t
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
