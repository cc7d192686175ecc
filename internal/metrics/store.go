package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/shared"
)

// ExecutionMetric records metadata for a single generation outcome.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	Event            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Attempts         int
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_metrics (agent_name, model, event, prompt_tokens, completion_tokens, latency_ms, attempts, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.AgentName, m.Model, m.Event, m.PromptTokens, m.CompletionTokens, m.LatencyMS, m.Attempts, database.FormatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to record metric for %s: %w", m.AgentName, err)
	}
	return nil
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
	Failures        int
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int, failureEvents ...string) ([]DailyUsage, error) {
	since := database.FormatTime(s.now().AddDate(0, 0, -days))
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day,
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COUNT(*),
		       event
		FROM execution_metrics
		WHERE timestamp >= ?
		GROUP BY day, event
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	failed := make(map[string]bool, len(failureEvents))
	for _, e := range failureEvents {
		failed[e] = true
	}

	var results []DailyUsage
	for rows.Next() {
		var (
			u     DailyUsage
			event string
		)
		if err := rows.Scan(&u.Date, &u.TotalPrompt, &u.TotalCompletion, &u.TotalExecution, &event); err != nil {
			return nil, err
		}
		if failed[event] {
			u.Failures = u.TotalExecution
		}
		if n := len(results); n > 0 && results[n-1].Date == u.Date {
			last := &results[n-1]
			last.TotalPrompt += u.TotalPrompt
			last.TotalCompletion += u.TotalCompletion
			last.TotalExecution += u.TotalExecution
			last.Failures += u.Failures
			continue
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := database.FormatTime(s.now().AddDate(0, 0, -olderThanDays))
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage converts the token usage of one generation into an
// ExecutionMetric. Event and Timestamp are left to the caller.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
	}
}
