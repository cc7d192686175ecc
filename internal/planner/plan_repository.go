package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/shared"

	"github.com/google/uuid"
)

// ErrPlanNotFound is returned when a subject has no current plan of a kind.
var ErrPlanNotFound = errors.New("plan not found")

// PlanRecord is a stored plan. Records are never edited; a newer plan for an
// overlapping period supersedes the older one.
type PlanRecord struct {
	ID           string
	SubjectID    string
	Kind         plan.Kind
	Language     string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	PlanData     []byte // Raw JSON of the plan document
	Usage        shared.TokenUsage
	Attempts     int
	CreatedAt    time.Time
	SupersededAt *time.Time
	SupersededBy string
}

// Current reports whether the record has not been superseded.
func (r PlanRecord) Current() bool {
	return r.SupersededAt == nil
}

// PlanRepository is a database-backed repository for plans.
type PlanRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{db: d, now: time.Now}
}

// Save inserts rec and, in the same transaction, supersedes every current
// plan of the same subject and kind whose period overlaps rec's. ID and
// CreatedAt are filled in when empty.
func (r *PlanRepository) Save(ctx context.Context, rec *PlanRecord) error {
	if rec.SubjectID == "" {
		return errors.New("plan record needs a subject")
	}
	if rec.PeriodEnd.Before(rec.PeriodStart) {
		return fmt.Errorf("plan period ends (%s) before it starts (%s)",
			rec.PeriodEnd.Format(database.DateLayout), rec.PeriodStart.Format(database.DateLayout))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := rec.PeriodStart.Format(database.DateLayout)
	end := rec.PeriodEnd.Format(database.DateLayout)
	created := database.FormatTime(rec.CreatedAt)

	if _, err := tx.ExecContext(ctx, `
		UPDATE plans SET superseded_at = ?, superseded_by = ?
		WHERE subject_id = ? AND kind = ? AND superseded_at IS NULL
		  AND period_start <= ? AND period_end >= ?`,
		created, rec.ID, rec.SubjectID, string(rec.Kind), end, start,
	); err != nil {
		return fmt.Errorf("failed to supersede plans for subject %s: %w", rec.SubjectID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plans (id, subject_id, kind, language, period_start, period_end, plan_data,
		                   model, prompt_tokens, completion_tokens, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SubjectID, string(rec.Kind), rec.Language, start, end, string(rec.PlanData),
		rec.Usage.Model, rec.Usage.PromptTokens, rec.Usage.CompletionTokens, rec.Attempts, created,
	); err != nil {
		return fmt.Errorf("failed to insert plan for subject %s: %w", rec.SubjectID, err)
	}

	return tx.Commit()
}

const planColumns = `id, subject_id, kind, language, period_start, period_end, plan_data,
	model, prompt_tokens, completion_tokens, attempts, created_at, superseded_at, superseded_by`

// Current returns the newest plan of kind for subjectID that is not
// superseded and whose period contains day.
func (r *PlanRepository) Current(ctx context.Context, subjectID string, kind plan.Kind, day time.Time) (*PlanRecord, error) {
	d := day.Format(database.DateLayout)
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans
		WHERE subject_id = ? AND kind = ? AND superseded_at IS NULL
		  AND period_start <= ? AND period_end >= ?
		ORDER BY created_at DESC LIMIT 1`,
		subjectID, string(kind), d, d)

	rec, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current %s plan for subject %s: %w", kind, subjectID, err)
	}
	return rec, nil
}

// History lists the most recent plans of kind for subjectID, newest first,
// including superseded ones. An empty kind lists every kind.
func (r *PlanRepository) History(ctx context.Context, subjectID string, kind plan.Kind, limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans
		WHERE subject_id = ? AND (? = '' OR kind = ?)
		ORDER BY created_at DESC LIMIT ?`,
		subjectID, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for subject %s: %w", subjectID, err)
	}
	defer rows.Close()

	var out []PlanRecord
	for rows.Next() {
		rec, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (*PlanRecord, error) {
	var (
		rec                        PlanRecord
		kind, start, end, data     string
		created                    string
		supersededAt, supersededBy sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.SubjectID, &kind, &rec.Language, &start, &end, &data,
		&rec.Usage.Model, &rec.Usage.PromptTokens, &rec.Usage.CompletionTokens, &rec.Attempts,
		&created, &supersededAt, &supersededBy); err != nil {
		return nil, err
	}

	var err error
	rec.Kind = plan.Kind(kind)
	rec.PlanData = []byte(data)
	rec.Usage.TotalTokens = rec.Usage.PromptTokens + rec.Usage.CompletionTokens
	rec.SupersededBy = supersededBy.String
	if rec.PeriodStart, err = time.Parse(database.DateLayout, start); err != nil {
		return nil, err
	}
	if rec.PeriodEnd, err = time.Parse(database.DateLayout, end); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = database.ParseTime(created); err != nil {
		return nil, err
	}
	if rec.SupersededAt, err = database.NullTime(supersededAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
