package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-fitness-coach/internal/database"

	"github.com/google/uuid"
)

// ErrSubjectNotFound is returned when no subject matches the lookup.
var ErrSubjectNotFound = errors.New("subject not found")

// Repository is a database-backed store for subjects and their check-ins.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// SaveSubject inserts or replaces the profile and assessment of a subject.
// A Telegram link set earlier is kept.
func (r *Repository) SaveSubject(ctx context.Context, s *Subject) error {
	p := &s.Profile
	if p.SubjectID == "" {
		return errors.New("subject needs an id")
	}
	p.UpdatedAt = r.now().UTC()

	goals, err := json.Marshal(nonNil(p.Goals))
	if err != nil {
		return fmt.Errorf("failed to encode goals: %w", err)
	}
	assessment, err := json.Marshal(s.Assessment)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subjects (subject_id, name, age, weight_kg, height_cm, goals, experience_level, language, assessment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			weight_kg = excluded.weight_kg,
			height_cm = excluded.height_cm,
			goals = excluded.goals,
			experience_level = excluded.experience_level,
			language = excluded.language,
			assessment = excluded.assessment,
			updated_at = excluded.updated_at`,
		p.SubjectID, p.Name, p.Age, p.WeightKg, p.HeightCm, string(goals), p.ExperienceLevel, p.Language,
		string(assessment), database.FormatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save subject %s: %w", p.SubjectID, err)
	}
	return nil
}

const subjectColumns = `subject_id, name, age, weight_kg, height_cm, goals, experience_level, language, assessment, updated_at`

// GetSubject loads a subject by id.
func (r *Repository) GetSubject(ctx context.Context, subjectID string) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE subject_id = ?`, subjectID)
	return scanSubject(row, subjectID)
}

// GetByTelegramID loads the subject linked to a Telegram user.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramUserID int64) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE telegram_user_id = ?`, telegramUserID)
	return scanSubject(row, fmt.Sprintf("telegram:%d", telegramUserID))
}

// LinkTelegram associates a Telegram user with an existing subject. A user
// can be linked to one subject only.
func (r *Repository) LinkTelegram(ctx context.Context, subjectID string, telegramUserID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subjects SET telegram_user_id = ? WHERE subject_id = ?`, telegramUserID, subjectID)
	if err != nil {
		return fmt.Errorf("failed to link telegram user to subject %s: %w", subjectID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

// AddCheckIn stores a check-in for an existing subject. ID and SubmittedAt
// are filled in when empty.
func (r *Repository) AddCheckIn(ctx context.Context, c *CheckIn) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = r.now().UTC()
	}
	injuries, err := json.Marshal(nonNil(c.NewInjuries))
	if err != nil {
		return fmt.Errorf("failed to encode injuries: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO check_ins (id, subject_id, weight_kg, energy_level, sleep_quality, dietary_adherence,
		                       workout_performance, new_injuries, notes, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SubjectID, c.WeightKg, c.EnergyLevel, c.SleepQuality, c.DietaryAdherence,
		c.WorkoutPerformance, string(injuries), c.Notes, database.FormatTime(c.SubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to save check-in for subject %s: %w", c.SubjectID, err)
	}
	return nil
}

// LatestCheckIn returns the most recent check-in of a subject, or nil when
// there is none.
func (r *Repository) LatestCheckIn(ctx context.Context, subjectID string) (*CheckIn, error) {
	var (
		c         CheckIn
		weight    sql.NullFloat64
		scores    [4]sql.NullInt64
		injuries  string
		submitted string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, weight_kg, energy_level, sleep_quality, dietary_adherence,
		       workout_performance, new_injuries, notes, submitted_at
		FROM check_ins WHERE subject_id = ?
		ORDER BY submitted_at DESC LIMIT 1`, subjectID,
	).Scan(&c.ID, &c.SubjectID, &weight, &scores[0], &scores[1], &scores[2], &scores[3], &injuries, &c.Notes, &submitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest check-in for subject %s: %w", subjectID, err)
	}

	if weight.Valid {
		c.WeightKg = &weight.Float64
	}
	c.EnergyLevel = intPtr(scores[0])
	c.SleepQuality = intPtr(scores[1])
	c.DietaryAdherence = intPtr(scores[2])
	c.WorkoutPerformance = intPtr(scores[3])
	if err := json.Unmarshal([]byte(injuries), &c.NewInjuries); err != nil {
		return nil, fmt.Errorf("failed to decode injuries: %w", err)
	}
	if c.SubmittedAt, err = database.ParseTime(submitted); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSubject(row *sql.Row, key string) (*Subject, error) {
	var (
		s                 Subject
		goals, assessment string
		updated           string
	)
	p := &s.Profile
	err := row.Scan(&p.SubjectID, &p.Name, &p.Age, &p.WeightKg, &p.HeightCm, &goals, &p.ExperienceLevel,
		&p.Language, &assessment, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subject %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(goals), &p.Goals); err != nil {
		return nil, fmt.Errorf("failed to decode goals: %w", err)
	}
	if err := json.Unmarshal([]byte(assessment), &s.Assessment); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}
	if p.UpdatedAt, err = database.ParseTime(updated); err != nil {
		return nil, err
	}
	return &s, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
