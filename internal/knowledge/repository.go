package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ai-fitness-coach/internal/database"

	"github.com/google/uuid"
)

// Repository stores imported guidelines. Importing the same URL again
// replaces its text.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Save inserts g or replaces the guideline with the same source URL.
func (r *Repository) Save(ctx context.Context, g *Guideline) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.ImportedAt = r.now().UTC()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO coach_guidelines (id, source_url, title, body, active, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			active = excluded.active,
			imported_at = excluded.imported_at
		RETURNING id`,
		g.ID, g.SourceURL, g.Title, g.Body, g.Active, database.FormatTime(g.ImportedAt))
	if err := row.Scan(&g.ID); err != nil {
		return fmt.Errorf("failed to save guideline %s: %w", g.SourceURL, err)
	}
	return nil
}

// SetActive includes or excludes a guideline from prompts.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE coach_guidelines SET active = ? WHERE id = ?`, active, id); err != nil {
		return fmt.Errorf("failed to update guideline %s: %w", id, err)
	}
	return nil
}

// Active lists the active guidelines, oldest first.
func (r *Repository) Active(ctx context.Context) ([]Guideline, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_url, title, body, active, imported_at
		FROM coach_guidelines WHERE active = 1
		ORDER BY imported_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guidelines: %w", err)
	}
	defer rows.Close()

	var out []Guideline
	for rows.Next() {
		var (
			g        Guideline
			imported string
		)
		if err := rows.Scan(&g.ID, &g.SourceURL, &g.Title, &g.Body, &g.Active, &imported); err != nil {
			return nil, err
		}
		if g.ImportedAt, err = database.ParseTime(imported); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ActiveText joins the active guidelines into one block for a prompt. It is
// empty when there are none.
func (r *Repository) ActiveText(ctx context.Context) (string, error) {
	gs, err := r.Active(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(gs))
	for _, g := range gs {
		if g.Title != "" {
			parts = append(parts, g.Title+"\n"+g.Body)
			continue
		}
		parts = append(parts, g.Body)
	}
	return strings.Join(parts, "\n\n"), nil
}
