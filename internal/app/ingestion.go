package app

import (
	"context"
	"errors"
	"fmt"

	"ai-fitness-coach/internal/knowledge"

	"go.uber.org/zap"
)

// GuidelineImporter fetches a guideline page.
type GuidelineImporter interface {
	Import(ctx context.Context, url string) (*knowledge.Guideline, error)
}

// GuidelineStore persists imported guidelines.
type GuidelineStore interface {
	Save(ctx context.Context, g *knowledge.Guideline) error
}

// ImportGuidelines fetches every URL and stores the cleaned text. A failing
// URL is logged and skipped; the returned error joins all failures.
func ImportGuidelines(ctx context.Context, imp GuidelineImporter, store GuidelineStore, urls []string, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		imported int
		errs     []error
	)
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return imported, err
		}

		g, err := imp.Import(ctx, url)
		if err != nil {
			log.Warn("failed to import guideline", zap.String("url", url), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		if err := store.Save(ctx, g); err != nil {
			log.Warn("failed to save guideline", zap.String("url", url), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		imported++
		log.Info("guideline imported", zap.String("url", url), zap.String("title", g.Title), zap.Int("chars", len(g.Body)))
	}
	return imported, errors.Join(errs...)
}
