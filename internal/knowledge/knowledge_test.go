package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ai-fitness-coach/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guidelinePage = `
<html>
	<head><title> Coaching Standards </title><script>track();</script></head>
	<body>
		<nav>Home | About</nav>
		<h1>How we coach</h1>
		<div class="ads">Buy our shakes!</div>
		<p>Keep   protein high on training days.</p>
		<ul>
			<li>Sleep at least 7 hours.</li>
			<li>Deload every fourth week.</li>
		</ul>
		<script>more()</script>
		<footer>Copyright 2026</footer>
	</body>
</html>`

func TestImporter_Import(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(guidelinePage))
	}))
	defer ts.Close()

	g, err := NewImporter(ts.Client()).Import(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "Coaching Standards", g.Title)
	assert.Equal(t, ts.URL, g.SourceURL)
	assert.True(t, g.Active)
	assert.Equal(t, strings.Join([]string{
		"### How we coach",
		"Keep protein high on training days.",
		"- Sleep at least 7 hours.",
		"- Deload every fourth week.",
	}, "\n"), g.Body)

	for _, noise := range []string{"track()", "Buy our shakes", "Copyright", "Home | About"} {
		assert.NotContains(t, g.Body, noise)
	}
}

func TestImporter_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.Write([]byte(`<html><body><script>x()</script></body></html>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	imp := NewImporter(ts.Client())
	_, err := imp.Import(context.Background(), ts.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = imp.Import(context.Background(), ts.URL+"/empty")
	assert.ErrorContains(t, err, "no readable text")
}

func TestRepository_SaveAndActiveText(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "coach.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db.SQL)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { now = now.Add(time.Minute); return now }

	text, err := repo.ActiveText(ctx)
	require.NoError(t, err)
	assert.Empty(t, text)

	first := &Guideline{SourceURL: "https://coach.example/a", Title: "Nutrition", Body: "Eat whole foods.", Active: true}
	second := &Guideline{SourceURL: "https://coach.example/b", Body: "Warm up properly.", Active: true}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	text, err = repo.ActiveText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Nutrition\nEat whole foods.\n\nWarm up properly.", text)

	// Re-importing a URL replaces the text and keeps the id.
	again := &Guideline{SourceURL: "https://coach.example/a", Title: "Nutrition", Body: "Eat mostly whole foods.", Active: true}
	require.NoError(t, repo.Save(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, repo.SetActive(ctx, second.ID, false))
	active, err := repo.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Eat mostly whole foods.", active[0].Body)
}
