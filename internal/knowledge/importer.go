// Package knowledge imports coach guidelines from web pages and keeps them
// for the optional guidelines block of generation prompts.
package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxBodyChars bounds the text kept from one page.
const maxBodyChars = 6000

// Guideline is the cleaned text of an imported page.
type Guideline struct {
	ID         string
	SourceURL  string
	Title      string
	Body       string
	Active     bool
	ImportedAt time.Time
}

// Importer fetches pages and reduces them to readable text.
type Importer struct {
	client *http.Client
}

// NewImporter creates an Importer. A nil client uses a 15 second timeout.
func NewImporter(client *http.Client) *Importer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Importer{client: client}
}

// Import fetches url and extracts its title and body text.
func (i *Importer) Import(ctx context.Context, url string) (*Guideline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	g := &Guideline{SourceURL: url, Active: true}
	g.Title = collapse(doc.Find("title").First().Text())
	if g.Title == "" {
		g.Title = collapse(doc.Find("h1").First().Text())
	}
	g.Body = cleanText(doc)
	if g.Body == "" {
		return nil, fmt.Errorf("no readable text at %s", url)
	}
	return g, nil
}

// cleanText keeps one line per heading, paragraph and list item, dropping
// page chrome.
func cleanText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, iframe, form, aside, .ads, #ads").Remove()

	var (
		lines []string
		size  int
	)
	doc.Find("body").Find("h1, h2, h3, h4, p, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// Nested list items are reached through their own li.
		if goquery.NodeName(s) == "p" && s.ParentsFiltered("li").Length() > 0 {
			return true
		}
		text := collapse(s.Text())
		if text == "" {
			return true
		}
		switch goquery.NodeName(s) {
		case "li":
			text = "- " + text
		case "h1", "h2", "h3", "h4":
			text = "### " + text
		}
		if size+len(text) > maxBodyChars {
			return false
		}
		size += len(text) + 1
		lines = append(lines, text)
		return true
	})

	if len(lines) == 0 {
		return collapse(doc.Find("body").Text())
	}
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
