// Package web serves the news pages, the news feed and the JSON API.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/Semior001/pulse/app/news"
	"github.com/Semior001/pulse/app/store"
)

// Display fallbacks for blank article fields.
const (
	DefaultDescription = "Read more about this developing story..."
	DefaultSource      = "News Source"
	DefaultDate        = "Recent"
	DefaultURL         = "#"
	DefaultAuthor      = "Staff Reporter"

	dateLayout = "2 Jan 2006"
)

var placeholderColours = []string{"7F3C3C", "3C7F7F", "5FAFAF", "2C5530", "F2C94C"}

// PlaceholderImage returns the image shown for the i-th card without an image.
func PlaceholderImage(i int) string {
	return fmt.Sprintf("https://via.placeholder.com/400x200/%s/FFFFFF?text=South+African+News",
		placeholderColours[i%len(placeholderColours)])
}

// Card is a single article prepared for display.
type Card struct {
	Title       []news.Segment
	Description []news.Segment
	Source      string
	Date        string
	Author      string
	URL         string
	ImageURL    string
}

// Page is everything needed to render the news page.
type Page struct {
	Loading   bool
	Demo      bool
	Source    string
	Query     string
	Searching bool
	NoMatches bool
	Total     int
	Cards     []Card
}

// BuildPage prepares the page for the snapshot and the query.
func BuildPage(snap news.Snapshot, query string) Page {
	query = news.Clean(query)

	p := Page{
		Source:    snap.Source,
		Query:     query,
		Searching: query != "",
		Demo:      snap.State == news.StateFallbackLoaded,
	}

	if len(snap.Articles) == 0 && (snap.State == news.StateLoading || snap.State == news.StateIdle) {
		p.Loading = true
		return p
	}

	articles := news.Filter(snap.Articles, query)
	hl := news.NewHighlighter(query)

	p.Total = len(articles)
	p.NoMatches = p.Searching && p.Total == 0
	p.Cards = make([]Card, 0, len(articles))
	for i, a := range articles {
		p.Cards = append(p.Cards, makeCard(i, a, hl))
	}

	return p
}

func makeCard(i int, a store.Article, hl news.Highlighter) Card {
	c := Card{
		Title:       hl.Segments(a.Title),
		Description: hl.Segments(orDefault(a.Description, DefaultDescription)),
		Source:      orDefault(a.SourceName, DefaultSource),
		Date:        DefaultDate,
		Author:      orDefault(a.Author, DefaultAuthor),
		URL:         orDefault(a.URL, DefaultURL),
		ImageURL:    orDefault(a.ImageURL, PlaceholderImage(i)),
	}
	if !a.PublishedAt.IsZero() {
		c.Date = a.PublishedAt.Format(dateLayout)
	}
	return c
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

//go:embed templates/*.html
var templates embed.FS

// Renderer writes pages as HTML documents.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the bundled templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"plural": func(n int, one, many string) string {
			if n == 1 {
				return one
			}
			return many
		},
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the full HTML document of the page.
func (r *Renderer) Render(w io.Writer, p Page) error {
	if err := r.tmpl.ExecuteTemplate(w, "news.html", p); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}
