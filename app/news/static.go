package news

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Semior001/pulse/app/store"
	"gopkg.in/yaml.v3"
)

//go:embed data/fallback.yaml
var defaultFallback []byte

// StaticName is the name of the bundled fallback source.
const StaticName = "static"

// Static is a source of bundled articles that never fails.
type Static struct {
	articles []store.Article
	now      func() time.Time
}

// DefaultStatic returns the bundled fallback content.
func DefaultStatic() *Static {
	s, err := NewStatic(bytes.NewReader(defaultFallback))
	if err != nil {
		panic(fmt.Sprintf("bundled fallback content is broken: %v", err))
	}
	return s
}

// NewStatic reads the YAML list of articles. The list must contain
// at least one article with a usable title.
func NewStatic(rd io.Reader) (*Static, error) {
	var articles []store.Article
	if err := yaml.NewDecoder(rd).Decode(&articles); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fallback articles: %w", err)
	}

	articles = ValidArticles(articles)
	if len(articles) == 0 {
		return nil, fmt.Errorf("fallback content: %w", ErrNoArticles)
	}

	return &Static{articles: articles, now: time.Now}, nil
}

// Name returns the name of the source.
func (s *Static) Name() string { return StaticName }

// Fetch returns a copy of bundled articles, those without a publication
// date are stamped with the current time.
func (s *Static) Fetch(context.Context) ([]store.Article, error) {
	return s.Articles(), nil
}

// Articles returns a copy of bundled articles, see Fetch.
func (s *Static) Articles() []store.Article {
	now := s.now()
	res := make([]store.Article, len(s.articles))
	copy(res, s.articles)
	for i := range res {
		if res[i].PublishedAt.IsZero() {
			res[i].PublishedAt = now
		}
	}
	return res
}
