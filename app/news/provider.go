// Package news contains the article source chain, the loader that
// orchestrates it and the search filter over loaded articles.
package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/Semior001/pulse/app/store"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
	"github.com/samber/lo"
)

//go:generate moq -out mock_provider.go . Provider

// Provider is a single source of articles.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]store.Article, error)
}

// ErrNoArticles is returned when a source responded with no usable articles.
var ErrNoArticles = errors.New("no valid articles")

// ProviderError is returned when a single source failed to provide articles.
type ProviderError struct {
	Provider string
	Err      error
}

// Error returns the error message.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

// Unwrap returns the cause.
func (e *ProviderError) Unwrap() error { return e.Err }

// removedTitle is a title set by news APIs for withdrawn articles.
const removedTitle = "[Removed]"

// ValidArticles drops articles without a usable title.
func ValidArticles(articles []store.Article) []store.Article {
	return lo.Filter(articles, func(a store.Article, _ int) bool {
		title := strings.TrimSpace(a.Title)
		return title != "" && title != removedTitle
	})
}

// Params are the values available to provider URL templates.
type Params struct {
	Country  string
	Topic    string
	PageSize int
	APIKey   string
}

// HTTPProvider fetches articles with a single GET request and
// decodes the response with the decoder of its kind.
type HTTPProvider struct {
	name    string
	url     string
	kind    string
	timeout time.Duration
	cl      *requester.Requester
	decoder Decoder
}

// NewHTTPProvider makes a provider from its config, rendering the URL
// template with the given params.
func NewHTTPProvider(cfg ProviderConfig, params Params, cl *requester.Requester, timeout time.Duration) (*HTTPProvider, error) {
	decoder, ok := decoders[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}

	tmpl, err := template.New(cfg.Name).Option("missingkey=error").Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url template: %w", err)
	}

	sb := &strings.Builder{}
	if err = tmpl.Execute(sb, params); err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	if len(cfg.Headers) > 0 {
		mws := make([]middleware.RoundTripperHandler, 0, len(cfg.Headers))
		for k, v := range cfg.Headers {
			mws = append(mws, middleware.Header(k, v))
		}
		cl = cl.With(mws...)
	}

	return &HTTPProvider{
		name:    cfg.Name,
		url:     cfg.Proxy + sb.String(),
		kind:    cfg.Kind,
		timeout: timeout,
		cl:      cl,
		decoder: decoder,
	}, nil
}

// Name returns the name of the provider.
func (p *HTTPProvider) Name() string { return p.name }

// Fetch makes a single attempt to fetch articles from the source.
func (p *HTTPProvider) Fetch(ctx context.Context) ([]store.Article, error) {
	articles, err := p.fetch(ctx)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Err: err}
	}
	return articles, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) ([]store.Article, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.cl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	articles, err := p.decoder.Decode(resp.Body, req.URL)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", p.kind, err)
	}

	if articles = ValidArticles(articles); len(articles) == 0 {
		return nil, ErrNoArticles
	}

	return articles, nil
}
