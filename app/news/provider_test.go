package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Semior001/pulse/app/store"
	"github.com/go-pkgz/requester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepProvider(t *testing.T, cfg ProviderConfig, h http.HandlerFunc) *HTTPProvider {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	if cfg.URL == "" {
		cfg.URL = ts.URL + "/v2/top-headlines?country={{.Country}}&apiKey={{.APIKey}}"
	}
	if cfg.Name == "" {
		cfg.Name = "test"
	}

	p, err := NewHTTPProvider(cfg, Params{Country: "za", PageSize: 8, APIKey: "key"},
		requester.New(http.Client{}), time.Second)
	require.NoError(t, err)
	return p
}

func TestHTTPProvider_NewsAPI(t *testing.T) {
	p := prepProvider(t, ProviderConfig{Kind: KindNewsAPI}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/top-headlines", r.URL.Path)
		assert.Equal(t, "za", r.URL.Query().Get("country"))
		assert.Equal(t, "key", r.URL.Query().Get("apiKey"))
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"totalResults": 3,
			"articles": [
				{
					"source": {"id": null, "name": "News24"},
					"author": "Staff",
					"title": "Cape Town Tech Startups Secure Major Funding",
					"description": "Local technology companies receive investment.",
					"url": "https://example.co.za/cape",
					"urlToImage": "https://example.co.za/cape.jpg",
					"publishedAt": "2025-03-01T08:30:00Z"
				},
				{"source": {"name": "Removed"}, "title": "[Removed]"},
				{"source": {"name": "IOL"}, "title": "Durban Animation Studio", "publishedAt": "yesterday"}
			]
		}`))
	})

	got, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.Article{
		{
			Title:       "Cape Town Tech Startups Secure Major Funding",
			Description: "Local technology companies receive investment.",
			SourceName:  "News24",
			PublishedAt: time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC),
			URL:         "https://example.co.za/cape",
			ImageURL:    "https://example.co.za/cape.jpg",
			Author:      "Staff",
		},
		{Title: "Durban Animation Studio", SourceName: "IOL"},
	}, got)
	assert.Equal(t, "test", p.Name())
}

func TestHTTPProvider_Failures(t *testing.T) {
	tbl := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "bad status", status: http.StatusUnauthorized, body: `{"status":"error"}`, wantErr: "bad status code: 401"},
		{name: "declared error", status: http.StatusOK, body: `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`,
			wantErr: `api status "error": apiKeyInvalid Your API key is invalid`},
		{name: "broken json", status: http.StatusOK, body: `{"status":`, wantErr: "unmarshal response"},
		{name: "removed only", status: http.StatusOK, body: `{"status":"ok","articles":[{"title":"[Removed]"},{"title":""}]}`,
			wantErr: "no valid articles"},
		{name: "empty list", status: http.StatusOK, body: `{"status":"ok","articles":[]}`, wantErr: "no valid articles"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			p := prepProvider(t, ProviderConfig{Kind: KindNewsAPI}, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Fetch(context.Background())
			require.Error(t, err)

			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "test", perr.Provider)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPProvider_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	p, err := NewHTTPProvider(ProviderConfig{Name: "down", Kind: KindNewsAPI, URL: url},
		Params{}, requester.New(http.Client{}), time.Second)
	require.NoError(t, err)

	_, err = p.Fetch(context.Background())
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "down", perr.Provider)
	assert.Contains(t, err.Error(), "do request")
}

func TestHTTPProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	p, err := NewHTTPProvider(ProviderConfig{Name: "slow", Kind: KindNewsAPI, URL: ts.URL},
		Params{}, requester.New(http.Client{}), 20*time.Millisecond)
	require.NoError(t, err)

	_, err = p.Fetch(context.Background())
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPProvider_ProxyAndHeaders(t *testing.T) {
	var gotPath, gotHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Requested-With")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[{"title":"Via proxy"}]}`))
	}))
	defer ts.Close()

	p, err := NewHTTPProvider(ProviderConfig{
		Name:    "proxied",
		Kind:    KindNewsAPI,
		Proxy:   ts.URL + "/",
		URL:     "https://newsapi.org/v2/top-headlines?country={{.Country}}",
		Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
	}, Params{Country: "za"}, requester.New(http.Client{}), time.Second)
	require.NoError(t, err)

	got, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.Article{{Title: "Via proxy"}}, got)
	assert.Equal(t, "/https://newsapi.org/v2/top-headlines", gotPath)
	assert.Equal(t, "XMLHttpRequest", gotHeader)
}

func TestHTTPProvider_GNews(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		p := prepProvider(t, ProviderConfig{Kind: KindGNews}, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{
				"totalArticles": 1,
				"articles": [{
					"title": "Johannesburg Digital Arts Festival",
					"description": "Workshops and exhibitions",
					"content": "...",
					"url": "https://example.co.za/jhb",
					"image": "https://example.co.za/jhb.png",
					"publishedAt": "2025-03-02T09:00:00Z",
					"source": {"name": "Daily Maverick", "url": "https://dailymaverick.co.za"}
				}]
			}`))
		})

		got, err := p.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []store.Article{{
			Title:       "Johannesburg Digital Arts Festival",
			Description: "Workshops and exhibitions",
			SourceName:  "Daily Maverick",
			PublishedAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
			URL:         "https://example.co.za/jhb",
			ImageURL:    "https://example.co.za/jhb.png",
		}}, got)
	})

	t.Run("declared errors", func(t *testing.T) {
		p := prepProvider(t, ProviderConfig{Kind: KindGNews}, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errors": ["You did not provide an API key."]}`))
		})

		_, err := p.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "You did not provide an API key.")
	})
}

func TestHTTPProvider_RSS(t *testing.T) {
	p := prepProvider(t, ProviderConfig{Kind: KindRSS}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Mzansi Tech</title>
	<link>https://example.co.za</link>
	<item>
		<title>Young Coders Compete in National Hackathon</title>
		<link>https://example.co.za/hackathon</link>
		<description><![CDATA[<p>Students   from across <b>South Africa</b> build solutions.</p>]]></description>
		<pubDate>Sat, 01 Mar 2025 10:00:00 GMT</pubDate>
		<enclosure url="https://example.co.za/hackathon.jpg" type="image/jpeg" length="100"/>
	</item>
	<item>
		<title>[Removed]</title>
		<link>https://example.co.za/removed</link>
	</item>
</channel>
</rss>`))
	})

	got, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Young Coders Compete in National Hackathon", got[0].Title)
	assert.Equal(t, "Students from across South Africa build solutions.", got[0].Description)
	assert.Equal(t, "Mzansi Tech", got[0].SourceName)
	assert.Equal(t, "https://example.co.za/hackathon", got[0].URL)
	assert.Equal(t, "https://example.co.za/hackathon.jpg", got[0].ImageURL)
	assert.True(t, got[0].PublishedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestHTTPProvider_Page(t *testing.T) {
	p := prepProvider(t, ProviderConfig{Kind: KindPage}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
	<title>New Digital Museum Showcases African Heritage</title>
	<meta property="og:title" content="New Digital Museum Showcases African Heritage">
	<meta property="og:site_name" content="Heritage News">
	<meta name="author" content="Education Desk">
	<meta property="og:description" content="Interactive museum in Pretoria uses VR and AR.">
</head>
<body>
	<article>
		<h1>New Digital Museum Showcases African Heritage</h1>
		<p>Interactive museum in Pretoria uses VR and AR to bring South African history to life for visitors.
		The museum opens its doors to school groups first, with weekend sessions for families planned later in the year.</p>
		<p>Curators worked with local artists and historians to build the exhibitions, combining archive footage
		with reconstructions of historical sites that visitors can walk through using headsets.</p>
	</article>
</body>
</html>`))
	})

	got, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New Digital Museum Showcases African Heritage", got[0].Title)
	assert.Equal(t, "Heritage News", got[0].SourceName)
	assert.NotEmpty(t, got[0].URL)
}

func TestNewHTTPProvider_Errors(t *testing.T) {
	rq := requester.New(http.Client{})

	_, err := NewHTTPProvider(ProviderConfig{Name: "x", Kind: "carrier-pigeon", URL: "http://x"}, Params{}, rq, 0)
	assert.EqualError(t, err, `unknown provider kind "carrier-pigeon"`)

	_, err = NewHTTPProvider(ProviderConfig{Name: "x", Kind: KindNewsAPI, URL: "http://x/{{.Country"}, Params{}, rq, 0)
	assert.ErrorContains(t, err, "parse url template")

	_, err = NewHTTPProvider(ProviderConfig{Name: "x", Kind: KindNewsAPI, URL: "http://x/{{.Unknown}}"}, Params{}, rq, 0)
	assert.ErrorContains(t, err, "render url template")
}

func TestValidArticles(t *testing.T) {
	got := ValidArticles([]store.Article{
		{Title: "ok"},
		{Title: ""},
		{Title: "   "},
		{Title: "[Removed]"},
		{Title: " [Removed] "},
		{Title: "also ok"},
	})
	assert.Equal(t, []store.Article{{Title: "ok"}, {Title: "also ok"}}, got)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"Ngiyabonga kakhulu", 8, "Ngiya..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.input, tt.n), "truncate(%q, %d)", tt.input, tt.n)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags   here", "No tags here"},
		{"Rock &amp; roll", "Rock & roll"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plainText(tt.input), "plainText(%q)", tt.input)
	}
}
