package news

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Semior001/pulse/app/store"
	"github.com/samber/lo"
)

// Decoder converts a source response into articles.
type Decoder interface {
	Decode(rd io.Reader, src *url.URL) ([]store.Article, error)
}

// DecoderFunc is an adapter to use ordinary functions as Decoder.
type DecoderFunc func(rd io.Reader, src *url.URL) ([]store.Article, error)

// Decode calls f(rd, src).
func (f DecoderFunc) Decode(rd io.Reader, src *url.URL) ([]store.Article, error) { return f(rd, src) }

// Known provider kinds.
const (
	KindNewsAPI = "newsapi"
	KindGNews   = "gnews"
	KindRSS     = "rss"
	KindPage    = "page"
)

var decoders = map[string]Decoder{
	KindNewsAPI: DecoderFunc(decodeNewsAPI),
	KindGNews:   DecoderFunc(decodeGNews),
	KindRSS:     DecoderFunc(decodeFeed),
	KindPage:    DecoderFunc(decodePage),
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

func decodeNewsAPI(rd io.Reader, _ *url.URL) ([]store.Article, error) {
	var resp newsAPIResponse
	if err := json.NewDecoder(rd).Decode(&resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if !strings.EqualFold(resp.Status, "ok") {
		return nil, fmt.Errorf("api status %q: %s %s", resp.Status, resp.Code, resp.Message)
	}

	return lo.Map(resp.Articles, func(a newsAPIArticle, _ int) store.Article {
		return store.Article{
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			SourceName:  a.Source.Name,
			PublishedAt: parseTime(a.PublishedAt),
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			Author:      a.Author,
		}
	}), nil
}

type gnewsResponse struct {
	TotalArticles int      `json:"totalArticles"`
	Errors        []string `json:"errors"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func decodeGNews(rd io.Reader, _ *url.URL) ([]store.Article, error) {
	var resp gnewsResponse
	if err := json.NewDecoder(rd).Decode(&resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("api errors: %s", strings.Join(resp.Errors, "; "))
	}

	articles := make([]store.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		articles = append(articles, store.Article{
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			SourceName:  a.Source.Name,
			PublishedAt: parseTime(a.PublishedAt),
			URL:         a.URL,
			ImageURL:    a.Image,
		})
	}

	return articles, nil
}

// parseTime parses RFC3339 timestamps, unparseable ones are treated as unknown.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
