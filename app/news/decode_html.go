package news

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Semior001/pulse/app/store"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

// descriptionLimit is a maximum length of feed item description, in runes.
const descriptionLimit = 300

func decodeFeed(rd io.Reader, _ *url.URL) ([]store.Article, error) {
	feed, err := gofeed.NewParser().Parse(rd)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]store.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := store.Article{
			Title:      strings.TrimSpace(item.Title),
			SourceName: feed.Title,
			URL:        item.Link,
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		a.Description = truncate(plainText(desc), descriptionLimit)

		switch {
		case item.PublishedParsed != nil:
			a.PublishedAt = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			a.PublishedAt = *item.UpdatedParsed
		}

		if item.Author != nil {
			a.Author = item.Author.Name
		}

		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		for _, enc := range item.Enclosures {
			if a.ImageURL == "" && strings.HasPrefix(enc.Type, "image/") {
				a.ImageURL = enc.URL
			}
		}

		articles = append(articles, a)
	}

	return articles, nil
}

// decodePage reduces a single HTML article page to one article.
func decodePage(rd io.Reader, src *url.URL) ([]store.Article, error) {
	doc, err := readability.FromReader(rd, src)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return []store.Article{{
		Title:       strings.TrimSpace(doc.Title),
		Description: truncate(strings.Join(strings.Fields(doc.Excerpt), " "), descriptionLimit),
		SourceName:  doc.SiteName,
		URL:         src.String(),
		ImageURL:    doc.Image,
		Author:      doc.Byline,
	}}, nil
}

// plainText drops markup from the html fragment and squashes whitespaces.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
