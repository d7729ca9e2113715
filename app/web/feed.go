package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"golang.org/x/exp/slog"
)

const (
	feedTitle       = "South African Digital Pulse"
	feedDescription = "Latest South African news on digital culture, arts and technology"
)

// feed exports the current article set as RSS 2.0.
func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	snap := s.Loader.Snapshot()

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s", scheme, r.Host)

	f := &feeds.Feed{
		Title:       feedTitle,
		Link:        &feeds.Link{Href: base + "/news"},
		Description: feedDescription,
		Created:     snap.LoadedAt,
	}
	if f.Created.IsZero() {
		f.Created = time.Now()
	}

	for _, a := range snap.Articles {
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: orDefault(a.URL, base+"/news")},
			Description: a.Description,
			Created:     a.PublishedAt,
		}
		if a.Author != "" {
			item.Author = &feeds.Author{Name: a.Author}
		}
		f.Items = append(f.Items, item)
	}

	rss, err := f.ToRss()
	if err != nil {
		s.internalError(w, r, fmt.Errorf("make rss: %w", err))
		return
	}

	s.Logger.DebugCtx(r.Context(), "served feed",
		slog.Int("items", len(f.Items)),
		slog.Int("content_length", len(rss)))

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err = w.Write([]byte(rss)); err != nil {
		s.Logger.WarnCtx(r.Context(), "failed to write response", slog.Any("err", err))
	}
}
