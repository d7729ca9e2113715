package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Semior001/pulse/app/contact"
	"github.com/Semior001/pulse/app/member"
	"github.com/Semior001/pulse/app/news"
	"github.com/Semior001/pulse/app/store"
	"github.com/Semior001/pulse/pkg/httpmw"
	"github.com/Semior001/pulse/pkg/logx"
	cache "github.com/go-pkgz/expirable-cache/v2"
	"github.com/gorilla/mux"
	"golang.org/x/exp/slog"
)

// Server serves the news pages, the feed and the JSON API.
type Server struct {
	Logger         *slog.Logger
	Addr           string
	Loader         *news.Loader
	Renderer       *Renderer
	Contact        *contact.Service
	Profiles       *member.Profiles
	Community      *member.Community
	HandlerTimeout time.Duration
	RefreshTimeout time.Duration
	ReadyTimeout   time.Duration
	AdminToken     string

	pages      cache.Cache[pageKey, []byte]
	refreshing atomic.Bool
}

// pageKey identifies a rendered page, generation changes with
// every adopted article set.
type pageKey struct {
	generation uint64
	query      string
}

// Run starts the server and shuts it down gracefully when the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.InfoCtx(ctx, "starting http server", slog.String("addr", s.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen and serve: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	s.Logger.Warn("http server stopped")
	return nil
}

// Routes returns the http handler with all routes and middlewares.
func (s *Server) Routes() http.Handler {
	s.pages = cache.NewCache[pageKey, []byte]().
		WithLRU().
		WithMaxKeys(100)

	rtr := mux.NewRouter()
	rtr.Use(
		httpmw.RequestID,
		httpmw.Recover(s.Logger),
		httpmw.Logger(s.Logger),
		httpmw.Timeout(s.HandlerTimeout),
		s.visitor,
	)

	rtr.HandleFunc("/", s.newsPage).Methods(http.MethodGet)
	rtr.HandleFunc("/news", s.newsPage).Methods(http.MethodGet)
	rtr.HandleFunc("/news/refresh", s.refresh).Methods(http.MethodPost)
	rtr.HandleFunc("/news/feed.rss", s.feed).Methods(http.MethodGet)

	api := rtr.PathPrefix("/api").Subrouter()
	api.HandleFunc("/news", s.apiNews).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.apiStats).Methods(http.MethodGet)
	api.HandleFunc("/contact", s.submitContact).Methods(http.MethodPost)
	api.HandleFunc("/profile", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.saveProfile).Methods(http.MethodPut)
	api.HandleFunc("/community", s.communityMarks).Methods(http.MethodGet)
	api.HandleFunc("/community/events/{id}/registration", s.toggleRegistration).Methods(http.MethodPost)
	api.HandleFunc("/community/collaborations/{id}/interest", s.toggleInterest).Methods(http.MethodPost)
	api.HandleFunc("/community/discussions/{id}/open", s.openDiscussion).Methods(http.MethodPost)
	api.HandleFunc("/community/discussions/{id}/comments", s.listComments).Methods(http.MethodGet)
	api.HandleFunc("/community/discussions/{id}/comments", s.postComment).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminOnly)
	admin.HandleFunc("/messages", s.listMessages).Methods(http.MethodGet)

	return rtr
}

func (s *Server) newsPage(w http.ResponseWriter, r *http.Request) {
	query := news.Clean(r.URL.Query().Get("q"))
	s.awaitReady(r)
	snap := s.Loader.Snapshot()

	// pages of an unfinished load cycle are not cached, the generation
	// is bumped only when the cycle completes
	cacheable := snap.State == news.StateLoaded || snap.State == news.StateFallbackLoaded
	key := pageKey{generation: snap.Generation, query: query}

	if cacheable {
		if body, ok := s.pages.Get(key); ok {
			s.writeHTML(w, r, body)
			return
		}
	}

	buf := &bytes.Buffer{}
	if err := s.Renderer.Render(buf, BuildPage(snap, query)); err != nil {
		s.internalError(w, r, fmt.Errorf("render news page: %w", err))
		return
	}

	if cacheable {
		s.pages.Set(key, buf.Bytes(), 0)
	}

	s.writeHTML(w, r, buf.Bytes())
}

// awaitReady holds the request until the first load cycle completes,
// at most for ReadyTimeout. The loading page is served if it expires.
func (s *Server) awaitReady(r *http.Request) {
	select {
	case <-s.Loader.Ready():
		return
	default:
	}

	ctx := r.Context()
	if s.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ReadyTimeout)
		defer cancel()
	}

	select {
	case <-s.Loader.Ready():
	case <-ctx.Done():
		s.Logger.DebugCtx(r.Context(), "articles are not ready yet", slog.Any("err", ctx.Err()))
	}
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.refreshing.CompareAndSwap(false, true) {
		reqID, _ := logx.RequestIDFromContext(r.Context())
		go func() {
			defer s.refreshing.Store(false)

			ctx := context.Background()
			if s.RefreshTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.RefreshTimeout)
				defer cancel()
			}
			if reqID != "" {
				ctx = logx.ContextWithRequestID(ctx, reqID)
			}

			articles := s.Loader.Refresh(ctx)
			s.Logger.InfoCtx(ctx, "news refreshed", slog.Int("articles", len(articles)))
		}()
	}

	http.Redirect(w, r, "/news", http.StatusSeeOther)
}

func (s *Server) apiNews(w http.ResponseWriter, r *http.Request) {
	query := news.Clean(r.URL.Query().Get("q"))
	s.awaitReady(r)
	snap := s.Loader.Snapshot()
	articles := news.Filter(snap.Articles, query)
	if articles == nil {
		articles = []store.Article{}
	}

	s.writeJSON(w, r, http.StatusOK, struct {
		State    news.State      `json:"state"`
		Source   string          `json:"source,omitempty"`
		Query    string          `json:"query,omitempty"`
		Total    int             `json:"total"`
		Articles []store.Article `json:"articles"`
	}{
		State:    snap.State,
		Source:   snap.Source,
		Query:    query,
		Total:    len(articles),
		Articles: articles,
	})
}

func (s *Server) apiStats(w http.ResponseWriter, r *http.Request) {
	snap := s.Loader.Snapshot()
	stats := s.pages.Stat()

	type cacheStats struct {
		Hits    int `json:"hits"`
		Misses  int `json:"misses"`
		Added   int `json:"added"`
		Evicted int `json:"evicted"`
	}

	s.writeJSON(w, r, http.StatusOK, struct {
		State       news.State `json:"state"`
		Source      string     `json:"source,omitempty"`
		Generation  uint64     `json:"generation"`
		Articles    int        `json:"articles"`
		LoadedAt    time.Time  `json:"loaded_at"`
		Failures    []string   `json:"failures,omitempty"`
		RenderCache cacheStats `json:"render_cache"`
	}{
		State:      snap.State,
		Source:     snap.Source,
		Generation: snap.Generation,
		Articles:   len(snap.Articles),
		LoadedAt:   snap.LoadedAt,
		Failures:   snap.Failures,
		RenderCache: cacheStats{
			Hits:    stats.Hits,
			Misses:  stats.Misses,
			Added:   stats.Added,
			Evicted: stats.Evicted,
		},
	})
}

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) {
	var form contact.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.Contact.Submit(r.Context(), visitorFromContext(r.Context()), form)
	var verr *contact.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, r, http.StatusUnprocessableEntity, struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}{Error: "validation failed", Fields: verr.Fields})
		return
	case err != nil:
		s.internalError(w, r, fmt.Errorf("submit contact form: %w", err))
		return
	}

	s.writeJSON(w, r, http.StatusCreated, struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}{ID: msg.ID, Message: "Thank you for your message! We'll get back to you soon."})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.Profiles.Get(r.Context(), visitorFromContext(r.Context()))
	if err != nil {
		s.internalError(w, r, fmt.Errorf("get profile: %w", err))
		return
	}
	s.writeJSON(w, r, http.StatusOK, prof)
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Bio  string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	prof, err := s.Profiles.Save(r.Context(), visitorFromContext(r.Context()), req.Name, req.Bio)
	if err != nil {
		s.internalError(w, r, fmt.Errorf("save profile: %w", err))
		return
	}
	s.writeJSON(w, r, http.StatusOK, prof)
}

func (s *Server) communityMarks(w http.ResponseWriter, r *http.Request) {
	marks, err := s.Community.Marks(r.Context(), visitorFromContext(r.Context()))
	if err != nil {
		s.internalError(w, r, fmt.Errorf("list community marks: %w", err))
		return
	}
	s.writeJSON(w, r, http.StatusOK, marks)
}

func (s *Server) toggleRegistration(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	registered, err := s.Community.ToggleRegistration(r.Context(), visitorFromContext(r.Context()), eventID)
	if !s.communityError(w, r, err) {
		return
	}

	attendees, err := s.Community.Attendees(r.Context(), eventID)
	if !s.communityError(w, r, err) {
		return
	}

	s.writeJSON(w, r, http.StatusOK, struct {
		Registered bool `json:"registered"`
		Attendees  int  `json:"attendees"`
	}{Registered: registered, Attendees: attendees})
}

func (s *Server) toggleInterest(w http.ResponseWriter, r *http.Request) {
	interested, err := s.Community.ToggleInterest(r.Context(), visitorFromContext(r.Context()), mux.Vars(r)["id"])
	if !s.communityError(w, r, err) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, struct {
		Interested bool `json:"interested"`
	}{Interested: interested})
}

func (s *Server) openDiscussion(w http.ResponseWriter, r *http.Request) {
	err := s.Community.OpenDiscussion(r.Context(), visitorFromContext(r.Context()), mux.Vars(r)["id"])
	if !s.communityError(w, r, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.Community.Comments(r.Context(), mux.Vars(r)["id"])
	if !s.communityError(w, r, err) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, comments)
}

func (s *Server) postComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := s.Community.PostComment(r.Context(), visitorFromContext(r.Context()), mux.Vars(r)["id"], req.Text)
	if !s.communityError(w, r, err) {
		return
	}

	s.writeJSON(w, r, http.StatusCreated, struct {
		Comment store.Comment `json:"comment"`
		Message string        `json:"message"`
	}{Comment: comment, Message: "Comment posted!"})
}

// adminOnly lets through requests with the admin bearer token.
// Admin routes do not exist when no token is configured.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminToken == "" {
			s.writeError(w, r, http.StatusNotFound, "not found")
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminToken)) != 1 {
			s.Logger.WarnCtx(r.Context(), "unauthorized admin request", slog.String("path", r.URL.Path))
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.Contact.Messages(r.Context())
	if err != nil {
		s.internalError(w, r, fmt.Errorf("list contact messages: %w", err))
		return
	}
	s.writeJSON(w, r, http.StatusOK, msgs)
}

// communityError writes the error response, if any,
// and reports whether the handler may proceed.
func (s *Server) communityError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, member.ErrEmptyItemID):
		s.writeError(w, r, http.StatusBadRequest, "empty item id")
	case errors.Is(err, member.ErrEmptyComment):
		s.writeError(w, r, http.StatusBadRequest, "comment must not be empty")
	default:
		s.internalError(w, r, err)
	}
	return false
}

func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		s.Logger.WarnCtx(r.Context(), "failed to write response", slog.Any("err", err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.WarnCtx(r.Context(), "failed to write response", slog.Any("err", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	reqID, _ := logx.RequestIDFromContext(r.Context())
	s.writeJSON(w, r, status, struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id,omitempty"`
	}{Error: msg, RequestID: reqID})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.Logger.ErrorCtx(r.Context(), "request failed", slog.Any("err", err))
	s.writeError(w, r, http.StatusInternalServerError, "internal error")
}
