package news

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Semior001/pulse/app/store"
	"github.com/Semior001/pulse/pkg/logx"
	"golang.org/x/exp/slog"
)

// ErrAllProvidersExhausted is an internal signal that every provider of
// the chain failed and the fallback content must be used.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// State is a state of the loader.
type State int

// Loader states. Loaded and FallbackLoaded are terminal for a load cycle.
const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFallbackLoaded
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFallbackLoaded:
		return "fallback_loaded"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is an immutable view of the loader's current article set.
type Snapshot struct {
	State      State
	Source     string
	Articles   []store.Article
	Generation uint64
	LoadedAt   time.Time
	Failures   []string
}

// Options defines options for Loader.
type Options struct {
	Logger *slog.Logger
}

// Option defines a function that configures Loader.
type Option func(*Options)

// WithLogger sets the logger to use.
func WithLogger(lg *slog.Logger) Option {
	return func(o *Options) { o.Logger = lg }
}

// Loader tries providers in order and adopts the articles of the
// first one that succeeds, falling back to the static content when
// all of them fail. Loader owns the current article set, readers
// access it via snapshots.
type Loader struct {
	providers []Provider
	fallback  *Static
	Options

	inflight sync.Mutex // serializes load cycles

	mu   sync.RWMutex
	snap Snapshot

	ready     chan struct{}
	readyOnce sync.Once
}

// NewLoader makes a new Loader.
func NewLoader(providers []Provider, fallback *Static, opts ...Option) *Loader {
	options := Options{Logger: slog.New(logx.NoOp())}
	for _, opt := range opts {
		opt(&options)
	}

	return &Loader{
		providers: providers,
		fallback:  fallback,
		Options:   options,
		ready:     make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the first load cycle completes.
func (l *Loader) Ready() <-chan struct{} { return l.ready }

// Snapshot returns the current state of the loader.
func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := l.snap
	snap.Articles = append([]store.Article(nil), l.snap.Articles...)
	snap.Failures = append([]string(nil), l.snap.Failures...)
	return snap
}

// Load runs the chain from the first provider and returns the adopted
// articles. It never fails, the fallback content is used when all
// providers fail. Calls are serialized, a call made during the
// in-flight cycle waits for it to complete and then runs its own.
func (l *Loader) Load(ctx context.Context) []store.Article {
	l.inflight.Lock()
	defer l.inflight.Unlock()

	l.startCycle(false)
	return l.load(ctx)
}

// Refresh discards the current article set and loads from scratch.
func (l *Loader) Refresh(ctx context.Context) []store.Article {
	l.inflight.Lock()
	defer l.inflight.Unlock()

	l.startCycle(true)
	return l.load(ctx)
}

func (l *Loader) startCycle(discard bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snap.State = StateLoading
	if discard {
		l.snap.Articles = nil
		l.snap.Source = ""
		l.snap.Failures = nil
	}
}

func (l *Loader) load(ctx context.Context) []store.Article {
	start := time.Now()

	articles, source, failures, err := l.runChain(ctx)
	state := StateLoaded
	if err != nil {
		l.Logger.WarnCtx(ctx, "using fallback content", slog.Any("err", err))
		articles, source, state = l.fallback.Articles(), l.fallback.Name(), StateFallbackLoaded
	}

	l.Logger.InfoCtx(ctx, "articles adopted",
		slog.String("source", source),
		slog.String("state", state.String()),
		slog.Int("count", len(articles)),
		slog.Duration("elapsed", time.Since(start)),
	)

	l.mu.Lock()
	l.snap = Snapshot{
		State:      state,
		Source:     source,
		Articles:   articles,
		Generation: l.snap.Generation + 1,
		LoadedAt:   time.Now(),
		Failures:   failures,
	}
	l.mu.Unlock()

	l.readyOnce.Do(func() { close(l.ready) })

	return append([]store.Article(nil), articles...)
}

// runChain tries providers sequentially, each one exactly once.
func (l *Loader) runChain(ctx context.Context) ([]store.Article, string, []string, error) {
	errs := []error{ErrAllProvidersExhausted}
	var failures []string

	for _, p := range l.providers {
		articles, err := p.Fetch(ctx)
		if err == nil {
			if articles = ValidArticles(articles); len(articles) == 0 {
				err = ErrNoArticles
			}
		}

		if err == nil {
			return articles, p.Name(), failures, nil
		}

		var perr *ProviderError
		if !errors.As(err, &perr) {
			err = &ProviderError{Provider: p.Name(), Err: err}
		}

		l.Logger.WarnCtx(ctx, "provider failed",
			slog.String("provider", p.Name()),
			slog.Any("err", err),
		)

		errs = append(errs, err)
		failures = append(failures, err.Error())
	}

	return nil, "", failures, errors.Join(errs...)
}
