// Package cmd contains commands for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Semior001/pulse/app/contact"
	"github.com/Semior001/pulse/app/member"
	"github.com/Semior001/pulse/app/news"
	"github.com/Semior001/pulse/app/store"
	"github.com/Semior001/pulse/app/web"
	"github.com/Semior001/pulse/pkg/logx"
	"github.com/adrg/xdg"
	"github.com/go-pkgz/requester"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Serve is a command to serve the news site.
type Serve struct {
	Listen    string `long:"listen" env:"LISTEN" default:":8080" description:"address to listen on"`
	StorePath string `long:"store-path" env:"STORE_PATH" description:"bolt file path, defaults to $XDG_DATA_HOME/pulse/pulse.db"`
	Providers string `long:"providers" env:"PROVIDERS" description:"providers config file, bundled chain is used if empty"`

	News struct {
		NewsAPIKey     string        `long:"newsapi-key" env:"NEWSAPI_KEY" description:"newsapi.org key"`
		GNewsKey       string        `long:"gnews-key" env:"GNEWS_KEY" description:"gnews.io key"`
		Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"timeout for a single provider request"`
		RefreshTimeout time.Duration `long:"refresh-timeout" env:"REFRESH_TIMEOUT" default:"1m" description:"timeout for a whole load cycle"`
	} `group:"news" namespace:"news" env-namespace:"NEWS"`

	Member struct {
		DefaultName string `long:"default-name" env:"DEFAULT_NAME" default:"Digital Pulse Member" description:"name shown for profiles without one"`
		DefaultBio  string `long:"default-bio" env:"DEFAULT_BIO" default:"Passionate about South African digital culture." description:"bio shown for profiles without one"`
	} `group:"member" namespace:"member" env-namespace:"MEMBER"`

	HandlerTimeout time.Duration `long:"handler-timeout" env:"HANDLER_TIMEOUT" default:"30s" description:"timeout for http handlers"`
	ReadyTimeout   time.Duration `long:"ready-timeout" env:"READY_TIMEOUT" default:"5s" description:"how long news requests wait for the first load"`
	AdminToken     string        `long:"admin-token" env:"ADMIN_TOKEN" description:"bearer token for admin api, admin api is disabled if empty"`
}

// Execute runs the command.
func (s Serve) Execute(_ []string) error {
	lg := slog.Default()

	storePath, err := s.storePath()
	if err != nil {
		return fmt.Errorf("resolve store path: %w", err)
	}

	st, err := store.NewBolt(storePath)
	if err != nil {
		return fmt.Errorf("make store: %w", err)
	}

	defer func() {
		if err := st.Close(); err != nil {
			lg.Error("close bolt store", slog.Any("err", err))
		}
	}()

	loader, err := s.makeLoader(lg)
	if err != nil {
		return fmt.Errorf("make news loader: %w", err)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("make renderer: %w", err)
	}

	srv := &web.Server{
		Logger:   lg.With(slog.String("prefix", "web")),
		Addr:     s.Listen,
		Loader:   loader,
		Renderer: renderer,
		Contact:  contact.NewService(lg.With(slog.String("prefix", "contact")), st),
		Profiles: member.NewProfiles(lg.With(slog.String("prefix", "profiles")), st, member.Defaults{
			Name: s.Member.DefaultName,
			Bio:  s.Member.DefaultBio,
		}),
		Community:      member.NewCommunity(lg.With(slog.String("prefix", "community")), st),
		HandlerTimeout: s.HandlerTimeout,
		RefreshTimeout: s.News.RefreshTimeout,
		ReadyTimeout:   s.ReadyTimeout,
		AdminToken:     s.AdminToken,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sig:
			slog.Warn("caught signal, stopping", slog.String("signal", sig.String()))
			stop()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ewg.Go(func() error {
		s.initialLoad(ctx, lg, loader)
		return nil
	})
	ewg.Go(func() error { return srv.Run(ctx) })

	if err := ewg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// initialLoad runs the first load cycle, bounded by the refresh timeout if set.
func (s Serve) initialLoad(ctx context.Context, lg *slog.Logger, loader *news.Loader) []store.Article {
	if s.News.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.News.RefreshTimeout)
		defer cancel()
	}

	lg.Info("loading initial articles")
	articles := loader.Load(ctx)
	lg.Info("initial articles loaded", slog.Int("count", len(articles)))
	return articles
}

func (s Serve) storePath() (string, error) {
	if s.StorePath != "" {
		return s.StorePath, nil
	}
	return xdg.DataFile(filepath.Join("pulse", "pulse.db"))
}

func (s Serve) makeLoader(lg *slog.Logger) (*news.Loader, error) {
	cfg, err := news.LoadChainConfig(s.Providers)
	if err != nil {
		return nil, fmt.Errorf("load providers config: %w", err)
	}

	cl := requester.New(http.Client{},
		logx.LoggingRoundTripper(lg.With(slog.String("prefix", "providers")), logx.RoundTripperOpts{
			Level:         slog.LevelDebug,
			SecretHeaders: []string{"Authorization", "X-Api-Key"},
			SecretParams:  []string{"apiKey", "apikey"},
		}),
	)

	providers, err := cfg.Build(cl, map[string]string{
		"newsapi": s.News.NewsAPIKey,
		"gnews":   s.News.GNewsKey,
	}, s.News.Timeout)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	return news.NewLoader(providers, news.DefaultStatic(),
		news.WithLogger(lg.With(slog.String("prefix", "loader")))), nil
}
