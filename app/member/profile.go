// Package member provides visitor profiles and community interactions.
package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Semior001/pulse/app/store"
	"golang.org/x/exp/slog"
)

// Defaults are shown in place of blank profile fields.
type Defaults struct {
	Name string
	Bio  string
}

// Profiles manages visitor profiles.
type Profiles struct {
	log      *slog.Logger
	store    store.Interface
	defaults Defaults
	now      func() time.Time
}

// NewProfiles makes a new profile service.
func NewProfiles(lg *slog.Logger, s store.Interface, defaults Defaults) *Profiles {
	return &Profiles{log: lg, store: s, defaults: defaults, now: time.Now}
}

// Get returns the visitor's profile, blank fields are filled with defaults.
func (p *Profiles) Get(ctx context.Context, visitorID string) (store.Profile, error) {
	prof, err := p.store.GetProfile(ctx, visitorID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		prof = store.Profile{VisitorID: visitorID}
	case err != nil:
		return store.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	if prof.Name == "" {
		prof.Name = p.defaults.Name
	}
	if prof.Bio == "" {
		prof.Bio = p.defaults.Bio
	}

	return prof, nil
}

// Save stores trimmed profile fields. A blank field reverts to its
// default, and the record is removed when both fields are blank.
func (p *Profiles) Save(ctx context.Context, visitorID, name, bio string) (store.Profile, error) {
	name, bio = strings.TrimSpace(name), strings.TrimSpace(bio)

	if name == "" && bio == "" {
		if err := p.store.DeleteProfile(ctx, visitorID); err != nil {
			return store.Profile{}, fmt.Errorf("delete profile: %w", err)
		}
		p.log.DebugCtx(ctx, "profile reset", slog.String("visitor_id", visitorID))
		return p.Get(ctx, visitorID)
	}

	prof := store.Profile{VisitorID: visitorID, Name: name, Bio: bio, UpdatedAt: p.now().UTC()}
	if err := p.store.PutProfile(ctx, prof); err != nil {
		return store.Profile{}, fmt.Errorf("put profile: %w", err)
	}

	p.log.DebugCtx(ctx, "profile saved", slog.String("visitor_id", visitorID))
	return p.Get(ctx, visitorID)
}
