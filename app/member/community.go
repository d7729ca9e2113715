package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Semior001/pulse/app/store"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

var (
	// ErrEmptyItemID is returned when the community item id is blank.
	ErrEmptyItemID = errors.New("empty item id")
	// ErrEmptyComment is returned when the comment has no text.
	ErrEmptyComment = errors.New("empty comment")
)

// commentLimit is a maximum length of a comment, in runes.
const commentLimit = 2000

// Marks are the community items the visitor interacted with.
type Marks struct {
	Events         []string `json:"events"`
	Collaborations []string `json:"collaborations"`
	Discussions    []string `json:"discussions"`
}

// Community tracks event registrations, collaboration interest
// and opened discussions per visitor.
type Community struct {
	log   *slog.Logger
	store store.Interface
	now   func() time.Time
}

// NewCommunity makes a new community service.
func NewCommunity(lg *slog.Logger, s store.Interface) *Community {
	return &Community{log: lg, store: s, now: time.Now}
}

// ToggleRegistration flips the visitor's registration for the event
// and reports whether the visitor is registered now.
func (c *Community) ToggleRegistration(ctx context.Context, visitorID, eventID string) (bool, error) {
	return c.toggle(ctx, store.MarkEvent, visitorID, eventID)
}

// ToggleInterest flips the visitor's interest in the collaboration
// and reports whether the visitor is interested now.
func (c *Community) ToggleInterest(ctx context.Context, visitorID, collabID string) (bool, error) {
	return c.toggle(ctx, store.MarkCollaboration, visitorID, collabID)
}

// Attendees returns the number of visitors registered for the event.
func (c *Community) Attendees(ctx context.Context, eventID string) (int, error) {
	id, err := itemID(eventID)
	if err != nil {
		return 0, err
	}

	n, err := c.store.CountMarks(ctx, store.MarkEvent, id)
	if err != nil {
		return 0, fmt.Errorf("count attendees of %s: %w", id, err)
	}
	return n, nil
}

// PostComment adds the visitor's comment to the discussion.
// The text is trimmed and cut to the comment limit.
func (c *Community) PostComment(ctx context.Context, visitorID, discussionID, text string) (store.Comment, error) {
	id, err := itemID(discussionID)
	if err != nil {
		return store.Comment{}, err
	}

	if text = strings.TrimSpace(text); text == "" {
		return store.Comment{}, ErrEmptyComment
	}
	if runes := []rune(text); len(runes) > commentLimit {
		text = string(runes[:commentLimit])
	}

	comment := store.Comment{
		ID:           uuid.New().String(),
		DiscussionID: id,
		VisitorID:    visitorID,
		Text:         text,
		CreatedAt:    c.now().UTC(),
	}

	if err = c.store.PutComment(ctx, comment); err != nil {
		return store.Comment{}, fmt.Errorf("put comment to %s: %w", id, err)
	}

	c.log.InfoCtx(ctx, "comment posted",
		slog.String("discussion_id", id),
		slog.String("comment_id", comment.ID))

	return comment, nil
}

// Comments lists comments of the discussion in posting order.
func (c *Community) Comments(ctx context.Context, discussionID string) ([]store.Comment, error) {
	id, err := itemID(discussionID)
	if err != nil {
		return nil, err
	}

	comments, err := c.store.ListComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list comments of %s: %w", id, err)
	}
	return comments, nil
}

// OpenDiscussion marks the discussion as opened by the visitor.
func (c *Community) OpenDiscussion(ctx context.Context, visitorID, discussionID string) error {
	id, err := itemID(discussionID)
	if err != nil {
		return err
	}

	if err = c.store.Mark(ctx, store.MarkDiscussion, visitorID, id); err != nil {
		return fmt.Errorf("mark discussion %s: %w", id, err)
	}
	return nil
}

// Marks lists all marks of the visitor.
func (c *Community) Marks(ctx context.Context, visitorID string) (Marks, error) {
	var res Marks
	for _, kind := range store.MarkKinds {
		ids, err := c.store.ListMarks(ctx, kind, visitorID)
		if err != nil {
			return Marks{}, fmt.Errorf("list %s: %w", kind, err)
		}

		switch kind {
		case store.MarkEvent:
			res.Events = ids
		case store.MarkCollaboration:
			res.Collaborations = ids
		case store.MarkDiscussion:
			res.Discussions = ids
		}
	}
	return res, nil
}

func (c *Community) toggle(ctx context.Context, kind store.MarkKind, visitorID, rawID string) (bool, error) {
	id, err := itemID(rawID)
	if err != nil {
		return false, err
	}

	marked, err := c.store.Toggle(ctx, kind, visitorID, id)
	if err != nil {
		return false, fmt.Errorf("toggle %s %s: %w", kind, id, err)
	}

	c.log.DebugCtx(ctx, "community mark toggled",
		slog.String("kind", string(kind)),
		slog.String("item_id", id),
		slog.Bool("marked", marked))

	return marked, nil
}

func itemID(s string) (string, error) {
	if s = strings.TrimSpace(s); s == "" {
		return "", ErrEmptyItemID
	}
	return s, nil
}
