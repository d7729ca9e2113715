// Package store contains entities and services to persist them.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is an error that is returned when the requested entity is not found.
var ErrNotFound = errors.New("not found")

// Interface defines methods for store
type Interface interface {
	GetProfile(ctx context.Context, visitorID string) (Profile, error)
	PutProfile(ctx context.Context, p Profile) error
	DeleteProfile(ctx context.Context, visitorID string) error

	PutMessage(ctx context.Context, msg ContactMessage) error
	ListMessages(ctx context.Context) ([]ContactMessage, error)

	Toggle(ctx context.Context, kind MarkKind, visitorID, itemID string) (bool, error)
	Mark(ctx context.Context, kind MarkKind, visitorID, itemID string) error
	ListMarks(ctx context.Context, kind MarkKind, visitorID string) ([]string, error)
	CountMarks(ctx context.Context, kind MarkKind, itemID string) (int, error)

	PutComment(ctx context.Context, c Comment) error
	ListComments(ctx context.Context, discussionID string) ([]Comment, error)
}

// Article is a single news record, as provided by a news source.
type Article struct {
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	SourceName  string    `json:"source_name,omitempty" yaml:"source_name"`
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at"`
	URL         string    `json:"url,omitempty" yaml:"url"`
	ImageURL    string    `json:"image_url,omitempty" yaml:"image_url"`
	Author      string    `json:"author,omitempty" yaml:"author"`
}

// Profile is a community member profile, edited by the visitor.
type Profile struct {
	VisitorID string    `json:"visitor_id"`
	Name      string    `json:"name,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	VisitorID string    `json:"visitor_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a visitor's comment in a community discussion.
type Comment struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	VisitorID    string    `json:"visitor_id,omitempty"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarkKind enumerates the kinds of per-visitor community marks.
type MarkKind string

// Known mark kinds.
const (
	MarkEvent         MarkKind = "events"
	MarkCollaboration MarkKind = "collaborations"
	MarkDiscussion    MarkKind = "discussions"
)

// MarkKinds lists all mark kinds, each backed by its own bucket.
var MarkKinds = []MarkKind{MarkEvent, MarkCollaboration, MarkDiscussion}
