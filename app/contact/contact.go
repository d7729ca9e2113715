// Package contact validates and stores messages from the contact form.
package contact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Semior001/pulse/app/store"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Validation messages.
const (
	MsgRequired     = "This field is required"
	MsgNameTooShort = "Name must be at least 2 characters long"
	MsgInvalidEmail = "Please enter a valid email address"
	MsgMessageShort = "Message should be at least 10 characters long"
)

const (
	minNameLen    = 2
	minMessageLen = 10
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Form is a submitted contact form.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Trimmed returns the form with all fields trimmed.
func (f Form) Trimmed() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Subject: strings.TrimSpace(f.Subject),
		Message: strings.TrimSpace(f.Message),
	}
}

// ValidationError lists invalid fields with their messages.
type ValidationError struct {
	Fields map[string]string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Validate checks the form, nil means the form is valid.
func Validate(f Form) *ValidationError {
	f = f.Trimmed()
	fields := map[string]string{}

	switch {
	case f.Name == "":
		fields["name"] = MsgRequired
	case utf8.RuneCountInString(f.Name) < minNameLen:
		fields["name"] = MsgNameTooShort
	}

	switch {
	case f.Email == "":
		fields["email"] = MsgRequired
	case !emailRe.MatchString(f.Email):
		fields["email"] = MsgInvalidEmail
	}

	switch {
	case f.Message == "":
		fields["message"] = MsgRequired
	case utf8.RuneCountInString(f.Message) < minMessageLen:
		fields["message"] = MsgMessageShort
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Service accepts contact messages.
type Service struct {
	log   *slog.Logger
	store store.Interface
	now   func() time.Time
}

// NewService makes a new contact service.
func NewService(lg *slog.Logger, s store.Interface) *Service {
	return &Service{log: lg, store: s, now: time.Now}
}

// Submit validates the form and stores it as a message from the visitor.
// Invalid forms are reported with *ValidationError.
func (s *Service) Submit(ctx context.Context, visitorID string, f Form) (store.ContactMessage, error) {
	if verr := Validate(f); verr != nil {
		return store.ContactMessage{}, verr
	}

	f = f.Trimmed()
	msg := store.ContactMessage{
		ID:        uuid.New().String(),
		VisitorID: visitorID,
		Name:      f.Name,
		Email:     f.Email,
		Subject:   f.Subject,
		Message:   f.Message,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.PutMessage(ctx, msg); err != nil {
		return store.ContactMessage{}, fmt.Errorf("put message: %w", err)
	}

	s.log.InfoCtx(ctx, "contact message received",
		slog.String("message_id", msg.ID),
		slog.String("visitor_id", visitorID))

	return msg, nil
}

// Messages lists all received messages, newest first.
func (s *Service) Messages(ctx context.Context) ([]store.ContactMessage, error) {
	msgs, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	if msgs == nil {
		msgs = []store.ContactMessage{}
	}
	return msgs, nil
}
