package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepBolt(t *testing.T) *Bolt {
	t.Helper()
	b, err := NewBolt(filepath.Join(t.TempDir(), "nested", "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return b
}

func TestBolt_Profile(t *testing.T) {
	b := prepBolt(t)
	ctx := context.Background()

	_, err := b.GetProfile(ctx, "visitor")
	assert.ErrorIs(t, err, ErrNotFound)

	p := Profile{
		VisitorID: "visitor",
		Name:      "Thandi",
		Bio:       "digital artist from Durban",
		UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.PutProfile(ctx, p))

	got, err := b.GetProfile(ctx, "visitor")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, b.DeleteProfile(ctx, "visitor"))
	_, err = b.GetProfile(ctx, "visitor")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBolt_Messages(t *testing.T) {
	b := prepBolt(t)
	ctx := context.Background()

	msgs, err := b.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msg := ContactMessage{
		ID:        "1",
		Name:      "Sipho",
		Email:     "sipho@example.co.za",
		Message:   "I would like to join the hackathon",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.PutMessage(ctx, msg))

	msgs, err = b.ListMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ContactMessage{msg}, msgs)
}

func TestBolt_Marks(t *testing.T) {
	b := prepBolt(t)
	ctx := context.Background()

	marked, err := b.Toggle(ctx, MarkEvent, "visitor", "1")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = b.Toggle(ctx, MarkEvent, "visitor", "2")
	require.NoError(t, err)
	assert.True(t, marked)

	ids, err := b.ListMarks(ctx, MarkEvent, "visitor")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	marked, err = b.Toggle(ctx, MarkEvent, "visitor", "1")
	require.NoError(t, err)
	assert.False(t, marked)

	ids, err = b.ListMarks(ctx, MarkEvent, "visitor")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)

	// kinds and visitors are isolated
	ids, err = b.ListMarks(ctx, MarkCollaboration, "visitor")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = b.ListMarks(ctx, MarkEvent, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, b.Mark(ctx, MarkDiscussion, "visitor", "7"))
	require.NoError(t, b.Mark(ctx, MarkDiscussion, "visitor", "7"))
	ids, err = b.ListMarks(ctx, MarkDiscussion, "visitor")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, ids)
}

func TestBolt_CountMarks(t *testing.T) {
	b := prepBolt(t)
	ctx := context.Background()

	n, err := b.CountMarks(ctx, MarkEvent, "bootcamp")
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, visitor := range []string{"v1", "v2", "v3"} {
		_, err = b.Toggle(ctx, MarkEvent, visitor, "bootcamp")
		require.NoError(t, err)
	}
	_, err = b.Toggle(ctx, MarkEvent, "v1", "festival")
	require.NoError(t, err)
	require.NoError(t, b.Mark(ctx, MarkDiscussion, "v4", "bootcamp"))

	n, err = b.CountMarks(ctx, MarkEvent, "bootcamp")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = b.Toggle(ctx, MarkEvent, "v2", "bootcamp")
	require.NoError(t, err)

	n, err = b.CountMarks(ctx, MarkEvent, "bootcamp")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = b.CountMarks(ctx, MarkEvent, "festival")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBolt_Comments(t *testing.T) {
	b := prepBolt(t)
	ctx := context.Background()

	comments, err := b.ListComments(ctx, "ai-art")
	require.NoError(t, err)
	assert.Empty(t, comments)

	first := Comment{ID: "1", DiscussionID: "ai-art", VisitorID: "v1", Text: "Great thread",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	second := Comment{ID: "2", DiscussionID: "ai-art", VisitorID: "v2", Text: "Agreed",
		CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	other := Comment{ID: "3", DiscussionID: "vr-museum", Text: "Visited yesterday",
		CreatedAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)}

	for _, c := range []Comment{first, second, other} {
		require.NoError(t, b.PutComment(ctx, c))
	}

	comments, err = b.ListComments(ctx, "ai-art")
	require.NoError(t, err)
	assert.Equal(t, []Comment{first, second}, comments, "posting order is kept")

	comments, err = b.ListComments(ctx, "vr-museum")
	require.NoError(t, err)
	assert.Equal(t, []Comment{other}, comments)
}
