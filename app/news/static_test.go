package news

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStatic(t *testing.T) {
	s := DefaultStatic()
	assert.Equal(t, StaticName, s.Name())

	articles, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 6)

	assert.Equal(t, "South African Digital Arts Festival 2025 Announced", articles[0].Title)
	for _, a := range articles {
		assert.NotEmpty(t, a.Title)
		assert.NotEmpty(t, a.SourceName)
		assert.False(t, a.PublishedAt.IsZero(), "%q must be stamped", a.Title)
	}
}

func TestStatic_Articles(t *testing.T) {
	s := testStatic(t)

	got := s.Articles()
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got[0].PublishedAt, "stamped with now")
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), got[1].PublishedAt.UTC(), "kept as is")

	got[0].Title = "mutated"
	assert.Equal(t, "Durban Animation Studio Wins Award", s.Articles()[0].Title)
}

func TestNewStatic_Errors(t *testing.T) {
	_, err := NewStatic(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoArticles)

	_, err = NewStatic(strings.NewReader("- title: '[Removed]'\n- title: ''\n"))
	assert.ErrorIs(t, err, ErrNoArticles)

	_, err = NewStatic(strings.NewReader("title: not a list"))
	assert.ErrorContains(t, err, "parse fallback articles")
}
