package httpmw

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Semior001/pulse/pkg/logx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestRequestID(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = logx.RequestIDFromContext(r.Context())
		require.True(t, ok)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		assert.NotEmpty(t, got)
		assert.Equal(t, got, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(RequestIDHeader, "0b5c6e1e-7c7f-4a8e-9d3a-2f1b8c4d5e6f")
		h.ServeHTTP(rec, req)
		assert.Equal(t, "0b5c6e1e-7c7f-4a8e-9d3a-2f1b8c4d5e6f", got)
		assert.Equal(t, "0b5c6e1e-7c7f-4a8e-9d3a-2f1b8c4d5e6f", rec.Header().Get(RequestIDHeader))
	})

	t.Run("malformed replaced", func(t *testing.T) {
		for _, bad := range []string{"upstream-id", "id\nrequest_id=forged", strings.Repeat("a", 4096)} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(RequestIDHeader, bad)
			h.ServeHTTP(rec, req)
			assert.NotEqual(t, bad, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err, "generated id must be a uuid")
			assert.Equal(t, got, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestRecover(t *testing.T) {
	buf := &bytes.Buffer{}
	lg := slog.New(slog.HandlerOptions{}.NewTextHandler(buf))

	h := Recover(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	lg := slog.New(slog.HandlerOptions{}.NewTextHandler(buf))

	h := Logger(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", http.NoBody))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, buf.String(), "request processed")
	assert.Contains(t, buf.String(), "status=201")
	assert.Contains(t, buf.String(), "path=/api/contact")
}

func TestTimeout(t *testing.T) {
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			assert.ErrorIs(t, r.Context().Err(), context.DeadlineExceeded)
			w.WriteHeader(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestTimeout_Zero(t *testing.T) {
	h := Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		assert.False(t, ok, "no deadline expected")
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}
