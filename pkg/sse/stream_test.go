package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvents(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, f := range frames {
		fmt.Fprint(w, f)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func fastPolicy(maxAttempts int) Policy {
	return Policy{MaxAttempts: maxAttempts, Delay: time.Millisecond}
}

func TestStreamReconnectsWithLastEventID(t *testing.T) {
	var (
		hits    atomic.Int32
		mu      sync.Mutex
		lastIDs []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		mu.Lock()
		lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
		mu.Unlock()
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		if n == 1 {
			writeEvents(w, "id: 1\ndata: first\n\n")
			return
		}
		writeEvents(w, "id: 2\ndata: second\n\n")
	}))
	defer srv.Close()

	s := NewStream(context.Background(), srv.Client(), srv.URL, fastPolicy(0))
	defer s.Close()

	msg, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Data)

	msg, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Data)
	assert.Equal(t, "2", msg.ID)

	mu.Lock()
	assert.Equal(t, []string{"", "1"}, lastIDs)
	mu.Unlock()
	assert.Equal(t, 1, s.Failures())
}

func TestStreamCappedGivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewStream(context.Background(), srv.Client(), srv.URL, fastPolicy(3))

	_, err := s.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconnectExhausted))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 3, s.Failures())

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamUnboundedKeepsTrying(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 5 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEvents(w, "data: finally\n\n")
	}))
	defer srv.Close()

	s := NewStream(context.Background(), srv.Client(), srv.URL, fastPolicy(0))
	defer s.Close()

	msg, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "finally", msg.Data)
	assert.Equal(t, 5, s.Failures())
}

func TestStreamClientErrorIsFatal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "missing files"}`)
	}))
	defer srv.Close()

	s := NewStream(context.Background(), srv.Client(), srv.URL, fastPolicy(0))

	_, err := s.Next()
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStreamRejectsNonEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	s := NewStream(context.Background(), srv.Client(), srv.URL, fastPolicy(0))
	_, err := s.Next()
	assert.ErrorIs(t, err, errUnexpectedContentType)
}

func TestStreamCloseUnblocksNext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, ": open\n\n")
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := NewStream(context.Background(), srv.Client(), srv.URL, fastPolicy(0))

	done := make(chan error, 1)
	go func() {
		_, err := s.Next()
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestStreamHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := NewStream(ctx, srv.Client(), srv.URL, Policy{Delay: 10 * time.Millisecond})
	_, err := s.Next()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
