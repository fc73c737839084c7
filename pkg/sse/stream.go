package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
)

const DefaultRetryDelay = 3 * time.Second

var (
	ErrClosed             = errors.New("sse: stream closed")
	ErrReconnectExhausted = errors.New("sse: reconnect attempts exhausted")
)

// StatusError is returned when the server answers the stream request with a
// status that reconnecting cannot fix.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sse: %s answered %d", e.URL, e.StatusCode)
}

// Policy decides how a broken stream is retried.
type Policy struct {
	// MaxAttempts is the number of stream errors tolerated before giving up.
	// Zero retries forever.
	MaxAttempts int
	// Delay is used until the server sends a retry field.
	Delay time.Duration
}

// Unbounded retries forever, like a browser EventSource.
func Unbounded() Policy {
	return Policy{Delay: DefaultRetryDelay}
}

// Capped gives up on the n-th stream error.
func Capped(n int) Policy {
	return Policy{MaxAttempts: n, Delay: DefaultRetryDelay}
}

// Stream is a reconnecting event stream. It is consumed by a single
// goroutine calling Next; Close may be called from anywhere.
type Stream struct {
	client *http.Client
	url    string
	header http.Header
	policy Policy

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	body     io.ReadCloser
	decoder  *Decoder
	lastID   string
	delay    time.Duration
	failures int
}

func NewStream(ctx context.Context, client *http.Client, url string, policy Policy) *Stream {
	if client == nil {
		client = http.DefaultClient
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultRetryDelay
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		client: client,
		url:    url,
		header: http.Header{},
		policy: policy,
		ctx:    ctx,
		cancel: cancel,
		delay:  policy.Delay,
	}
}

// Header is sent with every connection attempt.
func (s *Stream) Header() http.Header {
	return s.header
}

// Failures is the number of stream errors seen so far.
func (s *Stream) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Next blocks until the next message arrives, reconnecting per the policy.
func (s *Stream) Next() (Message, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return Message{}, s.closedErr()
		}

		s.mu.Lock()
		decoder := s.decoder
		s.mu.Unlock()

		if decoder == nil {
			if err := s.connect(); err != nil {
				var statusErr *StatusError
				if errors.As(err, &statusErr) || errors.Is(err, errUnexpectedContentType) {
					s.Close()
					return Message{}, err
				}
				if err := s.fail(err); err != nil {
					return Message{}, err
				}
			}
			continue
		}

		msg, err := decoder.Next()
		s.track(decoder)
		if err == nil {
			return msg, nil
		}

		s.dropConnection()
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err := s.fail(err); err != nil {
			return Message{}, err
		}
	}
}

// Close stops the stream; pending and future Next calls return ErrClosed.
func (s *Stream) Close() error {
	s.cancel()
	s.dropConnection()
	return nil
}

var errUnexpectedContentType = errors.New("sse: response is not an event stream")

func (s *Stream) connect() error {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	for k, v := range s.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	s.mu.Lock()
	lastID := s.lastID
	s.mu.Unlock()
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: s.url}
		if retriableStatus(resp.StatusCode) {
			return fmt.Errorf("failed to open stream: %s", statusErr.Error())
		}
		return statusErr
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		resp.Body.Close()
		return fmt.Errorf("%w: %q", errUnexpectedContentType, resp.Header.Get("Content-Type"))
	}

	decoder := NewDecoder(resp.Body)
	decoder.lastEventID = lastID

	s.mu.Lock()
	s.body = resp.Body
	s.decoder = decoder
	s.mu.Unlock()
	log.WithField("url", s.url).Debug("event stream connected")
	return nil
}

func (s *Stream) track(d *Decoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID = d.LastEventID()
	if r := d.Retry(); r > 0 {
		s.delay = r
	}
}

func retriableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

func (s *Stream) dropConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body != nil {
		s.body.Close()
	}
	s.body = nil
	s.decoder = nil
}

// fail records a stream error and waits out the reconnect delay. It returns
// a non-nil error when the stream must not be retried.
func (s *Stream) fail(cause error) error {
	if s.ctx.Err() != nil {
		return s.closedErr()
	}

	s.mu.Lock()
	s.failures++
	failures := s.failures
	delay := s.delay
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"url":     s.url,
		"attempt": failures,
	}).WithError(cause).Warn("event stream error")

	if s.policy.MaxAttempts > 0 && failures >= s.policy.MaxAttempts {
		s.Close()
		return fmt.Errorf("%w after %d errors: %v", ErrReconnectExhausted, failures, cause)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return s.closedErr()
	case <-timer.C:
		return nil
	}
}

func (s *Stream) closedErr() error {
	if err := context.Cause(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ErrClosed
}
