package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedEvent = errors.New("malformed progress event")

type EventKind string

const (
	KindError            EventKind = "error"
	KindProgress         EventKind = "progress"
	KindSkipped          EventKind = "skipped"
	KindNoExamples       EventKind = "no_examples"
	KindLanguageComplete EventKind = "language_complete"
	KindSessionComplete  EventKind = "session_complete"
)

// progress values the server sends instead of a percentage
const (
	ProgressSkipped    = "skipped"
	ProgressNoExamples = "no_examples"

	StatusComplete = "complete"
)

// Event is one server event kind decoded from a stream message.
type Event interface {
	Kind() EventKind
}

// LanguageEvent is implemented by events that target a single language bar.
type LanguageEvent interface {
	Event
	LanguageName() string
}

type ErrorEvent struct {
	Language string `json:"language,omitempty"`
	Message  string `json:"message"`
}

type ProgressEvent struct {
	Language string  `json:"language"`
	Percent  float64 `json:"percent"`
}

type SkippedEvent struct {
	Language string `json:"language"`
}

type NoExamplesEvent struct {
	Language string `json:"language"`
}

type LanguageCompleteEvent struct {
	Language string `json:"language"`
	File     string `json:"file"`
}

type SessionCompleteEvent struct {
	File string `json:"file"`
}

func (ErrorEvent) Kind() EventKind            { return KindError }
func (ProgressEvent) Kind() EventKind         { return KindProgress }
func (SkippedEvent) Kind() EventKind          { return KindSkipped }
func (NoExamplesEvent) Kind() EventKind       { return KindNoExamples }
func (LanguageCompleteEvent) Kind() EventKind { return KindLanguageComplete }
func (SessionCompleteEvent) Kind() EventKind  { return KindSessionComplete }

func (e ProgressEvent) LanguageName() string         { return e.Language }
func (e SkippedEvent) LanguageName() string          { return e.Language }
func (e NoExamplesEvent) LanguageName() string       { return e.Language }
func (e LanguageCompleteEvent) LanguageName() string { return e.Language }

// WireEvent is the JSON object carried by every stream message.
type WireEvent struct {
	Language string          `json:"language,omitempty"`
	Progress json.RawMessage `json:"progress,omitempty"`
	Status   string          `json:"status,omitempty"`
	File     string          `json:"file,omitempty"`
	Error    string          `json:"error,omitempty"`
	Complete bool            `json:"complete,omitempty"`
}

// DecodeEvents parses one stream message into the ordered list of events it
// carries. A message with an error yields only the ErrorEvent.
func DecodeEvents(data []byte) ([]Event, error) {
	var w WireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return w.Events()
}

func (w WireEvent) Events() ([]Event, error) {
	if w.Error != "" {
		return []Event{ErrorEvent{Language: w.Language, Message: w.Error}}, nil
	}

	var events []Event
	if w.Language != "" && len(w.Progress) > 0 {
		ev, err := w.languageEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if w.Complete && w.File != "" {
		events = append(events, SessionCompleteEvent{File: w.File})
	}
	return events, nil
}

func (w WireEvent) languageEvent() (Event, error) {
	raw := strings.TrimSpace(string(w.Progress))

	var label string
	isString := strings.HasPrefix(raw, `"`)
	if isString {
		if err := json.Unmarshal(w.Progress, &label); err != nil {
			return nil, fmt.Errorf("%w: progress %s", ErrMalformedEvent, raw)
		}
	}

	switch {
	case isString && label == ProgressSkipped:
		return SkippedEvent{Language: w.Language}, nil
	case isString && label == ProgressNoExamples:
		return NoExamplesEvent{Language: w.Language}, nil
	case w.Status == StatusComplete && w.File != "":
		return LanguageCompleteEvent{Language: w.Language, File: w.File}, nil
	}

	if isString {
		raw = label
	}
	percent, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: progress %s for %q", ErrMalformedEvent, string(w.Progress), w.Language)
	}
	return ProgressEvent{Language: w.Language, Percent: ClampPercent(percent)}, nil
}

func ClampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Envelope wraps an event with its kind for consumers that only see JSON.
type Envelope struct {
	Kind  EventKind `json:"kind"`
	Event Event     `json:"event"`
}

func NewEnvelope(ev Event) Envelope {
	return Envelope{Kind: ev.Kind(), Event: ev}
}
