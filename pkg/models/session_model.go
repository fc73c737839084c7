package models

import "time"

// Session is one submitted translation run as recorded in the ledger.
type Session struct {
	ID           string        `json:"id" db:"id"`
	InputFile    string        `json:"input_file" db:"input_file"`
	ExamplesFile string        `json:"examples_file" db:"examples_file"`
	Action       Action        `json:"action" db:"action"`
	Status       SessionStatus `json:"status" db:"status"`
	CombinedFile string        `json:"combined_file" db:"combined_file"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// LanguageResult is the final state of one language within a session.
type LanguageResult struct {
	SessionID string   `json:"session_id" db:"session_id"`
	Language  string   `json:"language" db:"language"`
	State     BarState `json:"state" db:"state"`
	File      string   `json:"file" db:"file"`
}

type BarState string

const (
	BarRunning    BarState = "running"
	BarSkipped    BarState = "skipped"
	BarNoExamples BarState = "no_examples"
	BarComplete   BarState = "complete"
	BarError      BarState = "error"
)

// Terminal reports whether no further updates are expected for the bar.
func (s BarState) Terminal() bool {
	return s == BarSkipped || s == BarNoExamples || s == BarComplete
}

// Label is the text shown inside a finished bar.
func (s BarState) Label() string {
	switch s {
	case BarSkipped:
		return "Skipped"
	case BarNoExamples:
		return "No Examples"
	case BarComplete:
		return "Complete"
	case BarError:
		return "Error"
	}
	return ""
}
