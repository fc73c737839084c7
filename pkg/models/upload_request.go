package models

import (
	"errors"
	"fmt"
)

type Action string

const (
	ActionTranslateTitles       Action = "translate_titles"
	ActionTranslateDescriptions Action = "translate_descriptions"
)

var (
	ErrMissingInputFile    = errors.New("input file must be selected")
	ErrMissingExamplesFile = errors.New("examples file must be selected for title translation")
	ErrNoLanguages         = errors.New("at least one language must be selected")
	ErrUnknownAction       = errors.New("unknown action")
)

// UploadRequest is one form submission to /upload.
type UploadRequest struct {
	InputFile    string   `json:"input_file" form:"input_file"`
	ExamplesFile string   `json:"examples_file,omitempty" form:"examples_file"`
	Languages    []string `json:"languages" form:"languages"`
	UserPrompt   string   `json:"user_prompt,omitempty" form:"user_prompt"`
	Action       Action   `json:"action" form:"action"`
}

// Version is the form "version" field the backend uses to pick a flow.
func (r UploadRequest) Version() string {
	if r.Action == ActionTranslateDescriptions {
		return "2"
	}
	return "1"
}

// RequiredHeader is the column the input file must contain before the
// request may be submitted.
func (r UploadRequest) RequiredHeader() string {
	if r.Action == ActionTranslateDescriptions {
		return "Description"
	}
	return "Display Name"
}

func (r UploadRequest) Validate() error {
	switch r.Action {
	case ActionTranslateTitles, ActionTranslateDescriptions:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	if r.InputFile == "" {
		return ErrMissingInputFile
	}
	if r.Action == ActionTranslateTitles && r.ExamplesFile == "" {
		return ErrMissingExamplesFile
	}
	if len(r.Languages) == 0 {
		return ErrNoLanguages
	}
	return nil
}

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionTranslateTitles, ActionTranslateDescriptions:
		return Action(s), nil
	case "titles":
		return ActionTranslateTitles, nil
	case "descriptions":
		return ActionTranslateDescriptions, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}
