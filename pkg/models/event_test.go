package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvents(t *testing.T) {
	testCases := []struct {
		name     string
		data     string
		expected []Event
	}{
		{
			name:     "numeric progress",
			data:     `{"language": "Swedish", "progress": 42}`,
			expected: []Event{ProgressEvent{Language: "Swedish", Percent: 42}},
		},
		{
			name:     "fractional progress is clamped",
			data:     `{"language": "Swedish", "progress": 140.5}`,
			expected: []Event{ProgressEvent{Language: "Swedish", Percent: 100}},
		},
		{
			name:     "numeric string progress",
			data:     `{"language": "Swedish", "progress": "17"}`,
			expected: []Event{ProgressEvent{Language: "Swedish", Percent: 17}},
		},
		{
			name:     "skipped",
			data:     `{"language": "Pig Latin", "progress": "skipped"}`,
			expected: []Event{SkippedEvent{Language: "Pig Latin"}},
		},
		{
			name:     "no examples",
			data:     `{"language": "Finnish", "progress": "no_examples"}`,
			expected: []Event{NoExamplesEvent{Language: "Finnish"}},
		},
		{
			name:     "skipped wins over complete status",
			data:     `{"language": "Finnish", "progress": "skipped", "status": "complete", "file": "fi.csv"}`,
			expected: []Event{SkippedEvent{Language: "Finnish"}},
		},
		{
			name:     "language complete",
			data:     `{"language": "Danish", "progress": 100, "status": "complete", "file": "da.csv"}`,
			expected: []Event{LanguageCompleteEvent{Language: "Danish", File: "da.csv"}},
		},
		{
			name:     "complete status without file is plain progress",
			data:     `{"language": "Danish", "progress": 100, "status": "complete"}`,
			expected: []Event{ProgressEvent{Language: "Danish", Percent: 100}},
		},
		{
			name:     "language without progress is ignored",
			data:     `{"language": "Danish", "status": "running"}`,
			expected: nil,
		},
		{
			name: "language complete followed by session complete",
			data: `{"language": "Danish", "progress": 100, "status": "complete", "file": "da.csv", "complete": true}`,
			expected: []Event{
				LanguageCompleteEvent{Language: "Danish", File: "da.csv"},
				SessionCompleteEvent{File: "da.csv"},
			},
		},
		{
			name:     "session complete",
			data:     `{"complete": true, "file": "all.zip"}`,
			expected: []Event{SessionCompleteEvent{File: "all.zip"}},
		},
		{
			name:     "session complete needs a file",
			data:     `{"complete": true}`,
			expected: nil,
		},
		{
			name:     "error wins over everything",
			data:     `{"error": "quota exceeded", "language": "German", "progress": 10, "complete": true, "file": "x"}`,
			expected: []Event{ErrorEvent{Language: "German", Message: "quota exceeded"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			events, err := DecodeEvents([]byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, events)
		})
	}
}

func TestDecodeEventsMalformed(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`{"language": "German", "progress": "halfway"}`,
		`{"language": "German", "progress": null}`,
	} {
		_, err := DecodeEvents([]byte(data))
		assert.True(t, errors.Is(err, ErrMalformedEvent), data)
	}
}

func TestLanguageEvents(t *testing.T) {
	var ev Event = SkippedEvent{Language: "Pig Latin"}
	le, ok := ev.(LanguageEvent)
	require.True(t, ok)
	assert.Equal(t, "Pig Latin", le.LanguageName())

	_, ok = Event(SessionCompleteEvent{File: "x"}).(LanguageEvent)
	assert.False(t, ok)
	_, ok = Event(ErrorEvent{Language: "German"}).(LanguageEvent)
	assert.False(t, ok)
}
