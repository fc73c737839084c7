package sse

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder(t *testing.T) {
	body := ": keepalive\n" +
		"data: {\"language\": \"Swedish\", \"progress\": 10}\n\n" +
		"id: 7\r\n" +
		"event: update\r\n" +
		"data: line one\r\n" +
		"data:line two\r\n\r\n" +
		"retry: 1500\n\n" +
		"data: bare cr\r\r" +
		"data: unterminated"

	d := NewDecoder(strings.NewReader(body))

	msg, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, Message{Event: "message", Data: `{"language": "Swedish", "progress": 10}`}, msg)

	msg, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, Message{ID: "7", Event: "update", Data: "line one\nline two"}, msg)

	msg, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, "bare cr", msg.Data)
	assert.Equal(t, "7", msg.ID)
	assert.Equal(t, 1500*time.Millisecond, d.Retry())

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderIgnoresEmptyBlocks(t *testing.T) {
	d := NewDecoder(strings.NewReader("event: ping\n\nid: 3\n\ndata: x\n\n"))

	msg, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, Message{ID: "3", Event: "message", Data: "x"}, msg)
	assert.Equal(t, "3", d.LastEventID())
}
