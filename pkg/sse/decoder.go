// Package sse reads server-sent event streams and reconnects them the way a
// browser EventSource does.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

const maxLineSize = 1 << 20

// Message is one dispatched event.
type Message struct {
	ID    string
	Event string
	Data  string
}

// Decoder splits an event stream body into messages.
type Decoder struct {
	scanner     *bufio.Scanner
	lastEventID string
	retry       time.Duration
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	scanner.Split(scanLines)
	return &Decoder{scanner: scanner}
}

// LastEventID is the most recent id field seen, dispatched or not.
func (d *Decoder) LastEventID() string {
	return d.lastEventID
}

// Retry is the reconnection delay most recently requested by the server, or
// zero if none was sent.
func (d *Decoder) Retry() time.Duration {
	return d.retry
}

// Next returns the next message carrying data. It returns io.EOF when the
// stream ends; a trailing block without a blank line is discarded.
func (d *Decoder) Next() (Message, error) {
	var (
		msg  Message
		data strings.Builder
		typ  string
	)
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if data.Len() == 0 {
				typ = ""
				continue
			}
			msg.Data = strings.TrimSuffix(data.String(), "\n")
			msg.Event = typ
			if msg.Event == "" {
				msg.Event = "message"
			}
			msg.ID = d.lastEventID
			return msg, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
		case "event":
			typ = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastEventID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := d.scanner.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

// scanLines accepts \n, \r\n and a bare \r as line terminators.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// need one more byte to tell \r from \r\n
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
