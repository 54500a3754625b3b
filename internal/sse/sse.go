// Package sse reads and writes text/event-stream framing.
package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Message is one dispatched server-sent event.
type Message struct {
	// ID is the raw value of the last "id:" field seen in the message, if any.
	ID string
	// Type is the "event:" field; empty means the default "message" type.
	Type string
	// Data holds the "data:" lines joined with "\n".
	Data string
}

// Reader yields messages from an event stream. Comment lines and unknown fields
// are skipped. A message is dispatched at each blank line that follows at least
// one data line.
type Reader struct {
	r   *bufio.Reader
	msg Message
	err error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next message. It returns false at end of stream or on a
// read error; Err distinguishes the two.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	var (
		data    []string
		hasData bool
		id      string
		typ     string
	)
	dispatch := func() {
		r.msg = Message{ID: id, Type: typ, Data: strings.Join(data, "\n")}
	}
	for {
		line, err := r.r.ReadString('\n')
		if err != nil && line == "" {
			r.err = err
			if err == io.EOF && hasData {
				dispatch()
				return true
			}
			return false
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				dispatch()
				return true
			}
			id, typ = "", ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if ok {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			typ = value
		case "id":
			id = value
		}
	}
}

// Message returns the message produced by the last successful Next.
func (r *Reader) Message() Message {
	return r.msg
}

// Err returns the read error that stopped Next, or nil on a clean EOF.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// Write frames msg onto w. Multi-line data is split into one data line per line.
func Write(w io.Writer, msg Message) error {
	var b strings.Builder
	if msg.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", msg.ID)
	}
	if msg.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", msg.Type)
	}
	for _, line := range strings.Split(msg.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteComment writes a comment line, typically used as a keep-alive.
func WriteComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
