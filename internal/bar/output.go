package bar

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Segment is one element of an i3bar status line.
type Segment struct {
	Name     string `json:"name,omitempty"`
	FullText string `json:"full_text"`
	Urgent   bool   `json:"urgent,omitempty"`
}

type header struct {
	Version     int  `json:"version"`
	ClickEvents bool `json:"click_events"`
}

// Writer emits the i3bar JSON protocol: a header object followed by an
// endless array of status lines.
type Writer struct {
	w       io.Writer
	started bool
}

// NewWriter creates a protocol writer on top of w (normally stdout).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader emits the protocol header and opens the status-line array.
func (o *Writer) WriteHeader(clickEvents bool) error {
	h, err := json.Marshal(header{Version: 1, ClickEvents: clickEvents})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(o.w, "%s\n[\n", h)
	return err
}

// WriteLine emits one status line.
func (o *Writer) WriteLine(segments []Segment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	prefix := ""
	if o.started {
		prefix = ","
	}
	o.started = true
	_, err = fmt.Fprintf(o.w, "%s%s\n", prefix, data)
	return err
}

// ReadClicks parses the i3bar click-event stream from r and delivers events
// on out. It returns when r reaches EOF or fails. The stream is a JSON array
// written one object per line; the array framing is tolerated rather than
// parsed.
func ReadClicks(r io.Reader, out chan<- ClickEvent) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		line = bytes.TrimPrefix(line, []byte("["))
		line = bytes.TrimPrefix(line, []byte(","))
		line = bytes.TrimSuffix(line, []byte("]"))
		if len(line) == 0 {
			continue
		}
		var ev ClickEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			// Not a click event; hosts occasionally send noise on stdin.
			continue
		}
		out <- ev
	}
	return scanner.Err()
}
