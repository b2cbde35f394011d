package anthropic

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single server-sent event: the "event:" type and the
// payload assembled from one or more "data:" lines.
type Event struct {
	Type string
	Data string
}

// EventScanner reads server-sent events from a byte stream. Events are
// delimited by blank lines; comment lines (":") and unrecognized fields
// are ignored. A final event without a trailing blank line before EOF
// is still delivered.
type EventScanner struct {
	r       *bufio.Reader
	current Event
	err     error
}

// NewEventScanner creates a scanner reading from r.
func NewEventScanner(r io.Reader) *EventScanner {
	return &EventScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next event. It returns false at end of stream or
// on error; call Err to tell the two apart.
func (s *EventScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.current = Event{}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, err := s.r.ReadString('\n')
		if err != nil && line == "" {
			if err != io.EOF {
				s.err = err
				return false
			}
			if hasData {
				// Emit the partial final event; next call ends the scan.
				s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				s.err = io.EOF
				return true
			}
			s.err = io.EOF
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			field, value = line, ""
		} else {
			// One leading space after the colon is part of the framing.
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		default:
			// "id", "retry", and anything newer carry nothing we need.
		}
	}
}

// Event returns the event parsed by the last successful Scan.
func (s *EventScanner) Event() Event {
	return s.current
}

// Err returns the first non-EOF error encountered while scanning.
func (s *EventScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
