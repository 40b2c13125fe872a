package sse

import (
	"bufio"
	"io"
	"strings"
)

// event is one dispatched server-sent event.
type event struct {
	ID   string
	Type string
	Data string
}

// readEvents parses an event stream and calls dispatch for every event that
// carries data. It returns the read error that ended the stream (io.EOF for a
// clean end of body).
func readEvents(r io.Reader, dispatch func(event)) error {
	reader := bufio.NewReaderSize(r, 4096)

	var (
		data    strings.Builder
		hasData bool
		ev      event
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == "":
			// End of event
			if hasData {
				ev.Data = data.String()
				dispatch(ev)
			}
			data.Reset()
			hasData = false
			ev = event{}

		case strings.HasPrefix(line, ":"):
			// Comment, used as heartbeat

		default:
			field, value := splitField(line)
			switch field {
			case "data":
				if hasData {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				hasData = true
			case "id":
				ev.ID = value
			case "event":
				ev.Type = value
			}
		}

		if err != nil {
			return err
		}
	}
}

// splitField splits "field: value", removing a single leading space from the value.
func splitField(line string) (string, string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimPrefix(line[i+1:], " ")
}
