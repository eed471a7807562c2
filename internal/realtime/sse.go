package realtime

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// WriteFrame encodes f in text/event-stream format.
func WriteFrame(w io.Writer, f Frame) error {
	var b bytes.Buffer
	if f.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", f.Event)
	}
	for _, line := range bytes.Split(f.Data, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := w.Write(b.Bytes())
	return err
}

// WriteComment writes a comment line, used as a keep-alive.
func WriteComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}

// FrameReader decodes a text/event-stream. Comments are skipped.
type FrameReader struct {
	scanner *bufio.Scanner
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	return &FrameReader{scanner: scanner}
}

// Next returns the next frame carrying data, or io.EOF at end of stream.
func (r *FrameReader) Next() (Frame, error) {
	var (
		frame Frame
		data  [][]byte
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				frame.Data = bytes.Join(data, []byte("\n"))
				return frame, nil
			}
			frame = Frame{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			frame.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			data = append(data, []byte(value))
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
