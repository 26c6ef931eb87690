package console

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// Transcript writes serial output to w as plain text, one line at a time,
// with escape sequences removed and CRLF folded to LF.
type Transcript struct {
	mu    sync.Mutex
	w     io.Writer
	line  []byte
	lines int
}

func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

// Write implements io.Writer. Partial lines are held until their newline
// arrives or Flush is called.
func (t *Transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			t.line = append(t.line, p...)
			break
		}
		t.line = append(t.line, p[:i]...)
		p = p[i+1:]
		if err := t.emit(true); err != nil {
			return n - len(p), err
		}
	}
	return n, nil
}

func (t *Transcript) emit(newline bool) error {
	line := bytes.TrimSuffix(t.line, []byte{'\r'})
	text := ansi.Strip(string(line))
	t.line = t.line[:0]

	if newline {
		text += "\n"
		t.lines++
	}
	if text == "" {
		return nil
	}
	_, err := io.WriteString(t.w, text)
	return err
}

// Flush writes any partial line.
func (t *Transcript) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.line) == 0 {
		return nil
	}
	return t.emit(false)
}

// Lines returns the number of complete lines written.
func (t *Transcript) Lines() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lines
}
