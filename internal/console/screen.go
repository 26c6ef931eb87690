// Package console renders what the board prints on UART0: a Screen emulates
// the terminal on the other end of the serial line, and a Transcript keeps a
// plain-text log of it.
package console

import (
	"io"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/vt"
)

// Screen is a virtual terminal fed by the serial output.
type Screen struct {
	mu   sync.Mutex
	emu  *vt.SafeEmulator
	grid *Grid

	closeOnce sync.Once
	drained   chan struct{}
}

// NewScreen creates a cols x rows terminal.
func NewScreen(cols, rows int) *Screen {
	cols, rows = max(cols, 1), max(rows, 1)

	emu := vt.NewSafeEmulator(cols, rows)
	swallowQueries(emu)

	s := &Screen{
		emu:     emu,
		grid:    NewGrid(cols, rows),
		drained: make(chan struct{}),
	}
	s.grid.MarkAllDirty()

	// Nothing answers the board, so drop whatever the emulator sends back.
	go func() {
		defer close(s.drained)
		_, _ = io.Copy(io.Discard, emu)
	}()

	return s
}

// swallowQueries stops the emulator answering status and attribute queries.
func swallowQueries(emu *vt.SafeEmulator) {
	// DSR: CSI 5 n, CSI 6 n
	emu.RegisterCsiHandler('n', func(params ansi.Params) bool {
		n, _, ok := params.Param(0, 1)
		return ok && (n == 5 || n == 6)
	})
	// DECXCPR: CSI ? 6 n
	emu.RegisterCsiHandler(ansi.Command('?', 0, 'n'), func(params ansi.Params) bool {
		n, _, ok := params.Param(0, 1)
		return ok && n == 6
	})
	// DA1 and DA2
	emu.RegisterCsiHandler('c', func(params ansi.Params) bool {
		n, _, _ := params.Param(0, 0)
		return n == 0
	})
	emu.RegisterCsiHandler(ansi.Command('>', 0, 'c'), func(params ansi.Params) bool {
		n, _, _ := params.Param(0, 0)
		return n == 0
	})
}

// Write implements io.Writer. It feeds serial output into the terminal.
func (s *Screen) Write(p []byte) (int, error) {
	return s.emu.Write(p)
}

func (s *Screen) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Size()
}

// Resize changes the terminal dimensions.
func (s *Screen) Resize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols, rows = max(cols, 1), max(rows, 1)
	s.emu.Resize(cols, rows)
	s.grid.Resize(cols, rows)
}

// sync copies the emulator state into the grid. Callers hold mu.
func (s *Screen) sync() {
	cols, rows := s.grid.Size()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; {
			content, w := " ", 1
			if cell := s.emu.CellAt(x, y); cell != nil {
				if cell.Content != "" {
					content = cell.Content
				}
				if cell.Width > 1 {
					w = cell.Width
				}
			}
			s.grid.SetCell(x, y, content, w)
			x += w
		}
	}
	cur := s.emu.CursorPosition()
	s.grid.UpdateCursor(cur.X, cur.Y)
}

// Lines returns the visible text, one string per row.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync()
	return s.grid.Lines()
}

// Cursor returns the zero-based cursor position.
func (s *Screen) Cursor() (x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync()
	return s.grid.CursorPosition()
}

// Render repaints the rows that changed since the last Render onto w, or
// every row when full is set, and leaves the cursor where the terminal has
// it.
func (s *Screen) Render(w io.Writer, full bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sync()
	if full {
		s.grid.MarkAllDirty()
	}

	var buf []byte
	for _, y := range s.grid.DirtyRows() {
		buf = append(buf, ansi.CursorPosition(1, y+1)...)
		buf = append(buf, ansi.EraseEntireLine...)
		buf = append(buf, s.grid.Line(y)...)
	}
	if len(buf) == 0 {
		return nil
	}
	x, y := s.grid.CursorPosition()
	buf = append(buf, ansi.CursorPosition(x+1, y+1)...)

	s.grid.ClearDirty()
	_, err := w.Write(buf)
	return err
}

// Close stops the emulator.
func (s *Screen) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.emu.Close()
		<-s.drained
	})
	return err
}
