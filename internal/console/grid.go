package console

import "strings"

// Cell is one character position on the screen.
type Cell struct {
	Content string
	Width   int
}

// Grid caches screen cells and tracks which rows changed since the last
// repaint.
type Grid struct {
	cells []Cell
	dirty []bool
	cols  int
	rows  int

	cursorX, cursorY int
}

// NewGrid creates a blank grid. Dimensions below 1 are raised to 1.
func NewGrid(cols, rows int) *Grid {
	cols, rows = max(cols, 1), max(rows, 1)
	g := &Grid{
		cells:   make([]Cell, cols*rows),
		dirty:   make([]bool, rows),
		cols:    cols,
		rows:    rows,
		cursorX: -1,
		cursorY: -1,
	}
	return g
}

func (g *Grid) Size() (cols, rows int) {
	return g.cols, g.rows
}

// Resize changes the dimensions, keeping the overlapping content. Every row
// is dirty afterwards.
func (g *Grid) Resize(cols, rows int) {
	cols, rows = max(cols, 1), max(rows, 1)
	if cols == g.cols && rows == g.rows {
		return
	}

	cells := make([]Cell, cols*rows)
	for y := 0; y < min(rows, g.rows); y++ {
		copy(cells[y*cols:y*cols+min(cols, g.cols)], g.cells[y*g.cols:])
	}

	g.cells = cells
	g.dirty = make([]bool, rows)
	g.cols = cols
	g.rows = rows
	g.MarkAllDirty()
}

// CellAt returns the cell at (x, y), or nil if out of bounds.
func (g *Grid) CellAt(x, y int) *Cell {
	if x < 0 || x >= g.cols || y < 0 || y >= g.rows {
		return nil
	}
	return &g.cells[y*g.cols+x]
}

// SetCell stores a cell and marks its row dirty if it changed.
func (g *Grid) SetCell(x, y int, content string, width int) bool {
	c := g.CellAt(x, y)
	if c == nil {
		return false
	}
	if c.Content == content && c.Width == width {
		return false
	}
	*c = Cell{Content: content, Width: width}
	g.dirty[y] = true
	return true
}

// UpdateCursor records the cursor position.
func (g *Grid) UpdateCursor(x, y int) {
	g.cursorX, g.cursorY = x, y
}

func (g *Grid) CursorPosition() (x, y int) {
	return g.cursorX, g.cursorY
}

func (g *Grid) MarkAllDirty() {
	for i := range g.dirty {
		g.dirty[i] = true
	}
}

func (g *Grid) ClearDirty() {
	clear(g.dirty)
}

// DirtyRows returns the indexes of rows changed since ClearDirty.
func (g *Grid) DirtyRows() []int {
	var rows []int
	for y, d := range g.dirty {
		if d {
			rows = append(rows, y)
		}
	}
	return rows
}

// Line returns row y as text with trailing blanks trimmed. Wide cells
// contribute their content once.
func (g *Grid) Line(y int) string {
	if y < 0 || y >= g.rows {
		return ""
	}
	var sb strings.Builder
	for x := 0; x < g.cols; {
		c := g.cells[y*g.cols+x]
		if c.Content == "" {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(c.Content)
		}
		x += max(c.Width, 1)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Lines returns every row, see Line.
func (g *Grid) Lines() []string {
	lines := make([]string, g.rows)
	for y := range lines {
		lines[y] = g.Line(y)
	}
	return lines
}
