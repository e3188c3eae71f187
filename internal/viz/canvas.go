package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a braille pixel buffer of (2*Width) x (4*Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at sub-pixel (x, y); out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.Grid[y/4][x/2] |= pixelMap[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Profile clears the canvas and draws values as a polyline spanning the
// full width, with lo at the bottom row and hi at the top.
func (c *Canvas) Profile(values []float64, lo, hi float64) {
	c.Clear()
	if len(values) == 0 {
		return
	}
	w, h := 2*c.Width-1, 4*c.Height-1
	span := hi - lo
	if !(span > 0) {
		span = 1
	}
	project := func(i int) (int, int) {
		x := 0
		if len(values) > 1 {
			x = int(math.Round(float64(i) * float64(w) / float64(len(values)-1)))
		}
		f := math.Max(0, math.Min(1, (values[i]-lo)/span))
		return x, h - int(math.Round(f*float64(h)))
	}

	px, py := project(0)
	c.Set(px, py)
	for i := 1; i < len(values); i++ {
		x, y := project(i)
		c.DrawLine(px, py, x, y)
		px, py = x, y
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

var shades = []rune(" ░▒▓█")

// Heatmap renders an nx-by-ny nodal field row by row, top row at y max.
func Heatmap(values []float64, nx, ny int, lo, hi float64) string {
	span := hi - lo
	if !(span > 0) {
		span = 1
	}
	var b strings.Builder
	for j := ny - 1; j >= 0; j-- {
		for i := 0; i < nx; i++ {
			f := math.Max(0, math.Min(1, (values[j*nx+i]-lo)/span))
			r := shades[int(math.Round(f*float64(len(shades)-1)))]
			// Two columns per node keep the aspect ratio near square.
			b.WriteRune(r)
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
