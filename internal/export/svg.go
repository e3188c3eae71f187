// Package export renders stored runs to files.
package export

import (
	"fmt"
	"math"
	"strings"
)

var palette = []string{"#00ff88", "#ff00ff", "#00ccff", "#ffcc00", "#ff4444", "#8888ff"}

// LinesSVG draws each series against x as a polyline over a shared range,
// one color per series, with an optional legend.
func LinesSVG(x []float64, series [][]float64, labels []string, width, height int) (string, error) {
	if len(x) < 2 {
		return "", fmt.Errorf("export: need at least 2 samples, got %d", len(x))
	}
	for k, s := range series {
		if len(s) != len(x) {
			return "", fmt.Errorf("export: series %d has %d samples, want %d", k, len(s), len(x))
		}
	}

	minX, maxX := x[0], x[len(x)-1]
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			minY, maxY = math.Min(minY, v), math.Max(maxY, v)
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if !(rangeY > 0) {
		rangeY = 1
	}
	// 10% vertical padding.
	minY -= rangeY * 0.1
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for k, s := range series {
		color := palette[k%len(palette)]
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color)
		for i, v := range s {
			px := (x[i] - minX) / rangeX * float64(width)
			py := float64(height) - (v-minY)/rangeY*float64(height)
			if i == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", px, py)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", px, py)
			}
		}
		sb.WriteString("\"/>\n")

		if k < len(labels) {
			fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16*(k+1), color, labels[k])
		}
	}

	sb.WriteString("</svg>\n")
	return sb.String(), nil
}
