package ui

import (
	"strings"
)

// Sparkline block characters, lowest to highest.
var sparklineBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width values as block characters scaled to
// [lo, hi]. When lo >= hi the range of the data itself is used.
// Values outside the range are clamped.
func Sparkline(data []float64, width int, lo, hi float64) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	if lo >= hi {
		lo, hi = data[0], data[0]
		for _, v := range data {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}

	levels := len(sparklineBlocks)
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for _, v := range data {
		level := levels / 2
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(levels-1))
			level = max(0, min(levels-1, level))
		}
		sb.WriteRune(sparklineBlocks[level])
	}
	return sb.String()
}

// Bar block characters.
const (
	BarFilled = '█'
	BarEmpty  = '░'
)

// Bar renders percent (clamped to 0-100) as a bar of width cells.
func Bar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	percent = max(0, min(100, percent))
	filled := int(percent / 100 * float64(width))
	return strings.Repeat(string(BarFilled), filled) + strings.Repeat(string(BarEmpty), width-filled)
}
