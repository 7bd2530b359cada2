package gsync

import "strconv"

// defaultColor is used when the provider supplies no usable color.
const defaultColor = "#3b82f6"

// palette is the application color set imported records are snapped to.
var palette = []string{
	"#ef4444", // red
	"#f97316", // orange
	"#f59e0b", // amber
	"#84cc16", // lime
	"#22c55e", // green
	"#14b8a6", // teal
	"#3b82f6", // blue
	"#6366f1", // indigo
	"#8b5cf6", // violet
	"#ec4899", // pink
	"#64748b", // slate
}

// nearestColor snaps an arbitrary provider hex color to the closest palette
// entry by squared RGB distance. Unparseable input falls back to the
// default.
func nearestColor(hex string) string {
	r, g, b, ok := parseHexColor(hex)
	if !ok {
		return defaultColor
	}

	best := palette[0]
	bestDist := 1 << 30
	for _, p := range palette {
		pr, pg, pb, _ := parseHexColor(p)
		d := sq(r-pr) + sq(g-pg) + sq(b-pb)
		if d < bestDist {
			bestDist = d
			best = p
		}
	}
	return best
}

func parseHexColor(hex string) (r, g, b int, ok bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

func sq(x int) int { return x * x }
