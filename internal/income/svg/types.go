// Package svg renders the income chart as inline SVG, without JavaScript.
package svg

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	Color       string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	// ValueLabel formats the value printed above each bar; nil hides labels.
	ValueLabel func(float64) string
}

// Defaults for the income chart.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 32.0
	DefaultTicks   = 5
)
