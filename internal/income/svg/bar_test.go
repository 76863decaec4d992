package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBarsProducesSVG(t *testing.T) {
	html, err := Bars(420, 220, []float64{150, 0, 75.5}, []string{"Jul 2024", "Aug 2024", "Sep 2024"}, BarOpts{
		Title:      "Income",
		ValueLabel: func(v float64) string { return "$" + formatTick(v) },
	})
	require.NoError(t, err)
	out := string(html)
	require.True(t, strings.HasPrefix(out, "<svg"))
	require.Equal(t, 3, strings.Count(out, "<rect"))
	require.Contains(t, out, "Aug 2024")
	require.Contains(t, out, "$150")
	require.Contains(t, out, `id="income-bar-title"`)
}

func TestBarsRejectsMismatchedInput(t *testing.T) {
	_, err := Bars(0, 0, []float64{1}, []string{"a", "b"}, BarOpts{})
	require.Error(t, err)

	_, err = Bars(0, 0, nil, nil, BarOpts{})
	require.Error(t, err)

	_, err = Bars(40, 40, []float64{1}, []string{"a"}, BarOpts{Padding: 30})
	require.Error(t, err)
}

func TestBarsEscapesLabels(t *testing.T) {
	html, err := Bars(0, 0, []float64{1}, []string{"<b>"}, BarOpts{Title: "x"})
	require.NoError(t, err)
	require.NotContains(t, string(html), "<b>")
	require.Contains(t, string(html), "&lt;b&gt;")
}

func TestFormatTick(t *testing.T) {
	require.Equal(t, "1.5k", formatTick(1500))
	require.Equal(t, "2.0M", formatTick(2_000_000))
	require.Equal(t, "12", formatTick(12))
	require.Equal(t, "0.25", formatTick(0.25))
}
