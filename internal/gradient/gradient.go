// Package gradient maps scalar values onto a three-stop colour ramp for
// heatmap cells.
package gradient

import (
	"fmt"
	"math"
)

// RGB is an 8-bit colour.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String renders the colour as a CSS rgb() value.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Hex renders the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette stops of the Default ramp, also used for status badges.
// Treat them as constants.
var (
	// Green marks the quietest values and complete cases.
	Green = RGB{34, 197, 94}
	// Yellow marks the midpoint and pending cases.
	Yellow = RGB{234, 179, 8}
	// Red marks the busiest values and incomplete cases.
	Red = RGB{239, 68, 68}
)

// Ramp is a low → mid → high colour ramp.
type Ramp struct {
	Low  RGB
	Mid  RGB
	High RGB
}

// Default is the dashboard palette: green for quiet, red for busy.
var Default = Ramp{Low: Green, Mid: Yellow, High: Red}

// Color maps value within [min, max] onto the default ramp.
func Color(value, min, max float64) RGB {
	return Default.At(value, min, max)
}

// At maps value within [min, max] onto the ramp. A zero-width range and
// non-finite inputs yield the mid colour. Values outside the range clamp to
// the end stops.
func (r Ramp) At(value, min, max float64) RGB {
	if min == max {
		return r.Mid
	}
	t := (value - min) / (max - min)
	if math.IsNaN(t) {
		return r.Mid
	}
	t = math.Max(0, math.Min(1, t))

	if t <= 0.5 {
		return lerp(r.Low, r.Mid, t*2)
	}
	return lerp(r.Mid, r.High, (t-0.5)*2)
}

// Scale colours each value against the min and max of the whole series.
func (r Ramp) Scale(values []float64) []RGB {
	out := make([]RGB, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for i, v := range values {
		out[i] = r.At(v, lo, hi)
	}
	return out
}

func lerp(from, to RGB, blend float64) RGB {
	return RGB{
		R: channel(from.R, to.R, blend),
		G: channel(from.G, to.G, blend),
		B: channel(from.B, to.B, blend),
	}
}

func channel(c0, c1 uint8, blend float64) uint8 {
	v := math.Round(float64(c0) + (float64(c1)-float64(c0))*blend)
	return uint8(math.Max(0, math.Min(255, v)))
}
