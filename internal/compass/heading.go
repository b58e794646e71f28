// Package compass converts smoothed magnetometer axes into a bearing.
package compass

import (
	"fmt"
	"math"
)

// HeadingDegrees maps the magnetometer's X/Y components to a bearing.
//
// The half-turn rotation and the (y, x) argument order match how the sensor
// is mounted on the airframe; recalibrate against hardware before changing
// either. atan2(0, 0) is 0 in Go, so the zero vector reads the same as the
// positive X axis (180).
func HeadingDegrees(x, y float64) float64 {
	return math.Atan2(y, x)*180/math.Pi + 180
}

// Wrap folds a bearing into [0, 360). HeadingDegrees returns exactly 360 for
// the negative X axis; published headings use 0 for that direction.
func Wrap(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// math.Mod can return a tiny negative that rounds back up to 360.
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Format renders a bearing the way the display shows it: a zero-padded,
// three-digit whole number of degrees.
func Format(deg float64) string {
	return fmt.Sprintf("%03.0f", deg)
}
