package main

import (
	"math"

	"github.com/gdamore/tcell/v2"
)

// Point represents a 2D point on the screen
type Point struct {
	X, Y int
}

// Terminal characters are ~2:1 (height:width)
const aspectRatio = 0.5

// StereographicProjection converts elevation/azimuth to screen X/Y using a
// stereographic projection centred on the zenith.
// Elevation: 0° = horizon (edge), 90° = zenith (center)
// Azimuth: 0° = North = top, 90° = East = right
func StereographicProjection(elevation, azimuth float64, centerX, centerY, radius float64) Point {
	azRad := azimuth * math.Pi / 180.0

	// r = 2R * tan(zen / 2), zen = 90° - elevation
	zenithAngle := (90.0 - elevation) * math.Pi / 180.0
	r := radius * math.Tan(zenithAngle/2.0)

	x := r * math.Sin(azRad) / aspectRatio
	y := -r * math.Cos(azRad) // Y increases downward

	return Point{
		X: int(math.Round(centerX + x)),
		Y: int(math.Round(centerY + y)),
	}
}

// ringRadius returns the projected radius of an elevation ring.
func ringRadius(elevation float64, radius int) int {
	zenithAngle := (90.0 - elevation) * math.Pi / 180.0
	return int(math.Round(float64(radius) * math.Tan(zenithAngle/2.0)))
}

// drawCircle draws a circle using Bresenham's circle algorithm, stretching X
// by the aspect ratio.
func drawCircle(screen tcell.Screen, cx, cy, radius int, char rune, style tcell.Style) {
	x := 0
	y := radius
	d := 3 - 2*radius

	for x <= y {
		xs := int(float64(x) / aspectRatio)
		ys := int(float64(y) / aspectRatio)
		screen.SetContent(cx+xs, cy+y, char, nil, style)
		screen.SetContent(cx-xs, cy+y, char, nil, style)
		screen.SetContent(cx+xs, cy-y, char, nil, style)
		screen.SetContent(cx-xs, cy-y, char, nil, style)
		screen.SetContent(cx+ys, cy+x, char, nil, style)
		screen.SetContent(cx-ys, cy+x, char, nil, style)
		screen.SetContent(cx+ys, cy-x, char, nil, style)
		screen.SetContent(cx-ys, cy-x, char, nil, style)

		x++
		if d > 0 {
			y--
			d = d + 4*(x-y) + 10
		} else {
			d = d + 4*x + 6
		}
	}
}

// drawLine draws a line using Bresenham's line algorithm
func drawLine(screen tcell.Screen, x0, y0, x1, y1 int, char rune, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		screen.SetContent(x0, y0, char, nil, style)
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

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
