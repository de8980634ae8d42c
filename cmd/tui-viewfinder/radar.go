package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// Character aspect ratio correction: terminal characters are ~2:1
// (height:width), so X distances are stretched to make circles look round.
const aspectRatio = 0.5

// radarSize returns the radar grid dimensions for the current terminal.
func (m model) radarSize() (width, height int) {
	width = m.width - 40 // Reserve space for info panel
	if width < 60 {
		width = 60
	}
	height = m.height - 12 // Reserve space for header and aircraft list
	if height < 20 {
		height = 20
	}
	return width, height
}

// radarScale returns the grid centre and the characters per nautical mile.
func (m model) radarScale() (centerX, centerY int, maxScreenRadius, scale float64) {
	width, height := m.radarSize()
	centerX = (width - 2) / 2
	centerY = height / 2

	// Fit radius within the smaller dimension
	maxScreenRadiusY := float64(height/2 - 1)
	maxScreenRadiusX := float64(width/2-3) * aspectRatio
	maxScreenRadius = math.Min(maxScreenRadiusX, maxScreenRadiusY)
	return centerX, centerY, maxScreenRadius, maxScreenRadius / m.radius
}

// radarToScreen converts a position to radar grid X/Y.
// Returns -1,-1 if the position is outside the radar radius or the grid.
func (m model) radarToScreen(pos coordinates.Geographic) (int, int) {
	distanceNM := coordinates.DistanceNauticalMiles(m.center, pos)
	if distanceNM > m.radius {
		return -1, -1
	}

	width, height := m.radarSize()
	centerX, centerY, _, scale := m.radarScale()

	// Bearing 0° = North = up = negative Y
	bearingRad := coordinates.Bearing(m.center, pos) * coordinates.DegreesToRadians
	screenDist := distanceNM * scale

	dx := int(math.Round(screenDist * math.Sin(bearingRad) / aspectRatio))
	dy := -int(math.Round(screenDist * math.Cos(bearingRad)))

	x, y := centerX+dx, centerY+dy
	if x < 0 || x >= width-2 || y < 0 || y >= height {
		return -1, -1
	}
	return x, y
}

// ringInterval picks a range ring spacing giving at most five rings.
func ringInterval(radius float64) float64 {
	for _, interval := range []float64{5, 10, 25, 50, 100, 250, 500} {
		if radius/interval <= 5 {
			return interval
		}
	}
	return 1000
}

// renderRadar renders the scope centred on m.center.
func (m model) renderRadar() string {
	var radar strings.Builder

	width, height := m.radarSize()
	centerX, centerY, maxScreenRadius, scale := m.radarScale()

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	radar.WriteString(borderStyle.Render("┌" + strings.Repeat("─", width-2) + "┐"))
	radar.WriteString("\n")

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width-2)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	// Range rings with labels at the top of each ring
	interval := ringInterval(m.radius)
	for dist := interval; dist <= m.radius; dist += interval {
		screenRadius := int(dist * scale)
		drawCircle(grid, centerX, centerY, screenRadius, '─')

		label := fmt.Sprintf("%.0f", dist)
		labelY := centerY - screenRadius
		labelX := centerX - len(label)/2
		if labelY >= 0 && labelY < height {
			for j, ch := range label {
				if x := labelX + j; x >= 0 && x < width-2 {
					grid[labelY][x] = ch
				}
			}
		}
	}

	// Cardinal directions
	r := int(maxScreenRadius)
	setRune(grid, centerX, centerY-r, 'N')
	setRune(grid, centerX+int(maxScreenRadius/aspectRatio), centerY, 'E')
	setRune(grid, centerX, centerY+r, 'S')
	setRune(grid, centerX-int(maxScreenRadius/aspectRatio), centerY, 'W')

	// Observer
	if x, y := m.radarToScreen(m.observer); x >= 0 {
		grid[y][x] = '✈'
	}

	// Trails first so aircraft draw over them
	if m.showTrails {
		for _, ac := range m.aircraft {
			trail, ok := m.trails[ac.state.ID]
			if !ok {
				continue
			}
			for _, pos := range trail.positions {
				if x, y := m.radarToScreen(pos); x >= 0 {
					setPixel(grid, x, y, '·')
				}
			}
		}
	}

	type aircraftLabel struct {
		x, y  int
		label string
	}
	var labels []aircraftLabel

	for i, ac := range m.aircraft {
		x, y := m.radarToScreen(ac.state.Position)
		if x < 0 {
			continue
		}

		symbol := '○'
		if ac.state.Extrapolating {
			symbol = '◌' // Dead reckoning past the newest sample
		}
		isSpecial := false
		if i == m.selected {
			symbol = '●'
			isSpecial = true
		}
		if ac.state.ID == m.followID {
			symbol = '◉'
			isSpecial = true
		}
		grid[y][x] = symbol

		if isSpecial {
			labels = append(labels, aircraftLabel{x: x + 2, y: y, label: displayName(ac.state)})
		}

		if ac.state.GroundSpeed > 50 {
			drawVelocityVector(grid, x, y, ac.state.Heading, ac.state.GroundSpeed)
		}
	}

	for _, label := range labels {
		for i, ch := range label.label {
			setPixel(grid, label.x+i, label.y, ch)
		}
	}

	for y := 0; y < height; y++ {
		radar.WriteString(borderStyle.Render("│"))
		for x := 0; x < width-2; x++ {
			char := grid[y][x]
			switch char {
			case '✈':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true).Render(string(char)))
			case '◉':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true).Render(string(char)))
			case '●':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render(string(char)))
			case '○':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Render(string(char)))
			case '◌':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render(string(char)))
			case 'N', 'E', 'S', 'W':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true).Render(string(char)))
			case '─':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render(string(char)))
			case '·':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(string(char)))
			case '→', '-':
				radar.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render(string(char)))
			default:
				radar.WriteRune(char)
			}
		}
		radar.WriteString(borderStyle.Render("│"))
		radar.WriteString("\n")
	}

	radar.WriteString(borderStyle.Render("└" + strings.Repeat("─", width-2) + "┘"))
	return radar.String()
}

// drawCircle draws a circle on the grid using Bresenham's circle algorithm,
// stretching X by the aspect ratio.
func drawCircle(grid [][]rune, cx, cy, radius int, char rune) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		xScaled := int(float64(x) / aspectRatio)
		yScaled := int(float64(y) / aspectRatio)

		setPixel(grid, cx+xScaled, cy+y, char)
		setPixel(grid, cx+yScaled, cy+x, char)
		setPixel(grid, cx-yScaled, cy+x, char)
		setPixel(grid, cx-xScaled, cy+y, char)
		setPixel(grid, cx-xScaled, cy-y, char)
		setPixel(grid, cx-yScaled, cy-x, char)
		setPixel(grid, cx+yScaled, cy-x, char)
		setPixel(grid, cx+xScaled, cy-y, char)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// setPixel sets a cell if it is within bounds and holds only background.
func setPixel(grid [][]rune, x, y int, char rune) {
	if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[0]) {
		if grid[y][x] == ' ' || grid[y][x] == '─' || grid[y][x] == '·' {
			grid[y][x] = char
		}
	}
}

// setRune sets a cell unconditionally if it is within bounds.
func setRune(grid [][]rune, x, y int, char rune) {
	if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[0]) {
		grid[y][x] = char
	}
}

// drawVelocityVector draws a short leader in the direction of the nose.
func drawVelocityVector(grid [][]rune, x, y int, headingDeg, speedKts float64) {
	length := int(speedKts/150.0) + 1
	if length > 4 {
		length = 4
	}

	rad := headingDeg * coordinates.DegreesToRadians
	for i := 1; i <= length; i++ {
		dx := int(math.Round(float64(i) * math.Sin(rad) / aspectRatio))
		dy := -int(math.Round(float64(i) * math.Cos(rad)))

		ch := '-'
		if i == length {
			ch = '→'
		}
		setPixel(grid, x+dx, y+dy, ch)
	}
}

// renderRadarInfo renders the information panel beside the scope.
func (m model) renderRadarInfo() string {
	var info strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	info.WriteString(headerStyle.Render("RADAR"))
	info.WriteString("\n\n")

	center := m.observerName
	if m.followID != "" {
		center = "following " + m.followID
	}
	info.WriteString(fmt.Sprintf("Center: %s\n", center))
	info.WriteString(fmt.Sprintf("Radius: %.0f NM (rings %.0f)\n", m.radius, ringInterval(m.radius)))
	info.WriteString(fmt.Sprintf("Position: %.4f°, %.4f°\n", m.center.Latitude, m.center.Longitude))
	info.WriteString(fmt.Sprintf("Aircraft: %d tracked\n", len(m.aircraft)))
	if !m.frameTime.IsZero() {
		info.WriteString(fmt.Sprintf("Frame: %s\n", m.frameTime.Format("15:04:05.0")))
	}
	switch {
	case !m.status.HasObservations:
		info.WriteString("Status: waiting for data\n")
	case !m.status.ReadyToInterpolate:
		info.WriteString("Status: collecting samples\n")
	default:
		info.WriteString("Status: live\n")
	}
	info.WriteString("\n")

	info.WriteString(headerStyle.Render("Legend"))
	info.WriteString("\n")
	info.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Render("○"))
	info.WriteString(" Interpolated\n")
	info.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("◌"))
	info.WriteString(" Dead reckoning\n")
	info.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("●"))
	info.WriteString(" Selected\n")
	info.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true).Render("◉"))
	info.WriteString(" Following\n")
	info.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("✈"))
	info.WriteString(" Observer\n")
	info.WriteString("· Trail  → Heading\n")

	return info.String()
}
