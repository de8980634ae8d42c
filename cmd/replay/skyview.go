package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// SkyView is a tview primitive that draws the replayed traffic as seen from
// the observer, zenith in the middle and the horizon at the edge.
type SkyView struct {
	*tview.Box
	app *App
}

// NewSkyView creates a new sky view with tcell rendering
func NewSkyView(app *App) *SkyView {
	sv := &SkyView{
		Box: tview.NewBox(),
		app: app,
	}
	sv.SetBorder(true).SetTitle(" Sky View - El/Az ")
	return sv
}

// skyBounds returns the centre and horizon radius for an inner rect.
func skyBounds(width, height int) (cx, cy, radius int) {
	radius = int(float64(width/2-2) * aspectRatio)
	if r := height/2 - 1; r < radius {
		radius = r
	}
	if radius < 1 {
		radius = 1
	}
	return width / 2, height / 2, radius
}

// Draw renders the sky view using tcell
func (sv *SkyView) Draw(screen tcell.Screen) {
	sv.Box.DrawForSubclass(screen, sv)

	x, y, width, height := sv.GetInnerRect()
	cx, cy, radius := skyBounds(width, height)
	centerX, centerY := x+cx, y+cy

	gridStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	horizonStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	zenithStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	// Elevation rings
	for _, el := range []float64{30, 60} {
		r := ringRadius(el, radius)
		drawCircle(screen, centerX, centerY, r, '·', gridStyle)
		label := fmt.Sprintf("%.0f°", el)
		for i, ch := range label {
			screen.SetContent(centerX+i-len(label)/2, centerY-r-1, ch, nil, gridStyle)
		}
	}
	screen.SetContent(centerX, centerY, '+', nil, zenithStyle)
	drawCircle(screen, centerX, centerY, radius, '○', horizonStyle)

	for _, az := range []struct {
		angle float64
		label string
	}{
		{0, "N"}, {45, "NE"}, {90, "E"}, {135, "SE"},
		{180, "S"}, {225, "SW"}, {270, "W"}, {315, "NW"},
	} {
		end := StereographicProjection(0, az.angle, float64(centerX), float64(centerY), float64(radius))
		drawLine(screen, centerX, centerY, end.X, end.Y, '·', gridStyle)

		label := StereographicProjection(-8, az.angle, float64(centerX), float64(centerY), float64(radius))
		for i, ch := range az.label {
			screen.SetContent(label.X+i-len(az.label)/2, label.Y, ch, nil, horizonStyle)
		}
	}

	for i, ac := range sv.app.aircraft {
		if ac.look.Elevation < 0 {
			continue
		}
		p := StereographicProjection(ac.look.Elevation, ac.look.Azimuth, float64(centerX), float64(centerY), float64(radius))
		if p.X < x || p.X >= x+width || p.Y < y || p.Y >= y+height {
			continue
		}

		tracked := ac.state.ID == sv.app.trackID
		selected := i == sv.app.selectedIndex

		var symbol rune
		var style tcell.Style
		switch {
		case tracked:
			symbol = '◉'
			style = tcell.StyleDefault.Foreground(tcell.ColorGreen)
		case selected:
			symbol = '●'
			style = tcell.StyleDefault.Foreground(tcell.ColorYellow)
		case ac.state.Extrapolating:
			symbol = '◌'
			style = tcell.StyleDefault.Foreground(tcell.ColorOrange)
		default:
			symbol = '○'
			style = tcell.StyleDefault.Foreground(tcell.ColorLightBlue)
		}
		screen.SetContent(p.X, p.Y, symbol, nil, style)

		if tracked || selected {
			for j, ch := range ac.name() {
				screen.SetContent(p.X+j+2, p.Y, ch, nil, style)
			}
		}

		if ac.state.GroundSpeed > 50 {
			vectorStyle := tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
			rad := ac.state.Heading * math.Pi / 180.0
			vx := p.X + int(math.Round(2*math.Sin(rad)/aspectRatio))
			vy := p.Y - int(math.Round(2*math.Cos(rad)))
			drawLine(screen, p.X, p.Y, vx, vy, '→', vectorStyle)
			screen.SetContent(p.X, p.Y, symbol, nil, style)
		}
	}
}
