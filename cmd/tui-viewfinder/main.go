package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/skytrail/internal/ingest"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Radar radius limits in nautical miles
const (
	minRadius = 5
	maxRadius = 500
)

const trailLength = 30

// frameSource is the part of the timeline store the viewer drives.
type frameSource interface {
	Advance(now time.Time) timeline.Frame
	Status() timeline.Status
}

// trackTrail stores recent displayed positions for breadcrumb display.
type trackTrail struct {
	positions []coordinates.Geographic
	maxLength int
}

func (t *trackTrail) add(pos coordinates.Geographic) {
	if n := len(t.positions); n > 0 && t.positions[n-1] == pos {
		return
	}
	t.positions = append(t.positions, pos)
	if len(t.positions) > t.maxLength {
		t.positions = t.positions[len(t.positions)-t.maxLength:]
	}
}

type aircraftView struct {
	state timeline.DisplayState
	look  coordinates.LookAngle
}

type model struct {
	source       frameSource
	tickInterval time.Duration
	clock        func() time.Time

	observer     coordinates.Geographic
	observerName string
	center       coordinates.Geographic
	radius       float64 // Nautical miles
	width        int
	height       int

	aircraft   []aircraftView
	selected   int
	followID   string
	trails     map[string]*trackTrail
	showTrails bool
	paused     bool
	frameTime  time.Time
	status     timeline.Status
	err        error

	inputMode   string // "radius" or ""
	inputBuffer string
}

type tickMsg time.Time

func (m model) tick() tea.Cmd {
	return tea.Tick(m.tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newModel(source frameSource, cfg *config.Config) model {
	observer := coordinates.Geographic{
		Latitude:  cfg.Observer.Latitude,
		Longitude: cfg.Observer.Longitude,
		Altitude:  cfg.Observer.Elevation,
	}
	radius := cfg.ADSB.SearchRadiusNM
	if radius < minRadius || radius > maxRadius {
		radius = 50
	}
	return model{
		source:       source,
		tickInterval: cfg.Timeline.TickInterval(),
		clock:        time.Now,
		observer:     observer,
		observerName: cfg.Observer.Name,
		center:       observer,
		radius:       radius,
		width:        120,
		height:       40,
		trails:       make(map[string]*trackTrail),
		showTrails:   true,
	}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if m.inputMode != "" {
			switch msg.String() {
			case "enter":
				if radius, err := strconv.ParseFloat(strings.TrimSpace(m.inputBuffer), 64); err == nil {
					if radius >= minRadius && radius <= maxRadius {
						m.radius = radius
					} else {
						m.err = fmt.Errorf("radius must be between %d and %d NM", minRadius, maxRadius)
					}
				} else {
					m.err = fmt.Errorf("invalid radius: %s", m.inputBuffer)
				}
				m.inputMode = ""
				m.inputBuffer = ""
			case "esc":
				m.inputMode = ""
				m.inputBuffer = ""
			case "backspace":
				if len(m.inputBuffer) > 0 {
					m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
				}
			default:
				if len(msg.String()) == 1 {
					m.inputBuffer += msg.String()
				}
			}
			return m, nil
		}

		// Clear error on any keypress (but don't quit)
		if m.err != nil {
			m.err = nil
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.inputMode = "radius"
			m.inputBuffer = fmt.Sprintf("%.0f", m.radius)
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.aircraft)-1 {
				m.selected++
			}
		case "enter", " ":
			if m.selected < len(m.aircraft) {
				m.followID = m.aircraft[m.selected].state.ID
				m.center = m.aircraft[m.selected].state.Position
			}
		case "s":
			m.followID = ""
			m.center = m.observer
		case "t":
			m.showTrails = !m.showTrails
		case "p":
			m.paused = !m.paused
		case "+", "=":
			m.radius /= 1.5
			if m.radius < minRadius {
				m.radius = minRadius
			}
		case "-", "_":
			m.radius *= 1.5
			if m.radius > maxRadius {
				m.radius = maxRadius
			}
		}

	case tickMsg:
		if !m.paused {
			m.advance(m.clock())
		}
		return m, m.tick()
	}

	return m, nil
}

// advance pulls one frame from the store and rebuilds the aircraft list,
// sorted by range from the radar centre. The selection sticks to the same
// aircraft when the order changes.
func (m *model) advance(now time.Time) {
	frame := m.source.Advance(now)
	m.status = m.source.Status()
	m.frameTime = now

	selectedID := ""
	if m.selected < len(m.aircraft) {
		selectedID = m.aircraft[m.selected].state.ID
	}

	if m.followID != "" {
		if st, ok := frame[m.followID]; ok {
			m.center = st.Position
		} else {
			m.followID = ""
			m.center = m.observer
		}
	}

	views := make([]aircraftView, 0, len(frame))
	for id, st := range frame {
		trail, ok := m.trails[id]
		if !ok {
			trail = &trackTrail{maxLength: trailLength}
			m.trails[id] = trail
		}
		trail.add(st.Position)

		if coordinates.DistanceNauticalMiles(m.center, st.Position) > m.radius {
			continue
		}
		views = append(views, aircraftView{
			state: st,
			look:  coordinates.Look(m.observer, st.Position),
		})
	}
	for id := range m.trails {
		if _, ok := frame[id]; !ok {
			delete(m.trails, id)
		}
	}

	sort.Slice(views, func(i, j int) bool {
		ri := coordinates.DistanceNauticalMiles(m.center, views[i].state.Position)
		rj := coordinates.DistanceNauticalMiles(m.center, views[j].state.Position)
		if ri != rj {
			return ri < rj
		}
		return views[i].state.ID < views[j].state.ID
	})
	m.aircraft = views

	m.selected = 0
	for i, v := range views {
		if v.state.ID == selectedID {
			m.selected = i
			break
		}
	}
}

func displayName(st timeline.DisplayState) string {
	if st.Metadata.Callsign != "" {
		return st.Metadata.Callsign
	}
	return strings.ToUpper(st.ID)
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Padding(0, 1)
	title := fmt.Sprintf("SKYTRAIL RADAR - %s", m.observerName)
	if m.paused {
		title += " [PAUSED]"
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderRadar(), "  ", m.renderRadarInfo()))
	s.WriteString("\n")
	s.WriteString(m.renderAircraftList())
	s.WriteString("\n")

	switch {
	case m.inputMode == "radius":
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("226")).
			Render(fmt.Sprintf("Radius (NM): %s_  [Enter] apply  [Esc] cancel", m.inputBuffer)))
	case m.err != nil:
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).
			Render(fmt.Sprintf("Error: %v (press any key)", m.err)))
	default:
		s.WriteString(m.renderLegend())
	}
	s.WriteString("\n")

	return s.String()
}

func (m model) renderAircraftList() string {
	var list strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	list.WriteString(headerStyle.Render("Aircraft in range:"))
	list.WriteString(fmt.Sprintf(" (%d)", len(m.aircraft)))
	list.WriteString("\n")

	if len(m.aircraft) == 0 {
		list.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  No aircraft in range"))
		return list.String()
	}

	// Show up to 5 aircraft
	start := 0
	if m.selected > 2 && len(m.aircraft) > 5 {
		start = m.selected - 2
	}
	end := start + 5
	if end > len(m.aircraft) {
		end = len(m.aircraft)
	}

	for i := start; i < end; i++ {
		ac := m.aircraft[i]

		prefix := "  "
		if i == m.selected {
			prefix = "→ "
		}

		followIndicator := ""
		if ac.state.ID == m.followID {
			followIndicator = " [FOLLOW]"
		}
		mode := ""
		if ac.state.Extrapolating {
			mode = " [DR]"
		}

		ageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
		age := ac.state.Age.Seconds()
		if age > 30 {
			ageStyle = ageStyle.Foreground(lipgloss.Color("226"))
		}
		if age > 60 {
			ageStyle = ageStyle.Foreground(lipgloss.Color("196"))
		}

		line := fmt.Sprintf("%s%-8s  %6.0f ft  %5.1f nm  Az:%3.0f° El:%4.1f°  Hdg:%3.0f° %3.0f kt  ",
			prefix,
			displayName(ac.state),
			ac.state.Position.Altitude*coordinates.MetersToFeet,
			ac.look.RangeNM,
			ac.look.Azimuth,
			ac.look.Elevation,
			ac.state.Heading,
			ac.state.GroundSpeed,
		)

		lineStyle := lipgloss.NewStyle()
		if i == m.selected {
			lineStyle = lineStyle.Foreground(lipgloss.Color("226")).Bold(true)
		}
		list.WriteString(lineStyle.Render(line))
		list.WriteString(ageStyle.Render(fmt.Sprintf("%4.0fs", age)))
		list.WriteString(followIndicator + mode)
		list.WriteString("\n")
	}

	return list.String()
}

func (m model) renderLegend() string {
	help := "[↑/↓] Select  [Enter] Follow  [S] Stop  [+/-] Zoom  [R] Radius  [T] Trails  [P] Pause  [Q] Quit"
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(help)
}

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so records only go to the log file.
	cfg.Logging.Stderr = false
	logger := logging.NewWriter(io.Discard, cfg.Logging.Level)
	if cfg.Logging.Dir != "" {
		logger = logging.New("tui-viewfinder", cfg.Logging)
	}

	p, err := ingest.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start ingestion: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	prog := tea.NewProgram(newModel(p.Store, cfg), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		logger.Error("Viewer failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
