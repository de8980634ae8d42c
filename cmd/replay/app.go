package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/history"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Seek steps for the arrow and page keys
const (
	smallSeek = 10 * time.Second
	largeSeek = time.Minute
)

// AppConfig holds what the replay application needs to start.
type AppConfig struct {
	Player       *history.Player
	Observer     coordinates.Geographic
	ObserverName string
	Source       string // description of the recording, shown in the header
	TickInterval time.Duration
	Logger       *logging.Logger
}

// App is the replay application.
type App struct {
	observer     coordinates.Geographic
	observerName string
	source       string
	logger       *logging.Logger
	pb           *playback
	tickInterval time.Duration

	tviewApp   *tview.Application
	sky        *SkyView
	telemetry  *tview.TextView
	controls   *tview.TextView
	logs       *LogManager
	rootLayout *tview.Flex

	// Owned by the tview event goroutine
	aircraft      []aircraftView
	selectedIndex int
	trackID       string
	lastStep      time.Time

	stop chan struct{}
}

type aircraftView struct {
	state timeline.DisplayState
	look  coordinates.LookAngle
}

func (av aircraftView) name() string {
	if av.state.Metadata.Callsign != "" {
		return av.state.Metadata.Callsign
	}
	return strings.ToUpper(av.state.ID)
}

// NewApp creates the application and its widgets.
func NewApp(cfg *AppConfig) *App {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	a := &App{
		observer:     cfg.Observer,
		observerName: cfg.ObserverName,
		source:       cfg.Source,
		logger:       cfg.Logger,
		pb:           newPlayback(cfg.Player),
		tickInterval: tick,
		stop:         make(chan struct{}),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.sky = NewSkyView(a)

	a.telemetry = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.telemetry.SetBorder(true).SetTitle(" Telemetry ")

	a.controls = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	a.controls.SetBorder(true).SetTitle(" Controls ")
	a.controls.SetText(`[yellow]PLAYBACK[-]
  [white]SPACE[-]     Pause/resume
  [white]←/→[-]       Seek 10s
  [white]PgUp/PgDn[-] Seek 1m
  [white]Home/End[-]  Start/end
  [white]+/-[-]       Speed

[yellow]AIRCRAFT[-]
  [white]↑/↓, j/k[-]  Select
  [white]ENTER[-]     Track
  [white]s[-]         Stop tracking

[yellow]CONTROL[-]
  [white]q[-]         Quit`)

	a.logs = NewLogManager(100, a.logger)

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.telemetry, 0, 4, false).
		AddItem(a.controls, 0, 3, false).
		AddItem(a.logs.GetView(), 0, 3, false)

	a.rootLayout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.sky, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	a.tviewApp.SetRoot(a.rootLayout, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)

	a.logs.Info("Loaded %d samples from %s", a.pb.player.Len(), a.source)
	a.updateTelemetry()
}

// handleKeyboard handles keyboard input
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	key := event.Key()
	r := event.Rune()

	switch {
	case key == tcell.KeyEscape || r == 'q':
		a.Stop()
		return nil

	case r == ' ':
		a.togglePause()
	case key == tcell.KeyLeft:
		a.seek(-smallSeek)
	case key == tcell.KeyRight:
		a.seek(smallSeek)
	case key == tcell.KeyPgUp:
		a.seek(-largeSeek)
	case key == tcell.KeyPgDn:
		a.seek(largeSeek)
	case key == tcell.KeyHome:
		a.pb.jumpStart()
		a.render(0)
	case key == tcell.KeyEnd:
		a.pb.jumpEnd()
		a.render(0)
	case r == '+' || r == '=':
		a.pb.faster()
		a.logs.Info("Speed %gx", a.pb.speed())
	case r == '-':
		a.pb.slower()
		a.logs.Info("Speed %gx", a.pb.speed())

	case key == tcell.KeyUp || r == 'k':
		a.selectPrevious()
	case key == tcell.KeyDown || r == 'j':
		a.selectNext()
	case key == tcell.KeyEnter:
		a.startTracking()
	case r == 's':
		a.stopTracking()

	default:
		return event
	}

	a.updateTelemetry()
	return nil
}

func (a *App) togglePause() {
	if a.pb.paused && !a.pb.at.Before(a.pb.player.End()) {
		a.pb.jumpStart()
	}
	a.pb.paused = !a.pb.paused
	if a.pb.paused {
		a.logs.Info("Paused at %s", a.pb.at.Format("15:04:05"))
	} else {
		a.logs.Info("Playing at %gx", a.pb.speed())
	}
}

func (a *App) seek(d time.Duration) {
	a.pb.seek(d)
	a.render(0)
}

func (a *App) selectPrevious() {
	if len(a.aircraft) == 0 {
		return
	}
	a.selectedIndex--
	if a.selectedIndex < 0 {
		a.selectedIndex = len(a.aircraft) - 1
	}
}

func (a *App) selectNext() {
	if len(a.aircraft) == 0 {
		return
	}
	a.selectedIndex++
	if a.selectedIndex >= len(a.aircraft) {
		a.selectedIndex = 0
	}
}

func (a *App) startTracking() {
	if a.selectedIndex < 0 || a.selectedIndex >= len(a.aircraft) {
		a.logs.Warn("No aircraft selected")
		return
	}
	ac := a.aircraft[a.selectedIndex]
	a.trackID = ac.state.ID
	a.logs.Info("Tracking %s (%s)", ac.name(), ac.state.ID)
}

func (a *App) stopTracking() {
	if a.trackID == "" {
		return
	}
	a.trackID = ""
	a.logs.Info("Tracking stopped")
}

// render steps playback by elapsed wall time and rebuilds the aircraft list
// from the resulting frame, sorted by elevation with the highest first.
func (a *App) render(elapsed time.Duration) {
	frame := a.pb.step(elapsed)

	selectedID := ""
	if a.selectedIndex < len(a.aircraft) {
		selectedID = a.aircraft[a.selectedIndex].state.ID
	}

	views := make([]aircraftView, 0, len(frame))
	for _, st := range frame {
		views = append(views, aircraftView{state: st, look: coordinates.Look(a.observer, st.Position)})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].look.Elevation != views[j].look.Elevation {
			return views[i].look.Elevation > views[j].look.Elevation
		}
		return views[i].state.ID < views[j].state.ID
	})
	a.aircraft = views

	a.selectedIndex = 0
	for i, v := range views {
		if v.state.ID == selectedID {
			a.selectedIndex = i
			break
		}
	}

	if a.trackID != "" {
		if _, ok := frame[a.trackID]; !ok {
			a.logs.Warn("Lost %s", a.trackID)
			a.trackID = ""
		}
	}
}

// tracked returns the tracked aircraft, or the selected one.
func (a *App) tracked() (aircraftView, bool) {
	if a.trackID != "" {
		for _, ac := range a.aircraft {
			if ac.state.ID == a.trackID {
				return ac, true
			}
		}
	}
	if a.selectedIndex >= 0 && a.selectedIndex < len(a.aircraft) {
		return a.aircraft[a.selectedIndex], true
	}
	return aircraftView{}, false
}

func (a *App) updateTelemetry() {
	var text strings.Builder

	state := "[green]PLAYING[-]"
	if a.pb.paused {
		state = "[yellow]PAUSED[-]"
	}
	fmt.Fprintf(&text, "[yellow]REPLAY:[-] %s [white]%gx[-]\n", state, a.pb.speed())
	fmt.Fprintf(&text, "[gray]Time:[-] [white]%s[-]\n", a.pb.at.UTC().Format("2006-01-02 15:04:05Z"))
	fmt.Fprintf(&text, "[gray]%s[-]\n\n", progressBar(a.pb.progress(), 24))

	if ac, ok := a.tracked(); ok {
		label := "AIRCRAFT"
		if ac.state.ID == a.trackID {
			label = "TRACKING"
		}
		fmt.Fprintf(&text, "[yellow]%s:[-] [white]%s[-] [gray](%s)[-]\n", label, tview.Escape(ac.name()), ac.state.ID)
		fmt.Fprintf(&text, "[gray]Alt:[-]  [white]%.0f ft[-]  [gray]Spd:[-] [white]%.0f kts[-]\n",
			ac.state.Position.Altitude*coordinates.MetersToFeet, ac.state.GroundSpeed)
		fmt.Fprintf(&text, "[gray]Hdg:[-]  [white]%.0f°[-]  [gray]Age:[-] [white]%.1fs[-]\n", ac.state.Heading, ac.state.Age.Seconds())
		fmt.Fprintf(&text, "[gray]Az:[-]   [white]%.1f°[-]  [gray]El:[-] [white]%.1f°[-]\n", ac.look.Azimuth, ac.look.Elevation)
		fmt.Fprintf(&text, "[gray]Range:[-] [white]%.1f nm[-]\n", ac.look.RangeNM)
		if ac.state.Extrapolating {
			text.WriteString("[orange]Dead reckoning[-]\n")
		}
	} else {
		text.WriteString("[gray]No aircraft selected[-]\n")
	}

	fmt.Fprintf(&text, "\n[yellow]OBSERVER:[-] [white]%s[-]\n", tview.Escape(a.observerName))
	fmt.Fprintf(&text, "[gray]Aircraft:[-] [white]%d[-]\n", len(a.aircraft))

	a.telemetry.SetText(text.String())
}

// progressBar draws a bar of width cells filled to fraction.
func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction*float64(width) + 0.5)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// Run starts playback and blocks until the user quits.
func (a *App) Run() error {
	a.lastStep = time.Now()
	a.render(0)
	a.updateTelemetry()
	go a.updateLoop()
	return a.tviewApp.Run()
}

func (a *App) updateLoop() {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			a.tviewApp.QueueUpdateDraw(func() {
				a.render(now.Sub(a.lastStep))
				a.lastStep = now
				a.updateTelemetry()
			})
		case <-a.stop:
			return
		}
	}
}

// Stop ends playback and the UI.
func (a *App) Stop() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	a.tviewApp.Stop()
}
