package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rivo/tview"

	"github.com/unklstewy/skytrail/internal/logging"
)

// LogManager keeps the recent messages shown in the log panel and copies
// each one to the program's logger. It is only touched from the tview event
// goroutine.
type LogManager struct {
	textView    *tview.TextView
	messages    []LogMessage
	maxMessages int
	mirror      *logging.Logger
	clock       func() time.Time
}

// LogMessage is one line of the panel.
type LogMessage struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// NewLogManager creates a log panel holding at most maxMessages lines.
// mirror may be nil.
func NewLogManager(maxMessages int, mirror *logging.Logger) *LogManager {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxMessages)
	textView.SetBorder(true).SetTitle(" Logs ")

	return &LogManager{
		textView:    textView,
		messages:    make([]LogMessage, 0, maxMessages),
		maxMessages: maxMessages,
		mirror:      mirror,
		clock:       time.Now,
	}
}

// GetView returns the tview component
func (lm *LogManager) GetView() tview.Primitive {
	return lm.textView
}

// AddLog appends a formatted message at level.
func (lm *LogManager) AddLog(level slog.Level, format string, args ...any) {
	msg := LogMessage{Time: lm.clock(), Level: level, Message: fmt.Sprintf(format, args...)}
	lm.messages = append(lm.messages, msg)
	if len(lm.messages) > lm.maxMessages {
		lm.messages = lm.messages[len(lm.messages)-lm.maxMessages:]
	}
	if lm.mirror != nil {
		lm.mirror.Log(context.Background(), level, msg.Message, slog.String("panel", "replay"))
	}
	lm.refresh()
}

func (lm *LogManager) Info(format string, args ...any) { lm.AddLog(slog.LevelInfo, format, args...) }

func (lm *LogManager) Warn(format string, args ...any) { lm.AddLog(slog.LevelWarn, format, args...) }

func (lm *LogManager) Error(format string, args ...any) { lm.AddLog(slog.LevelError, format, args...) }

// Messages returns the retained messages, oldest first.
func (lm *LogManager) Messages() []LogMessage {
	return lm.messages
}

func (lm *LogManager) refresh() {
	lm.textView.Clear()
	for _, msg := range lm.messages {
		fmt.Fprintf(lm.textView, "[gray]%s[-] [%s]%-5s[-] %s\n",
			msg.Time.Format("15:04:05"), colorForLevel(msg.Level), msg.Level, tview.Escape(msg.Message))
	}
	lm.textView.ScrollToEnd()
}

// colorForLevel returns the tview color tag for a log level
func colorForLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "red"
	case level >= slog.LevelWarn:
		return "yellow"
	case level >= slog.LevelInfo:
		return "white"
	default:
		return "gray"
	}
}
