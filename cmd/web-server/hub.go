package main

import (
	"context"
	"sync"
	"time"

	"github.com/unklstewy/skytrail/pkg/timeline"
)

// frameMessage is one frame as sent to API clients.
type frameMessage struct {
	Time     time.Time               `json:"time"`
	Aircraft []timeline.DisplayState `json:"aircraft"`
}

// hub advances the store at the tick rate and fans each frame out to
// subscribers. It is the only caller of Advance in the server, so every
// client sees the same continuous animation.
type hub struct {
	mu     sync.RWMutex
	latest frameMessage
	subs   map[chan frameMessage]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan frameMessage]struct{})}
}

// run ticks until ctx is cancelled.
func (h *hub) run(ctx context.Context, store *timeline.Store, interval time.Duration, clock func() time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.tick(store, clock())
		}
	}
}

// tick computes and publishes one frame.
func (h *hub) tick(store *timeline.Store, now time.Time) frameMessage {
	msg := frameMessage{Time: now, Aircraft: store.Advance(now).Sorted()}
	h.publish(msg)
	return msg
}

func (h *hub) publish(msg frameMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = msg
	for ch := range h.subs {
		// A slow subscriber skips frames rather than stalling the tick.
		select {
		case <-ch:
		default:
		}
		ch <- msg
	}
}

// Latest returns the most recent frame.
func (h *hub) Latest() frameMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// subscribe returns a channel receiving every frame and a func to stop.
func (h *hub) subscribe() (<-chan frameMessage, func()) {
	ch := make(chan frameMessage, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
