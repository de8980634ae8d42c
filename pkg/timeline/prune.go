package timeline

import (
	"context"
	"sort"
	"time"
)

// Prune removes every aircraft that has not been updated for longer than
// StaleTimeout, together with all of its cached state. It returns the
// removed ids in sorted order.
func (s *Store) Prune(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, tl := range s.timelines {
		idle := now.Sub(tl.LastReceivedAt)
		if idle <= s.cfg.StaleTimeout {
			continue
		}
		s.remove(id)
		s.tracer.Pruned(id, idle)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return removed
}

// RunPruner calls Prune every interval until ctx is cancelled. clock
// supplies the current time; nil means time.Now.
func (s *Store) RunPruner(ctx context.Context, interval time.Duration, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune(clock())
		}
	}
}
