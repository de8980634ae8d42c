package timeline

import "time"

// ring is a fixed-capacity circular buffer of observations ordered from
// oldest to newest. Pushing onto a full ring evicts the oldest entry.
type ring struct {
	buf   []Observation
	start int
	n     int
}

func newRing(capacity int) ring {
	if capacity < 1 {
		capacity = 1
	}
	return ring{buf: make([]Observation, capacity)}
}

func (r *ring) len() int { return r.n }

func (r *ring) capacity() int { return len(r.buf) }

// at returns the i'th oldest observation. The pointer refers to ring storage
// and must not be modified.
func (r *ring) at(i int) *Observation {
	return &r.buf[(r.start+i)%len(r.buf)]
}

func (r *ring) newest() *Observation {
	if r.n == 0 {
		return nil
	}
	return r.at(r.n - 1)
}

func (r *ring) oldest() *Observation {
	if r.n == 0 {
		return nil
	}
	return r.at(0)
}

// push appends o and reports whether the oldest entry was evicted.
func (r *ring) push(o Observation) bool {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = o
		r.n++
		return false
	}
	r.buf[r.start] = o
	r.start = (r.start + 1) % len(r.buf)
	return true
}

// indexOf returns the index of the observation taken at t, or -1.
func (r *ring) indexOf(t time.Time) int {
	for i := r.n - 1; i >= 0; i-- {
		ot := r.at(i).ObservedAt
		if ot.Equal(t) {
			return i
		}
		if ot.Before(t) {
			break
		}
	}
	return -1
}

func (r *ring) slice() []Observation {
	out := make([]Observation, r.n)
	for i := range out {
		out[i] = *r.at(i)
	}
	return out
}

func (r *ring) clone() ring {
	c := ring{buf: make([]Observation, len(r.buf)), n: r.n}
	for i := 0; i < r.n; i++ {
		c.buf[i] = *r.at(i)
	}
	return c
}
