package store

import "time"

// Stamp is the hybrid logical timestamp attached to every cell and value
// write. Ordering is wall millis, then counter, then peer id, which makes
// last-writer-wins comparisons total and deterministic across peers.
type Stamp struct {
	Millis  int64  `json:"t"`
	Counter int64  `json:"c"`
	Peer    string `json:"p"`
}

// Less reports whether the stamp orders strictly before other.
func (s Stamp) Less(other Stamp) bool {
	if s.Millis != other.Millis {
		return s.Millis < other.Millis
	}
	if s.Counter != other.Counter {
		return s.Counter < other.Counter
	}
	return s.Peer < other.Peer
}

// IsZero reports whether the stamp has never been assigned.
func (s Stamp) IsZero() bool {
	return s.Millis == 0 && s.Counter == 0 && s.Peer == ""
}

type hybridClock struct {
	millis  int64
	counter int64
}

// next returns a stamp strictly greater than every stamp previously issued
// or observed by this clock.
func (c *hybridClock) next(now time.Time, peer string) Stamp {
	wall := now.UnixMilli()
	if wall > c.millis {
		c.millis = wall
		c.counter = 0
	} else {
		c.counter++
	}
	return Stamp{Millis: c.millis, Counter: c.counter, Peer: peer}
}

// observe advances the clock past a stamp received from a remote peer so
// subsequent local writes order after everything already merged.
func (c *hybridClock) observe(s Stamp) {
	if s.Millis > c.millis {
		c.millis = s.Millis
		c.counter = s.Counter
		return
	}
	if s.Millis == c.millis && s.Counter > c.counter {
		c.counter = s.Counter
	}
}
