package reminders

import (
	"sync"
	"time"
)

// Presence remembers when each professional's feed was last fetched.
type Presence struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewPresence(window time.Duration, now func() time.Time) *Presence {
	if now == nil {
		now = time.Now
	}
	return &Presence{last: make(map[string]time.Time), window: window, now: now}
}

func (p *Presence) Touch(professionalID string) {
	p.mu.Lock()
	p.last[professionalID] = p.now()
	p.mu.Unlock()
}

func (p *Presence) Visible(professionalID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen, ok := p.last[professionalID]
	return ok && p.now().Sub(seen) <= p.window
}

// VisibleFunc adapts Visible to a Poller predicate.
func (p *Presence) VisibleFunc(professionalID string) func() bool {
	return func() bool { return p.Visible(professionalID) }
}
