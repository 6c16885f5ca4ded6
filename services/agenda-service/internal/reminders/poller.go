package reminders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

// Poller runs Check on a fixed interval while Visible reports true and hands
// notifications not yet delivered in this poller's lifetime to Deliver.
//
// A tick cancels any check still in flight. Results are applied in generation
// order; a result older than the last applied one is dropped.
type Poller struct {
	Interval time.Duration
	Visible  func() bool
	Check    func(ctx context.Context) ([]model.DerivedNotification, error)
	Deliver  func(ctx context.Context, notifications []model.DerivedNotification)
	Logger   *slog.Logger

	mu       sync.Mutex
	seen     map[model.NotificationID]struct{}
	gen      uint64
	applied  uint64
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer p.inflight.Wait()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.cancel != nil {
				p.cancel()
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if p.Visible != nil && !p.Visible() {
		return
	}
	p.Trigger(ctx)
}

// Trigger starts a check immediately, superseding the one in flight.
func (p *Poller) Trigger(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	checkCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer cancel()
		notifications, err := p.Check(checkCtx)
		if err != nil {
			if checkCtx.Err() == nil && p.Logger != nil {
				p.Logger.Warn("reminder check failed", "err", err)
			}
			return
		}
		if checkCtx.Err() != nil {
			return
		}
		p.apply(ctx, gen, notifications)
	}()
}

// apply filters out read and already delivered notifications and delivers the rest.
func (p *Poller) apply(ctx context.Context, gen uint64, notifications []model.DerivedNotification) {
	p.mu.Lock()
	if gen <= p.applied {
		p.mu.Unlock()
		return
	}
	p.applied = gen
	// seen keeps only ids still present in the latest result; an id that left the
	// derivation window does not come back.
	seen := make(map[model.NotificationID]struct{}, len(notifications))
	var fresh []model.DerivedNotification
	for _, n := range notifications {
		if _, ok := p.seen[n.ID]; ok {
			seen[n.ID] = struct{}{}
			continue
		}
		if n.Read {
			continue
		}
		seen[n.ID] = struct{}{}
		fresh = append(fresh, n)
	}
	p.seen = seen
	p.mu.Unlock()

	if len(fresh) > 0 && p.Deliver != nil {
		p.Deliver(ctx, fresh)
	}
}
