package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/clinicagenda/agenda/libs/otel"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/policy"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/readstate"
)

type AppointmentLister interface {
	ListRange(ctx context.Context, professionalID string, from, to civil.Date) ([]model.Appointment, error)
}

type Observer interface {
	ObserveDerived(kind string, n int)
	ObserveSkipped(n int)
	ObserveFeedLatency(seconds float64)
}

type FeedConfig struct {
	Location *time.Location
	// GC prunes read-state down to the ids of the current feed on every read.
	GC  bool
	Now func() time.Time
}

type Feed struct {
	appointments AppointmentLister
	policy       policy.Provider
	read         readstate.Store
	logger       *slog.Logger
	metrics      Observer
	tracer       trace.Tracer
	loc          *time.Location
	gc           bool
	now          func() time.Time
}

func NewFeed(appointments AppointmentLister, provider policy.Provider, read readstate.Store, logger *slog.Logger, metrics Observer, cfg FeedConfig) *Feed {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Feed{
		appointments: appointments,
		policy:       provider,
		read:         read,
		logger:       logger,
		metrics:      metrics,
		tracer:       otelx.Tracer("agenda/reminders"),
		loc:          cfg.Location,
		gc:           cfg.GC,
		now:          cfg.Now,
	}
}

// Notifications derives the current feed for professionalID and annotates read flags.
func (f *Feed) Notifications(ctx context.Context, professionalID string) ([]model.DerivedNotification, error) {
	ctx, span := f.tracer.Start(ctx, "reminders.feed", trace.WithAttributes(attribute.String("professional_id", professionalID)))
	defer span.End()

	now := f.now().In(f.loc)
	started := time.Now()

	res, err := f.derive(ctx, professionalID, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	read, err := f.read.Load(ctx, professionalID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reminders: load read-state: %w", err)
	}
	Annotate(res.Notifications, read)

	if f.gc {
		if removed, err := f.read.GC(ctx, professionalID, IDs(res.Notifications)); err != nil {
			f.logger.Warn("read-state gc failed", "professional_id", professionalID, "err", err)
		} else if removed > 0 {
			f.logger.Debug("read-state gc", "professional_id", professionalID, "removed", removed)
		}
	}

	span.SetAttributes(attribute.Int("notifications", len(res.Notifications)), attribute.Int("skipped", res.Skipped))
	f.observe(res, time.Since(started))
	return res.Notifications, nil
}

// MarkAllRead acknowledges every notification in the current feed.
func (f *Feed) MarkAllRead(ctx context.Context, professionalID string) (int, error) {
	res, err := f.derive(ctx, professionalID, f.now().In(f.loc))
	if err != nil {
		return 0, err
	}
	return f.read.MarkManyRead(ctx, professionalID, IDs(res.Notifications))
}

func (f *Feed) derive(ctx context.Context, professionalID string, now time.Time) (Result, error) {
	settings, err := f.policy.Settings(ctx, professionalID)
	if err != nil {
		return Result{}, fmt.Errorf("reminders: load settings: %w", err)
	}

	from := civil.DateOf(now.Add(-ConcludedWindow))
	to := civil.DateOf(now.Add(UpcomingWindow))
	appts, err := f.appointments.ListRange(ctx, professionalID, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("reminders: list appointments: %w", err)
	}

	res := Derive(appts, settings.LeadHours, now, f.loc)
	if res.Skipped > 0 {
		f.logger.Warn("skipped malformed appointments", "professional_id", professionalID, "count", res.Skipped)
	}
	return res, nil
}

func (f *Feed) observe(res Result, elapsed time.Duration) {
	if f.metrics == nil {
		return
	}
	upcoming, concluded := 0, 0
	for _, n := range res.Notifications {
		if n.ID.Kind == model.KindConcluded {
			concluded++
		} else {
			upcoming++
		}
	}
	f.metrics.ObserveDerived("upcoming", upcoming)
	f.metrics.ObserveDerived("concluded", concluded)
	f.metrics.ObserveSkipped(res.Skipped)
	f.metrics.ObserveFeedLatency(elapsed.Seconds())
}
