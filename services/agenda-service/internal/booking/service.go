package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicagenda/agenda/libs/db"
	otelx "github.com/clinicagenda/agenda/libs/otel"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/availability"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/outbox"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/policy"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/storage"
)

type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ListByDate(ctx context.Context, professionalID string, date civil.Date) ([]model.Appointment, error)
	GetForUpdate(ctx context.Context, tx storage.RowQuerier, professionalID, id string) (model.Appointment, error)
	Create(ctx context.Context, tx storage.RowQuerier, appt model.Appointment) (model.Appointment, error)
	Update(ctx context.Context, tx storage.RowQuerier, appt model.Appointment) (model.Appointment, error)
}

type EventWriter interface {
	Insert(ctx context.Context, exec outbox.Execer, evt outbox.Event) error
}

type Observer interface {
	ObserveBooking(outcome string)
}

type Service struct {
	store   Store
	events  EventWriter
	policy  policy.Provider
	logger  *slog.Logger
	metrics Observer
	tracer  trace.Tracer
	loc     *time.Location
	now     func() time.Time
}

type Config struct {
	Location *time.Location
	Now      func() time.Time
}

func NewService(store Store, events EventWriter, provider policy.Provider, logger *slog.Logger, metrics Observer, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:   store,
		events:  events,
		policy:  provider,
		logger:  logger,
		metrics: metrics,
		tracer:  otelx.Tracer("agenda/booking"),
		loc:     cfg.Location,
		now:     cfg.Now,
	}
}

type BookRequest struct {
	ProfessionalID string
	ClientID       string
	ClientName     string
	ProcedureID    string
	Date           civil.Date
	Time           model.Clock
	PriceCents     int64
	Notes          string
}

func (r BookRequest) validate() error {
	if strings.TrimSpace(r.ProfessionalID) == "" || strings.TrimSpace(r.ClientID) == "" || strings.TrimSpace(r.ClientName) == "" {
		return errors.New("professional_id, client_id and client_name are required")
	}
	if !r.Date.IsValid() {
		return errors.New("invalid date")
	}
	if r.PriceCents < 0 {
		return errors.New("price must not be negative")
	}
	return nil
}

// InputError wraps malformed requests.
type InputError struct{ Err error }

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// Book validates the request against a fresh snapshot and commits it together with its outbox event.
func (s *Service) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("professional_id", req.ProfessionalID),
		attribute.String("date", req.Date.String()),
	))
	defer span.End()

	appt, outcome, err := s.book(ctx, req)
	s.observe(outcome)
	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	return appt, err
}

func (s *Service) book(ctx context.Context, req BookRequest) (model.Appointment, string, error) {
	if err := req.validate(); err != nil {
		return model.Appointment{}, "invalid", &InputError{Err: err}
	}
	now := s.now().In(s.loc)

	settings, err := s.policy.Settings(ctx, req.ProfessionalID)
	if err != nil {
		return model.Appointment{}, "error", fmt.Errorf("booking: load settings: %w", err)
	}
	cfg := settings.WorkingHours
	if _, err := availability.GenerateSlots(&cfg); err != nil {
		var cfgErr *availability.ConfigError
		if errors.As(err, &cfgErr) {
			s.logger.Warn("invalid working hours; using fallback", "professional_id", req.ProfessionalID, "err", err)
			fb := model.FallbackWorkingHours()
			if !cfg.WorkingDays.Empty() {
				fb.WorkingDays = cfg.WorkingDays
			}
			cfg = fb
		}
	}

	current, err := s.store.ListByDate(ctx, req.ProfessionalID, req.Date)
	if err != nil {
		return model.Appointment{}, "error", fmt.Errorf("booking: list appointments: %w", err)
	}
	proposal := Proposal{ProfessionalID: req.ProfessionalID, Date: req.Date, Time: req.Time}
	if err := Validate(proposal, current, cfg, now); err != nil {
		var cfgErr *availability.ConfigError
		if errors.As(err, &cfgErr) {
			return model.Appointment{}, "not_configured", err
		}
		return model.Appointment{}, "rejected", err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, "error", fmt.Errorf("booking: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.Create(ctx, tx, model.Appointment{
		ProfessionalID: req.ProfessionalID,
		ClientID:       req.ClientID,
		ClientName:     strings.TrimSpace(req.ClientName),
		ProcedureID:    req.ProcedureID,
		Date:           req.Date,
		Time:           req.Time.String(),
		PriceCents:     req.PriceCents,
		Status:         model.StatusScheduled,
		PaymentStatus:  model.PaymentPending,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlotConflict) {
			s.logger.Warn("booking lost race at commit", "professional_id", req.ProfessionalID, "date", req.Date.String(), "time", req.Time.String())
			return model.Appointment{}, "race_lost", ErrRaceLost
		}
		return model.Appointment{}, "error", fmt.Errorf("booking: create: %w", err)
	}

	if err := s.writeEvent(ctx, tx, outbox.EventAppointmentBooked, appt); err != nil {
		return model.Appointment{}, "error", err
	}
	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err, storage.SlotConstraint) {
			return model.Appointment{}, "race_lost", ErrRaceLost
		}
		return model.Appointment{}, "error", fmt.Errorf("booking: commit: %w", err)
	}
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "professional_id", appt.ProfessionalID)
	return appt, "created", nil
}

type UpdateRequest struct {
	ProfessionalID string
	AppointmentID  string
	Status         *model.Status
	PaymentStatus  *model.PaymentStatus
	PriceCents     *int64
	Notes          *string
	ProcedureID    *string
	// Corrective allows any status change on historical records.
	Corrective bool
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.update", trace.WithAttributes(
		attribute.String("professional_id", req.ProfessionalID),
		attribute.String("appointment_id", req.AppointmentID),
	))
	defer span.End()

	if strings.TrimSpace(req.ProfessionalID) == "" || strings.TrimSpace(req.AppointmentID) == "" {
		return model.Appointment{}, &InputError{Err: errors.New("professional_id and appointment_id are required")}
	}
	// Appointment ids are uuids; anything else would fail the column cast.
	if _, err := uuid.Parse(strings.TrimSpace(req.AppointmentID)); err != nil {
		return model.Appointment{}, ErrNotFound
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("booking: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.GetForUpdate(ctx, tx, req.ProfessionalID, req.AppointmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("booking: load appointment: %w", err)
	}

	previous := appt.Status
	if req.Status != nil {
		if err := model.CheckTransition(appt.Status, *req.Status, req.Corrective); err != nil {
			return model.Appointment{}, &InputError{Err: err}
		}
		appt.Status = *req.Status
	}
	if req.PaymentStatus != nil {
		if !req.PaymentStatus.Valid() {
			return model.Appointment{}, &InputError{Err: fmt.Errorf("unknown payment status %q", *req.PaymentStatus)}
		}
		appt.PaymentStatus = *req.PaymentStatus
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return model.Appointment{}, &InputError{Err: errors.New("price must not be negative")}
		}
		appt.PriceCents = *req.PriceCents
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}
	if req.ProcedureID != nil {
		appt.ProcedureID = *req.ProcedureID
	}

	updated, err := s.store.Update(ctx, tx, appt)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSlotConflict):
			return model.Appointment{}, ErrSlotTaken
		case errors.Is(err, storage.ErrNotFound):
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("booking: update: %w", err)
	}
	if err := s.writeEvent(ctx, tx, outbox.EventAppointmentUpdated, updated); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, fmt.Errorf("booking: commit: %w", err)
	}
	s.logger.Info("appointment updated", "appointment_id", updated.ID, "from_status", string(previous), "to_status", string(updated.Status), "corrective", req.Corrective)
	return updated, nil
}

type appointmentEvent struct {
	AppointmentID  string `json:"appointment_id"`
	ProfessionalID string `json:"professional_id"`
	ClientID       string `json:"client_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	PriceCents     int64  `json:"price_cents"`
}

func (s *Service) writeEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	evt, err := outbox.NewEvent("appointment", appt.ID, eventType, appointmentEvent{
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		ClientID:       appt.ClientID,
		Date:           appt.Date.String(),
		Time:           appt.Time,
		Status:         string(appt.Status),
		PaymentStatus:  string(appt.PaymentStatus),
		PriceCents:     appt.PriceCents,
	})
	if err != nil {
		return err
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("booking: write outbox event: %w", err)
	}
	return nil
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveBooking(outcome)
	}
}
