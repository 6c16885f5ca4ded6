package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/libs/httpx"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/availability"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/calendar"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/policy"
)

type AppointmentReader interface {
	ListByDate(ctx context.Context, professionalID string, date civil.Date) ([]model.Appointment, error)
	ListRange(ctx context.Context, professionalID string, from, to civil.Date) ([]model.Appointment, error)
}

type AvailabilityHandler struct {
	appts  AppointmentReader
	policy policy.Provider
	logger *slog.Logger
	clock  clock
}

func NewAvailabilityHandler(appts AppointmentReader, provider policy.Provider, logger *slog.Logger, loc *time.Location, now func() time.Time) *AvailabilityHandler {
	if now == nil {
		now = time.Now
	}
	return &AvailabilityHandler{appts: appts, policy: provider, logger: logger, clock: clock{loc: loc, now: now}}
}

type slotsResponse struct {
	ProfessionalID string              `json:"professional_id"`
	Date           string              `json:"date"`
	Bookable       bool                `json:"bookable"`
	Reason         string              `json:"reason,omitempty"`
	Holiday        *calendar.Holiday   `json:"holiday,omitempty"`
	Slots          []availability.Slot `json:"slots"`
}

// settings loads working hours and swaps in fallback hours when they cannot generate slots.
// Working days are kept so an empty set still surfaces as not configured.
func (h *AvailabilityHandler) settings(ctx context.Context, professionalID string) (model.WorkingHours, []model.Clock, error) {
	s, err := h.policy.Settings(ctx, professionalID)
	if err != nil {
		return model.WorkingHours{}, nil, err
	}
	cfg := s.WorkingHours
	slots, genErr := availability.SlotsOrFallback(&cfg)
	if genErr != nil {
		h.logger.Warn("invalid working hours; using fallback", "professional_id", professionalID, "err", genErr)
		fb := model.FallbackWorkingHours()
		fb.WorkingDays = cfg.WorkingDays
		cfg = fb
	}
	return cfg, slots, nil
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	now := h.clock.current()
	date, err := dateParam(r, "date", civil.DateOf(now))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cfg, slots, err := h.settings(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("settings load failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load settings", nil)
		return
	}
	if cfg.WorkingDays.Empty() {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "not_configured", map[string]string{"reason": "not-configured"})
		return
	}

	appts, err := h.appts.ListByDate(r.Context(), professionalID, date)
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list appointments", nil)
		return
	}

	resp := slotsResponse{
		ProfessionalID: professionalID,
		Date:           date.String(),
		Bookable:       true,
		Slots:          availability.Resolve(date, slots, appts, now),
	}
	if err := calendar.CheckDate(date, civil.DateOf(now), cfg.WorkingDays); err != nil {
		resp.Bookable, resp.Reason = false, err.Error()
		for i := range resp.Slots {
			resp.Slots[i].Available = false
			if resp.Slots[i].Reason == availability.ReasonNone {
				resp.Slots[i].Reason = availability.Reason(err.Error())
			}
		}
	}
	if holiday, ok := calendar.HolidayOn(date); ok {
		resp.Holiday = &holiday
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type firstAvailableResponse struct {
	ProfessionalID string `json:"professional_id"`
	Found          bool   `json:"found"`
	Date           string `json:"date,omitempty"`
}

func (h *AvailabilityHandler) FirstAvailable(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	now := h.clock.current()
	from, err := dateParam(r, "from", civil.DateOf(now))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	horizon := availability.DefaultHorizonDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 366 {
			horizon = n
		}
	}

	cfg, _, err := h.settings(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("settings load failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load settings", nil)
		return
	}
	if from.Before(civil.DateOf(now)) {
		from = civil.DateOf(now)
	}
	appts, err := h.appts.ListRange(r.Context(), professionalID, from, from.AddDays(horizon-1))
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list appointments", nil)
		return
	}

	date, found, err := availability.FirstBookableDate(cfg, appts, from, now, horizon)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "not_configured", map[string]string{"reason": "not-configured"})
		return
	}
	resp := firstAvailableResponse{ProfessionalID: professionalID, Found: found}
	if found {
		resp.Date = date.String()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	year := h.clock.today().Year
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1900 || n > 2200 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid year", nil)
			return
		}
		year = n
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"year":     year,
		"holidays": calendar.HolidaysForYear(year),
	})
}
