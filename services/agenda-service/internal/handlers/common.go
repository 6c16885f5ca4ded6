package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/clinicagenda/agenda/libs/httpx"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/availability"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/booking"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

const professionalHeader = "X-Professional-Id"

// professionalID is forwarded by the gateway; the query parameter is accepted for tooling.
func professionalID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(professionalHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("professional_id"))
}

func requireProfessional(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := professionalID(r)
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "professional_id required", nil)
		return "", false
	}
	return id, true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body", nil)
		return false
	}
	return true
}

// dateParam parses a YYYY-MM-DD query parameter, defaulting to fallback when absent.
func dateParam(r *http.Request, key string, fallback civil.Date) (civil.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		if fallback.IsValid() {
			return fallback, nil
		}
		return civil.Date{}, errors.New(key + " required")
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, errors.New("invalid " + key)
	}
	return d, nil
}

type clock struct {
	loc *time.Location
	now func() time.Time
}

func (c clock) current() time.Time {
	return c.now().In(c.loc)
}

func (c clock) today() civil.Date {
	return civil.DateOf(c.current())
}

type appointmentResponse struct {
	ID             string `json:"id"`
	ProfessionalID string `json:"professional_id"`
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name"`
	ProcedureID    string `json:"procedure_id,omitempty"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PriceCents     int64  `json:"price_cents"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:             a.ID,
		ProfessionalID: a.ProfessionalID,
		ClientID:       a.ClientID,
		ClientName:     a.ClientName,
		ProcedureID:    a.ProcedureID,
		Date:           a.Date.String(),
		Time:           a.Time,
		PriceCents:     a.PriceCents,
		Status:         string(a.Status),
		PaymentStatus:  string(a.PaymentStatus),
		Notes:          a.Notes,
	}
	if c, err := a.Clock(); err == nil {
		resp.Time = c.String()
	}
	if !a.CreatedAt.IsZero() {
		resp.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !a.UpdatedAt.IsZero() {
		resp.UpdatedAt = a.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// writeBookingError maps the booking error taxonomy to status codes.
func writeBookingError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		rejection *booking.Rejection
		cfgErr    *availability.ConfigError
		inputErr  *booking.InputError
	)
	switch {
	case errors.As(err, &rejection):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "booking_rejected", map[string]string{"reason": string(rejection.Reason)})
	case errors.As(err, &cfgErr):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "not_configured", map[string]string{"reason": "not-configured"})
	case errors.Is(err, booking.ErrRaceLost):
		httpx.WriteError(w, http.StatusConflict, "race_lost", nil)
	case errors.Is(err, booking.ErrSlotTaken):
		httpx.WriteError(w, http.StatusConflict, "slot_taken", nil)
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "appointment not found", nil)
	case errors.As(err, &inputErr):
		httpx.WriteError(w, http.StatusBadRequest, inputErr.Error(), nil)
	default:
		logger.Error("booking request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
