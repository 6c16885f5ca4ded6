package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/libs/httpx"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/booking"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/storage"
)

type Booker interface {
	Book(ctx context.Context, req booking.BookRequest) (model.Appointment, error)
	Update(ctx context.Context, req booking.UpdateRequest) (model.Appointment, error)
}

type AppointmentStore interface {
	AppointmentReader
	Get(ctx context.Context, professionalID, id string) (model.Appointment, error)
}

type AppointmentHandler struct {
	booker Booker
	appts  AppointmentStore
	logger *slog.Logger
}

func NewAppointmentHandler(booker Booker, appts AppointmentStore, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{booker: booker, appts: appts, logger: logger}
}

type bookRequest struct {
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	ProcedureID string `json:"procedure_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	PriceCents  int64  `json:"price_cents"`
	Notes       string `json:"notes"`
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := civil.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid date", nil)
		return
	}
	at, err := model.ParseClock(req.Time)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid time", nil)
		return
	}

	appt, err := h.booker.Book(r.Context(), booking.BookRequest{
		ProfessionalID: professionalID,
		ClientID:       strings.TrimSpace(req.ClientID),
		ClientName:     req.ClientName,
		ProcedureID:    strings.TrimSpace(req.ProcedureID),
		Date:           date,
		Time:           at,
		PriceCents:     req.PriceCents,
		Notes:          req.Notes,
	})
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

type updateRequest struct {
	AppointmentID string  `json:"appointment_id"`
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	PriceCents    *int64  `json:"price_cents"`
	Notes         *string `json:"notes"`
	ProcedureID   *string `json:"procedure_id"`
	Corrective    bool    `json:"corrective"`
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upd := booking.UpdateRequest{
		ProfessionalID: professionalID,
		AppointmentID:  strings.TrimSpace(req.AppointmentID),
		PriceCents:     req.PriceCents,
		Notes:          req.Notes,
		ProcedureID:    req.ProcedureID,
		Corrective:     req.Corrective,
	}
	if req.Status != nil {
		s := model.Status(strings.TrimSpace(*req.Status))
		upd.Status = &s
	}
	if req.PaymentStatus != nil {
		p := model.PaymentStatus(strings.TrimSpace(*req.PaymentStatus))
		upd.PaymentStatus = &p
	}

	appt, err := h.booker.Update(r.Context(), upd)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// List serves ?id= for a single appointment, ?date= for one day or ?from=&to= for an
// inclusive range of up to a year.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}

	var (
		appts []model.Appointment
		err   error
	)
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("id")); id != "" {
		h.get(w, r, professionalID, id)
		return
	}
	switch {
	case q.Get("date") != "":
		date, perr := dateParam(r, "date", civil.Date{})
		if perr != nil {
			httpx.WriteError(w, http.StatusBadRequest, perr.Error(), nil)
			return
		}
		appts, err = h.appts.ListByDate(r.Context(), professionalID, date)
	default:
		from, ferr := dateParam(r, "from", civil.Date{})
		to, terr := dateParam(r, "to", civil.Date{})
		if ferr != nil || terr != nil {
			httpx.WriteError(w, http.StatusBadRequest, "date or from and to required", nil)
			return
		}
		if to.Before(from) || from.AddDays(366).Before(to) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid range", nil)
			return
		}
		appts, err = h.appts.ListRange(r.Context(), professionalID, from, to)
	}
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list appointments", nil)
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) get(w http.ResponseWriter, r *http.Request, professionalID, id string) {
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found", nil)
		return
	}
	appt, err := h.appts.Get(r.Context(), professionalID, id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "appointment not found", nil)
		return
	}
	if err != nil {
		h.logger.Error("get appointment failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load appointment", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}
