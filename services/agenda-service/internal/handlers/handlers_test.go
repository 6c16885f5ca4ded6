package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/booking"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/policy"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/readstate"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/storage"
)

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC) // Tuesday

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReader struct {
	appts []model.Appointment
}

func (f *fakeReader) ListByDate(_ context.Context, _ string, date civil.Date) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeReader) Get(_ context.Context, _ string, id string) (model.Appointment, error) {
	for _, a := range f.appts {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (f *fakeReader) ListRange(_ context.Context, _ string, from, to civil.Date) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func newAvailability(reader *fakeReader, settings policy.Settings) *AvailabilityHandler {
	return NewAvailabilityHandler(reader, policy.NewStaticProvider(settings), discardLogger(), time.UTC, func() time.Time { return testNow })
}

func TestSlotsMarksBookedAndPast(t *testing.T) {
	reader := &fakeReader{appts: []model.Appointment{{
		ID: "a1", ProfessionalID: "pro-1", Date: civil.Date{Year: 2026, Month: 3, Day: 10},
		Time: "14:00", Status: model.StatusScheduled,
	}}}
	h := newAvailability(reader, policy.DefaultSettings(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?date=2026-03-10", nil)
	req.Header.Set(professionalHeader, "pro-1")
	rr := httptest.NewRecorder()
	h.Slots(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Bookable bool `json:"bookable"`
		Slots    []struct {
			Time      string `json:"time"`
			Available bool   `json:"available"`
			Reason    string `json:"reason"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Bookable)
	require.Len(t, resp.Slots, 21)

	byTime := map[string]string{}
	for _, s := range resp.Slots {
		byTime[s.Time] = s.Reason
	}
	assert.Equal(t, "past", byTime["08:00"])
	assert.Equal(t, "past", byTime["10:00"])
	assert.Equal(t, "", byTime["10:30"])
	assert.Equal(t, "booked", byTime["14:00"])
}

func TestSlotsNonWorkingDay(t *testing.T) {
	h := newAvailability(&fakeReader{}, policy.DefaultSettings(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?date=2026-03-14&professional_id=pro-1", nil)
	rr := httptest.NewRecorder()
	h.Slots(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp slotsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Bookable)
	assert.Equal(t, "not-working-day", resp.Reason)
	for _, s := range resp.Slots {
		assert.False(t, s.Available)
	}
}

func TestSlotsHolidayMarker(t *testing.T) {
	h := newAvailability(&fakeReader{}, policy.DefaultSettings(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?date=2026-04-21&professional_id=pro-1", nil)
	rr := httptest.NewRecorder()
	h.Slots(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp slotsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Holiday)
	assert.Equal(t, "Tiradentes", resp.Holiday.Name)
	assert.True(t, resp.Bookable)
}

func TestSlotsNotConfigured(t *testing.T) {
	settings := policy.DefaultSettings(nil)
	settings.WorkingHours.WorkingDays = 0
	h := newAvailability(&fakeReader{}, settings)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?date=2026-03-10&professional_id=pro-1", nil)
	rr := httptest.NewRecorder()
	h.Slots(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "not-configured")
}

func TestSlotsRequiresProfessional(t *testing.T) {
	h := newAvailability(&fakeReader{}, policy.DefaultSettings(nil))
	rr := httptest.NewRecorder()
	h.Slots(rr, httptest.NewRequest(http.MethodGet, "/api/v1/slots?date=2026-03-10", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Slots(rr, httptest.NewRequest(http.MethodPost, "/api/v1/slots", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFirstAvailableSkipsWeekend(t *testing.T) {
	h := newAvailability(&fakeReader{}, policy.DefaultSettings(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/first-available?from=2026-03-14&professional_id=pro-1", nil)
	rr := httptest.NewRecorder()
	h.FirstAvailable(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp firstAvailableResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, "2026-03-16", resp.Date)
}

func TestHolidays(t *testing.T) {
	h := newAvailability(&fakeReader{}, policy.DefaultSettings(nil))

	rr := httptest.NewRecorder()
	h.Holidays(rr, httptest.NewRequest(http.MethodGet, "/api/v1/holidays?year=2026", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "2026-04-05")

	rr = httptest.NewRecorder()
	h.Holidays(rr, httptest.NewRequest(http.MethodGet, "/api/v1/holidays?year=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type fakeBooker struct {
	bookErr   error
	updateErr error
	booked    booking.BookRequest
	updated   booking.UpdateRequest
}

func (f *fakeBooker) Book(_ context.Context, req booking.BookRequest) (model.Appointment, error) {
	f.booked = req
	if f.bookErr != nil {
		return model.Appointment{}, f.bookErr
	}
	return model.Appointment{
		ID: "appt-1", ProfessionalID: req.ProfessionalID, ClientID: req.ClientID, ClientName: req.ClientName,
		Date: req.Date, Time: req.Time.String(), Status: model.StatusScheduled, PaymentStatus: model.PaymentPending,
	}, nil
}

func (f *fakeBooker) Update(_ context.Context, req booking.UpdateRequest) (model.Appointment, error) {
	f.updated = req
	if f.updateErr != nil {
		return model.Appointment{}, f.updateErr
	}
	return model.Appointment{ID: req.AppointmentID, ProfessionalID: req.ProfessionalID, Status: *req.Status}, nil
}

const bookBody = `{"client_id":"c1","client_name":"Ana","date":"2026-03-11","time":"09:00","price_cents":15000}`

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(professionalHeader, "pro-1")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestBookCreated(t *testing.T) {
	booker := &fakeBooker{}
	h := NewAppointmentHandler(booker, &fakeReader{}, discardLogger())

	rr := postJSON(h.Book, "/api/v1/appointments/book", bookBody)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "pro-1", booker.booked.ProfessionalID)
	assert.Equal(t, model.NewClock(9, 0), booker.booked.Time)

	var resp appointmentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "appt-1", resp.ID)
	assert.Equal(t, "2026-03-11", resp.Date)
	assert.Equal(t, "09:00", resp.Time)
}

func TestBookErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"rejected", &booking.Rejection{Reason: booking.ReasonSlotAlreadyBooked}, http.StatusUnprocessableEntity, "slot-already-booked"},
		{"race lost", booking.ErrRaceLost, http.StatusConflict, "race_lost"},
		{"input", &booking.InputError{Err: io.ErrUnexpectedEOF}, http.StatusBadRequest, "unexpected EOF"},
		{"internal", io.ErrClosedPipe, http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAppointmentHandler(&fakeBooker{bookErr: tc.err}, &fakeReader{}, discardLogger())
			rr := postJSON(h.Book, "/api/v1/appointments/book", bookBody)
			assert.Equal(t, tc.status, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.body)
		})
	}
}

func TestBookBadInput(t *testing.T) {
	h := NewAppointmentHandler(&fakeBooker{}, &fakeReader{}, discardLogger())
	assert.Equal(t, http.StatusBadRequest, postJSON(h.Book, "/", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(h.Book, "/", `{"date":"11/03/2026","time":"09:00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(h.Book, "/", `{"date":"2026-03-11","time":"9h"}`).Code)
}

func TestUpdateMapsNotFoundAndConflict(t *testing.T) {
	body := `{"appointment_id":"appt-1","status":"scheduled"}`

	h := NewAppointmentHandler(&fakeBooker{updateErr: booking.ErrNotFound}, &fakeReader{}, discardLogger())
	assert.Equal(t, http.StatusNotFound, postJSON(h.Update, "/", body).Code)

	h = NewAppointmentHandler(&fakeBooker{updateErr: booking.ErrSlotTaken}, &fakeReader{}, discardLogger())
	assert.Equal(t, http.StatusConflict, postJSON(h.Update, "/", body).Code)

	booker := &fakeBooker{}
	h = NewAppointmentHandler(booker, &fakeReader{}, discardLogger())
	rr := postJSON(h.Update, "/", `{"appointment_id":"appt-1","status":"completed","corrective":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, booker.updated.Status)
	assert.Equal(t, model.StatusCompleted, *booker.updated.Status)
	assert.True(t, booker.updated.Corrective)
}

func TestListAppointments(t *testing.T) {
	reader := &fakeReader{appts: []model.Appointment{
		{ID: "a1", Date: civil.Date{Year: 2026, Month: 3, Day: 10}, Time: "09:00:00"},
		{ID: "6f1c1d0e-8a52-4c41-9a77-0c7f1b0d2e11", Date: civil.Date{Year: 2026, Month: 3, Day: 12}, Time: "10:00:00"},
	}}
	h := NewAppointmentHandler(&fakeBooker{}, reader, discardLogger())

	get := func(url string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set(professionalHeader, "pro-1")
		rr := httptest.NewRecorder()
		h.List(rr, req)
		return rr
	}

	var items []appointmentResponse
	rr := get("/api/v1/appointments?date=2026-03-10")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "09:00", items[0].Time)

	rr = get("/api/v1/appointments?from=2026-03-01&to=2026-03-31")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	assert.Len(t, items, 2)

	rr = get("/api/v1/appointments?id=6f1c1d0e-8a52-4c41-9a77-0c7f1b0d2e11")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"date":"2026-03-12"`)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/appointments?id=not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/appointments?id=0b0e3a57-0000-4000-8000-000000000000").Code)

	assert.Equal(t, http.StatusBadRequest, get("/api/v1/appointments?from=2026-03-31&to=2026-03-01").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/appointments").Code)
}

type fakeFeed struct {
	ns     []model.DerivedNotification
	marked int
}

func (f *fakeFeed) Notifications(context.Context, string) ([]model.DerivedNotification, error) {
	return f.ns, nil
}

func (f *fakeFeed) MarkAllRead(context.Context, string) (int, error) {
	return f.marked, nil
}

type touchRecorder struct{ touched []string }

func (r *touchRecorder) Touch(id string) { r.touched = append(r.touched, id) }

func TestNotificationsListTouchesPresence(t *testing.T) {
	feed := &fakeFeed{ns: []model.DerivedNotification{
		{ID: model.Upcoming("a1", 24), Read: false},
		{ID: model.Concluded("a2"), Read: true},
	}}
	presence := &touchRecorder{}
	h := NewNotificationHandler(feed, readstate.NewMemoryStore(nil), presence, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set(professionalHeader, "pro-1")
	rr := httptest.NewRecorder()
	h.List(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"pro-1"}, presence.touched)

	var resp struct {
		Notifications []json.RawMessage `json:"notifications"`
		Unread        int               `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 1, resp.Unread)
}

func TestNotificationsMarkReadAndClear(t *testing.T) {
	store := readstate.NewMemoryStore(nil)
	h := NewNotificationHandler(&fakeFeed{marked: 3}, store, nil, discardLogger())

	rr := postJSON(h.MarkRead, "/api/v1/notifications/read", `{"ids":["a1-24","a2-past","a1-24"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"marked":2}`, rr.Body.String())

	ok, err := store.IsRead(context.Background(), "pro-1", model.Upcoming("a1", 24))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, http.StatusBadRequest, postJSON(h.MarkRead, "/", `{"ids":["nodash"]}`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(h.MarkRead, "/", `{"ids":[]}`).Code)

	rr = postJSON(h.MarkAllRead, "/api/v1/notifications/read-all", ``)
	assert.JSONEq(t, `{"marked":3}`, rr.Body.String())

	rr = postJSON(h.Clear, "/api/v1/notifications/clear", ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cleared":2}`, rr.Body.String())
}
