package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

type NotificationKind int

const (
	KindUpcoming NotificationKind = iota + 1
	KindConcluded
)

const concludedSuffix = "past"

// NotificationID identifies a derived notification. Its string form is always
// derived from the fields: "{appointmentID}-{leadHours}" or "{appointmentID}-past".
type NotificationID struct {
	Kind          NotificationKind
	AppointmentID string
	LeadHours     int
}

func Upcoming(appointmentID string, leadHours int) NotificationID {
	return NotificationID{Kind: KindUpcoming, AppointmentID: appointmentID, LeadHours: leadHours}
}

func Concluded(appointmentID string) NotificationID {
	return NotificationID{Kind: KindConcluded, AppointmentID: appointmentID}
}

var ErrInvalidNotificationID = errors.New("invalid notification id")

func (id NotificationID) String() string {
	if id.Kind == KindConcluded {
		return id.AppointmentID + "-" + concludedSuffix
	}
	return id.AppointmentID + "-" + strconv.Itoa(id.LeadHours)
}

// ParseNotificationID splits on the last '-' since appointment ids are uuids.
func ParseNotificationID(raw string) (NotificationID, error) {
	i := strings.LastIndexByte(raw, '-')
	if i <= 0 || i == len(raw)-1 {
		return NotificationID{}, fmt.Errorf("%w: %q", ErrInvalidNotificationID, raw)
	}
	apptID, suffix := raw[:i], raw[i+1:]
	if suffix == concludedSuffix {
		return Concluded(apptID), nil
	}
	lead, err := strconv.Atoi(suffix)
	if err != nil || lead <= 0 {
		return NotificationID{}, fmt.Errorf("%w: %q", ErrInvalidNotificationID, raw)
	}
	return Upcoming(apptID, lead), nil
}

func (id NotificationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	parsed, err := ParseNotificationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// DerivedNotification is recomputed from appointments on every read and never stored.
type DerivedNotification struct {
	ID                NotificationID `json:"id"`
	AppointmentID     string         `json:"appointment_id"`
	ClientName        string         `json:"client_name"`
	Title             string         `json:"title"`
	Message           string         `json:"message"`
	Date              civil.Date     `json:"date"`
	Time              Clock          `json:"time"`
	StartsAt          time.Time      `json:"starts_at"`
	LeadHours         int            `json:"lead_hours"`
	AppointmentStatus Status         `json:"appointment_status"`
	Read              bool           `json:"read"`
}
