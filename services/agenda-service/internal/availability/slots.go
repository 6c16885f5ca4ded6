package availability

import (
	"errors"
	"fmt"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

// MaxSlots bounds generation regardless of configuration.
const MaxSlots = 200

var (
	ErrInvalidSlotMinutes = errors.New("slot duration must be positive")
	ErrInvertedHours      = errors.New("working hours start after end")
)

// ConfigError marks a missing or unusable working-hours configuration.
// Callers degrade to model.FallbackWorkingHours instead of failing.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("availability: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// GenerateSlots steps from Start by SlotMinutes and includes End when it lands on a step.
// A nil cfg generates the fallback schedule.
func GenerateSlots(cfg *model.WorkingHours) ([]model.Clock, error) {
	if cfg == nil {
		fb := model.FallbackWorkingHours()
		cfg = &fb
	}
	if cfg.SlotMinutes <= 0 {
		return nil, &ConfigError{Field: "slot_minutes", Err: ErrInvalidSlotMinutes}
	}
	if cfg.Start > cfg.End {
		return nil, &ConfigError{Field: "working_hours", Err: ErrInvertedHours}
	}

	slots := make([]model.Clock, 0, min(MaxSlots, int(cfg.End-cfg.Start)/cfg.SlotMinutes+1))
	for t := cfg.Start; t <= cfg.End && len(slots) < MaxSlots; t += model.Clock(cfg.SlotMinutes) {
		slots = append(slots, t)
	}
	return slots, nil
}

// SlotsOrFallback never fails: an invalid cfg yields the fallback slots plus the ConfigError for logging.
func SlotsOrFallback(cfg *model.WorkingHours) ([]model.Clock, error) {
	slots, err := GenerateSlots(cfg)
	if err == nil {
		return slots, nil
	}
	fb := model.FallbackWorkingHours()
	fallback, _ := GenerateSlots(&fb)
	return fallback, err
}
