package policy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
)

// ErrNotConfigured means the professional has no stored settings.
var ErrNotConfigured = errors.New("policy: professional not configured")

type Settings struct {
	WorkingHours model.WorkingHours
	LeadHours    []int
}

type Provider interface {
	Settings(ctx context.Context, professionalID string) (Settings, error)
}

type staticProvider struct {
	settings Settings
}

func NewStaticProvider(settings Settings) Provider {
	settings.LeadHours = model.NormalizeLeadHours(settings.LeadHours)
	return &staticProvider{settings: settings}
}

func (p *staticProvider) Settings(_ context.Context, _ string) (Settings, error) {
	return p.settings, nil
}

// DefaultSettings pairs the fallback working hours with the given lead-times.
func DefaultSettings(leadHours []int) Settings {
	return Settings{
		WorkingHours: model.FallbackWorkingHours(),
		LeadHours:    model.NormalizeLeadHours(leadHours),
	}
}

type fallbackProvider struct {
	primary  Provider
	fallback Settings
	logger   *slog.Logger
}

// WithFallback never returns an error: missing settings or a failing primary degrade to fallback.
func WithFallback(primary Provider, fallback Settings, logger *slog.Logger) Provider {
	fallback.LeadHours = model.NormalizeLeadHours(fallback.LeadHours)
	return &fallbackProvider{primary: primary, fallback: fallback, logger: logger}
}

func (p *fallbackProvider) Settings(ctx context.Context, professionalID string) (Settings, error) {
	s, err := p.primary.Settings(ctx, professionalID)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, ErrNotConfigured):
		p.logger.Debug("professional settings missing; using defaults", "professional_id", professionalID)
	default:
		p.logger.Warn("professional settings fetch failed; using defaults", "professional_id", professionalID, "err", err)
	}
	return p.fallback, nil
}
