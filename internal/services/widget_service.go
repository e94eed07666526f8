package services

import (
	"context"
	"time"

	"livechat-app/internal/availability"
	"livechat-app/internal/models"
)

// WidgetService resolves the configuration the embed script bootstraps
// from, including whether live support is currently available.
type WidgetService struct {
	widgets WidgetRepo
}

type WidgetRepo interface {
	GetByShop(ctx context.Context, shop string) (*models.WidgetSettings, error)
	Upsert(ctx context.Context, settings *models.WidgetSettings) error
}

func NewWidgetService(widgets WidgetRepo) *WidgetService {
	return &WidgetService{widgets: widgets}
}

type ResolvedWidgetConfig struct {
	*models.WidgetSettings
	Available bool `json:"available"`
}

func (s *WidgetService) ResolveConfig(ctx context.Context, shop string) (*ResolvedWidgetConfig, error) {
	settings, err := s.widgets.GetByShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	return &ResolvedWidgetConfig{
		WidgetSettings: settings,
		Available:      availability.IsAvailable(settings.WorkingHours, time.Now()),
	}, nil
}

func (s *WidgetService) SaveSettings(ctx context.Context, settings *models.WidgetSettings) error {
	return s.widgets.Upsert(ctx, settings)
}
