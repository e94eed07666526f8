package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"livechat-app/internal/models"
)

type WidgetRepository struct {
	settingsCol *mongo.Collection
}

func NewWidgetRepository(db *mongo.Database) *WidgetRepository {
	return &WidgetRepository{settingsCol: db.Collection("widget_settings")}
}

// GetByShop returns the shop's widget settings, falling back to defaults
// when the shop has never saved any.
func (r *WidgetRepository) GetByShop(ctx context.Context, shop string) (*models.WidgetSettings, error) {
	var settings models.WidgetSettings
	err := r.settingsCol.FindOne(ctx, bson.M{"shop": shop}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultWidgetSettings(shop), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *WidgetRepository) Upsert(ctx context.Context, settings *models.WidgetSettings) error {
	settings.UpdatedAt = time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = settings.UpdatedAt
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.settingsCol.ReplaceOne(ctx, bson.M{"shop": settings.Shop}, settings, opts)
	return err
}
