package main

import (
	"context"

	"go.uber.org/zap"

	"reservas_api/pkg/models"
	"reservas_api/pkg/store"
)

func strPtr(s string) *string { return &s }

// seedTestData adds a demo restaurant unless one with the same name exists.
func seedTestData(ctx context.Context, st *store.Store, log *zap.Logger) {
	restaurants := []models.Restaurant{
		{
			Name:        "Restaurante Central",
			Description: strPtr("Cocina tradicional"),
			Address:     strPtr("Calle 10 # 5-23"),
			City:        strPtr("Cali"),
		},
	}

	for _, r := range restaurants {
		existing, err := st.ListRestaurants(ctx, store.RestaurantFilter{NamePrefix: r.Name})
		if err != nil {
			log.Warn("Failed to check seed data", zap.Error(err))
			return
		}
		if hasName(existing, r.Name) {
			continue
		}
		r := r
		if err := st.CreateRestaurant(ctx, &r); err != nil {
			log.Warn("Failed to seed restaurant", zap.String("name", r.Name), zap.Error(err))
		}
	}
	log.Info("Restaurant test data seeded")
}

func hasName(restaurants []models.Restaurant, name string) bool {
	for _, r := range restaurants {
		if r.Name == name {
			return true
		}
	}
	return false
}
