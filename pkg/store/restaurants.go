package store

import (
	"context"

	"go.uber.org/zap"

	"reservas_api/pkg/models"
	"reservas_api/pkg/optional"
)

type RestaurantFilter struct {
	NamePrefix string
	City       string
}

// RestaurantChanges lists the columns a partial update may touch.
// Null on an optional text column clears it.
type RestaurantChanges struct {
	Name        optional.Field[string]
	Description optional.Field[string]
	Address     optional.Field[string]
	City        optional.Field[string]
	ImageURL    optional.Field[string]
}

func (c RestaurantChanges) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if v, ok := c.Name.Get(); ok {
		cols["name"] = v
	}
	for column, f := range map[string]optional.Field[string]{
		"description": c.Description,
		"address":     c.Address,
		"city":        c.City,
		"image_url":   c.ImageURL,
	} {
		if f.Set {
			cols[column] = f.Ptr()
		}
	}
	return cols
}

func (s *Store) GetRestaurant(ctx context.Context, id uint) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, id).Error; err != nil {
		return nil, wrap("get restaurant", err)
	}
	return &restaurant, nil
}

// RestaurantExists is the existence check used by reservation admission.
func (s *Store) RestaurantExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, wrap("check restaurant", err)
	}
	return count > 0, nil
}

func (s *Store) ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]models.Restaurant, error) {
	query := s.db.WithContext(ctx).Model(&models.Restaurant{})
	if filter.NamePrefix != "" {
		// substr keeps the match case-sensitive on both PostgreSQL and SQLite,
		// where LIKE is not.
		query = query.Where("substr(name, 1, ?) = ?", len([]rune(filter.NamePrefix)), filter.NamePrefix)
	}
	if filter.City != "" {
		query = query.Where("city = ?", filter.City)
	}

	restaurants := []models.Restaurant{}
	if err := query.Order("id").Find(&restaurants).Error; err != nil {
		s.log.Error("Failed to list restaurants", zap.Error(err))
		return nil, wrap("list restaurants", err)
	}
	return restaurants, nil
}

func (s *Store) CreateRestaurant(ctx context.Context, restaurant *models.Restaurant) error {
	if err := s.db.WithContext(ctx).Create(restaurant).Error; err != nil {
		s.log.Error("Failed to create restaurant", zap.Error(err))
		return wrap("create restaurant", err)
	}
	return nil
}

func (s *Store) UpdateRestaurant(ctx context.Context, id uint, changes RestaurantChanges) (*models.Restaurant, error) {
	restaurant, err := s.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	cols := changes.columns()
	if len(cols) == 0 {
		return restaurant, nil
	}
	if err := s.db.WithContext(ctx).Model(restaurant).Updates(cols).Error; err != nil {
		s.log.Error("Failed to update restaurant", zap.Uint("restaurant_id", id), zap.Error(err))
		return nil, wrap("update restaurant", err)
	}
	return s.GetRestaurant(ctx, id)
}

// DeleteRestaurant removes the restaurant and returns how many of its
// reservations were removed with it. Call it inside Transaction so both
// deletes commit together.
func (s *Store) DeleteRestaurant(ctx context.Context, id uint) (int64, error) {
	db := s.db.WithContext(ctx)
	res := db.Where("restaurant_id = ?", id).Delete(&models.Reservation{})
	if res.Error != nil {
		return 0, wrap("delete restaurant reservations", res.Error)
	}
	removed := res.RowsAffected

	res = db.Delete(&models.Restaurant{}, id)
	if res.Error != nil {
		return 0, wrap("delete restaurant", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return removed, nil
}
