package restaurant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"reservas_api/pkg/apperr"
	"reservas_api/pkg/events"
	"reservas_api/pkg/metrics"
	"reservas_api/pkg/models"
	"reservas_api/pkg/optional"
	"reservas_api/pkg/store"
)

const msgNotFound = "Restaurante no encontrado"

var allowedFilters = map[string]bool{"letra": true, "ciudad": true}

// Column sizes, mirrored from the model tags.
var maxLengths = map[string]int{
	"name":      100,
	"address":   200,
	"city":      50,
	"image_url": 300,
}

// Request is the body of both POST and PUT /restaurants. On create only
// name is required; on update absent keys are left untouched and null
// clears an optional column.
type Request struct {
	Name        optional.Field[string] `json:"name"`
	Description optional.Field[string] `json:"description"`
	Address     optional.Field[string] `json:"address"`
	City        optional.Field[string] `json:"city"`
	ImageURL    optional.Field[string] `json:"image_url"`
}

func (r Request) changes() store.RestaurantChanges {
	return store.RestaurantChanges{
		Name:        r.Name,
		Description: r.Description,
		Address:     r.Address,
		City:        r.City,
		ImageURL:    r.ImageURL,
	}
}

func (r Request) validate() error {
	for field, f := range map[string]optional.Field[string]{
		"name":      r.Name,
		"address":   r.Address,
		"city":      r.City,
		"image_url": r.ImageURL,
	} {
		if v, ok := f.Get(); ok && utf8.RuneCountInString(v) > maxLengths[field] {
			return apperr.Validation(fmt.Sprintf("El campo '%s' no puede superar %d caracteres", field, maxLengths[field]))
		}
	}
	return nil
}

type Service struct {
	store     *store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewService(s *store.Store, p events.Publisher, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		store:     s,
		publisher: p,
		metrics:   m,
		log:       log.With(zap.String("component", "restaurant_service")),
	}
}

// List accepts only the letra (case-sensitive name prefix) and ciudad
// (exact city) filters. Any other key is rejected before the store is queried.
func (s *Service) List(ctx context.Context, query url.Values) ([]models.Restaurant, error) {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !allowedFilters[key] {
			return nil, apperr.Validation("Filtro no soportado: " + key)
		}
	}

	restaurants, err := s.store.ListRestaurants(ctx, store.RestaurantFilter{
		NamePrefix: query.Get("letra"),
		City:       query.Get("ciudad"),
	})
	if err != nil {
		return nil, apperr.Unexpected("Error al listar los restaurantes", err)
	}
	return restaurants, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Restaurant, error) {
	restaurant, err := s.store.GetRestaurant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, apperr.Unexpected("Error al obtener el restaurante", err)
	}
	return restaurant, nil
}

func (s *Service) Create(ctx context.Context, req Request) (*models.Restaurant, error) {
	name, ok := req.Name.Get()
	if !ok || strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("El campo 'name' es obligatorio")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	restaurant := &models.Restaurant{
		Name:        name,
		Description: req.Description.Ptr(),
		Address:     req.Address.Ptr(),
		City:        req.City.Ptr(),
		ImageURL:    req.ImageURL.Ptr(),
	}
	if err := s.store.CreateRestaurant(ctx, restaurant); err != nil {
		return nil, apperr.Unexpected("Error al crear el restaurante", err)
	}

	s.log.Info("Restaurant created", zap.Uint("restaurant_id", restaurant.ID), zap.String("name", restaurant.Name))
	s.publish(ctx, events.TypeRestaurantCreated, restaurant.ID, restaurantPayload(restaurant))
	return restaurant, nil
}

func (s *Service) Update(ctx context.Context, id uint, req Request) (*models.Restaurant, error) {
	if req.Name.Set {
		if name, ok := req.Name.Get(); !ok || strings.TrimSpace(name) == "" {
			return nil, apperr.Validation("El campo 'name' no puede estar vacío")
		}
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	restaurant, err := s.store.UpdateRestaurant(ctx, id, req.changes())
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, apperr.Unexpected("Error al actualizar el restaurante", err)
	}

	s.log.Info("Restaurant updated", zap.Uint("restaurant_id", id))
	s.publish(ctx, events.TypeRestaurantUpdated, restaurant.ID, restaurantPayload(restaurant))
	return restaurant, nil
}

// Delete removes the restaurant together with its reservations.
func (s *Service) Delete(ctx context.Context, id uint) error {
	var removed int64
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		removed, err = tx.DeleteRestaurant(ctx, id)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msgNotFound)
	}
	if err != nil {
		s.log.Error("Failed to delete restaurant", zap.Uint("restaurant_id", id), zap.Error(err))
		return apperr.Unexpected("Error al eliminar el restaurante", err)
	}

	s.log.Info("Restaurant deleted", zap.Uint("restaurant_id", id), zap.Int64("removed_reservations", removed))
	s.publish(ctx, events.TypeRestaurantDeleted, id, map[string]interface{}{
		"id":                   id,
		"removed_reservations": removed,
	})
	return nil
}

func restaurantPayload(r *models.Restaurant) map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"name":        r.Name,
		"description": r.Description,
		"address":     r.Address,
		"city":        r.City,
		"image_url":   r.ImageURL,
	}
}

func (s *Service) publish(ctx context.Context, eventType string, id uint, payload map[string]interface{}) {
	event := events.NewEvent(ctx, eventType, strconv.FormatUint(uint64(id), 10), payload)
	err := s.publisher.Publish(ctx, event)
	s.metrics.ObserveEvent(eventType, err)
	if err != nil {
		s.log.Warn("Failed to publish event",
			zap.String("event_type", eventType),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
}
