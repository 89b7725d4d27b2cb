package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"reservas_api/pkg/models"
	"reservas_api/pkg/optional"
)

// ReservationFilter holds AND-combined equality filters; nil fields are not applied.
type ReservationFilter struct {
	RestaurantID *uint
	Date         *string
	TableNumber  *int
}

type CountFilter struct {
	RestaurantID *uint
	Date         *string
}

type ReservationChanges struct {
	RestaurantID optional.Field[uint]
	Date         optional.Field[string]
	TableNumber  optional.Field[int]
}

func (c ReservationChanges) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if v, ok := c.RestaurantID.Get(); ok {
		cols["restaurant_id"] = v
	}
	if v, ok := c.Date.Get(); ok {
		cols["date"] = v
	}
	if v, ok := c.TableNumber.Get(); ok {
		cols["table_number"] = v
	}
	return cols
}

func (s *Store) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := s.db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return nil, wrap("get reservation", err)
	}
	return &reservation, nil
}

func (s *Store) ListReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	query := s.db.WithContext(ctx).Model(&models.Reservation{})
	if filter.RestaurantID != nil {
		query = query.Where("restaurant_id = ?", *filter.RestaurantID)
	}
	if filter.Date != nil {
		query = query.Where("date = ?", *filter.Date)
	}
	if filter.TableNumber != nil {
		query = query.Where("table_number = ?", *filter.TableNumber)
	}

	reservations := []models.Reservation{}
	if err := query.Order("id").Find(&reservations).Error; err != nil {
		s.log.Error("Failed to list reservations", zap.Error(err))
		return nil, wrap("list reservations", err)
	}
	return reservations, nil
}

func (s *Store) CountReservations(ctx context.Context, filter CountFilter) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Reservation{})
	if filter.RestaurantID != nil {
		query = query.Where("restaurant_id = ?", *filter.RestaurantID)
	}
	if filter.Date != nil {
		query = query.Where("date = ?", *filter.Date)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, wrap("count reservations", err)
	}
	return count, nil
}

// FindReservationBySlot returns the reservation holding the given table on
// the given day, ignoring excludeID (0 excludes nothing).
func (s *Store) FindReservationBySlot(ctx context.Context, restaurantID uint, date string, tableNumber int, excludeID uint) (*models.Reservation, error) {
	query := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND date = ? AND table_number = ?", restaurantID, date, tableNumber)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var reservation models.Reservation
	if err := query.First(&reservation).Error; err != nil {
		return nil, wrap("find reservation slot", err)
	}
	return &reservation, nil
}

func (s *Store) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	if err := s.db.WithContext(ctx).Create(reservation).Error; err != nil {
		err = wrap("create reservation", err)
		if !errors.Is(err, ErrSlotTaken) {
			s.log.Error("Failed to create reservation", zap.Error(err))
		}
		return err
	}
	return nil
}

func (s *Store) UpdateReservation(ctx context.Context, id uint, changes ReservationChanges) (*models.Reservation, error) {
	reservation, err := s.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	cols := changes.columns()
	if len(cols) == 0 {
		return reservation, nil
	}
	if err := s.db.WithContext(ctx).Model(reservation).Updates(cols).Error; err != nil {
		err = wrap("update reservation", err)
		if !errors.Is(err, ErrSlotTaken) {
			s.log.Error("Failed to update reservation", zap.Uint("reservation_id", id), zap.Error(err))
		}
		return nil, err
	}
	return s.GetReservation(ctx, id)
}

func (s *Store) DeleteReservation(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Reservation{}, id)
	if res.Error != nil {
		return wrap("delete reservation", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
