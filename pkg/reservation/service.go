package reservation

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"reservas_api/pkg/apperr"
	"reservas_api/pkg/events"
	"reservas_api/pkg/metrics"
	"reservas_api/pkg/models"
	"reservas_api/pkg/optional"
	"reservas_api/pkg/store"
)

const (
	msgMissingFields = "Debes enviar 'restaurant_id', 'date' y 'table_number'"
	msgNotFound      = "Reserva no encontrada"
)

// CreateRequest is the POST /reservations body. Fields stay raw until the
// admission checks look at them.
type CreateRequest struct {
	RestaurantID optional.Field[Scalar] `json:"restaurant_id"`
	Date         optional.Field[Scalar] `json:"date"`
	TableNumber  optional.Field[Scalar] `json:"table_number"`
}

// UpdateRequest is the PUT /reservations/{id} body; absent keys are left untouched.
type UpdateRequest struct {
	RestaurantID optional.Field[Scalar] `json:"restaurant_id"`
	Date         optional.Field[Scalar] `json:"date"`
	TableNumber  optional.Field[Scalar] `json:"table_number"`
}

type Service struct {
	store     *store.Store
	validator *Validator
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewService(s *store.Store, v *Validator, p events.Publisher, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		store:     s,
		validator: v,
		publisher: p,
		metrics:   m,
		log:       log.With(zap.String("component", "reservation_service")),
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	if !req.RestaurantID.Set || !req.Date.Set || !req.TableNumber.Set {
		return nil, apperr.Validation(msgMissingFields)
	}

	date, _ := req.Date.Value.Text()
	candidate := Candidate{
		RestaurantID: req.RestaurantID.Value.idPtr(),
		Date:         date,
		TableNumber:  req.TableNumber.Value.intPtr(),
	}

	var created *models.Reservation
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		rejection, err := s.validator.Validate(ctx, tx, candidate, AllChecks)
		if err != nil {
			return err
		}
		if rejection != nil {
			return rejection
		}

		reservation := &models.Reservation{
			RestaurantID: *candidate.RestaurantID,
			Date:         candidate.Date,
			TableNumber:  *candidate.TableNumber,
		}
		if err := tx.CreateReservation(ctx, reservation); err != nil {
			return err
		}
		created = reservation
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "create", candidate, err)
	}

	s.metrics.ObserveAdmission("create", "accepted")
	s.log.Info("Reservation created",
		zap.Uint("reservation_id", created.ID),
		zap.Uint("restaurant_id", created.RestaurantID),
		zap.String("date", created.Date),
		zap.Int("table_number", created.TableNumber),
	)
	s.publish(ctx, events.TypeReservationCreated, created)
	return created, nil
}

// List applies the restaurant_id, date and table_number equality filters.
// Values that are not integers where one is expected are ignored, and so
// are unknown keys.
func (s *Service) List(ctx context.Context, query url.Values) ([]models.Reservation, error) {
	var filter store.ReservationFilter
	if id, err := strconv.Atoi(query.Get("restaurant_id")); err == nil {
		if id < 0 {
			// No restaurant has a negative id.
			return []models.Reservation{}, nil
		}
		rid := uint(id)
		filter.RestaurantID = &rid
	}
	if date := query.Get("date"); date != "" {
		filter.Date = &date
	}
	if n, err := strconv.Atoi(query.Get("table_number")); err == nil {
		filter.TableNumber = &n
	}

	reservations, err := s.store.ListReservations(ctx, filter)
	if err != nil {
		return nil, apperr.Unexpected("Error al listar las reservas", err)
	}
	return reservations, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgNotFound)
	}
	if err != nil {
		return nil, apperr.Unexpected("Error al obtener la reserva", err)
	}
	return reservation, nil
}

// Update applies the fields present in req. A new table number is range and
// conflict checked against the reservation's slot, excluding itself. Moving
// to another restaurant or date also re-runs existence, conflict and
// capacity checks for the new (restaurant, date) pair; global capacity only
// when the date changes, since a move within one day keeps the day's total.
func (s *Service) Update(ctx context.Context, id uint, req UpdateRequest) (*models.Reservation, error) {
	var (
		updated   *models.Reservation
		candidate Candidate
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		current, err := tx.GetReservation(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		if err != nil {
			return err
		}

		var checks Checks
		var changes store.ReservationChanges
		candidate, checks, changes = s.plan(current, req)

		if checks != 0 {
			rejection, err := s.validator.Validate(ctx, tx, candidate, checks)
			if err != nil {
				return err
			}
			if rejection != nil {
				return rejection
			}
		}

		updated, err = tx.UpdateReservation(ctx, id, changes)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "update", candidate, err)
	}

	s.metrics.ObserveAdmission("update", "accepted")
	s.log.Info("Reservation updated", zap.Uint("reservation_id", id))
	s.publish(ctx, events.TypeReservationUpdated, updated)
	return updated, nil
}

// plan merges req onto current and decides which admission checks apply.
func (s *Service) plan(current *models.Reservation, req UpdateRequest) (Candidate, Checks, store.ReservationChanges) {
	restaurantID, table := current.RestaurantID, current.TableNumber
	candidate := Candidate{
		RestaurantID: &restaurantID,
		Date:         current.Date,
		TableNumber:  &table,
		ExcludeID:    current.ID,
	}
	var (
		checks  Checks
		changes store.ReservationChanges
	)

	if req.RestaurantID.Set {
		candidate.RestaurantID = req.RestaurantID.Value.idPtr()
		checks |= CheckRestaurant
		if candidate.RestaurantID != nil {
			changes.RestaurantID = optional.Of(*candidate.RestaurantID)
		}
	}
	if req.Date.Set {
		candidate.Date, _ = req.Date.Value.Text()
		checks |= CheckDate
		changes.Date = optional.Of(candidate.Date)
	}
	if req.TableNumber.Set {
		candidate.TableNumber = req.TableNumber.Value.intPtr()
		checks |= CheckTableRange | CheckConflict
		if candidate.TableNumber != nil {
			changes.TableNumber = optional.Of(*candidate.TableNumber)
		}
	}

	restaurantMoved := candidate.RestaurantID != nil && *candidate.RestaurantID != current.RestaurantID
	dateMoved := candidate.Date != current.Date
	if restaurantMoved || dateMoved {
		checks |= CheckConflict | CheckRestaurantCapacity
	}
	if dateMoved {
		checks |= CheckGlobalCapacity
	}
	return candidate, checks, changes
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	var deleted *models.Reservation
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		reservation, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteReservation(ctx, id); err != nil {
			return err
		}
		deleted = reservation
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msgNotFound)
	}
	if err != nil {
		s.log.Error("Failed to delete reservation", zap.Uint("reservation_id", id), zap.Error(err))
		return apperr.Unexpected("Error al eliminar la reserva", err)
	}

	s.log.Info("Reservation deleted", zap.Uint("reservation_id", id))
	s.publish(ctx, events.TypeReservationDeleted, deleted)
	return nil
}

// fail converts a transaction error into the error returned to callers and
// records the admission outcome.
func (s *Service) fail(ctx context.Context, operation string, c Candidate, err error) error {
	var rejection *Rejection
	if errors.Is(err, store.ErrSlotTaken) {
		// Lost a race with a concurrent write on the same slot.
		rejection = s.validator.reject(ReasonTableConflict, c)
	} else {
		errors.As(err, &rejection)
	}

	if rejection != nil {
		s.metrics.ObserveAdmission(operation, rejection.Reason.String())
		s.log.Warn("Reservation rejected",
			zap.String("operation", operation),
			zap.String("reason", rejection.Reason.String()),
			zap.String("correlation_id", events.CorrelationID(ctx)),
		)
		return rejection.AppError()
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	s.log.Error("Reservation write failed", zap.String("operation", operation), zap.Error(err))
	if operation == "create" {
		return apperr.Unexpected("Error al crear la reserva", err)
	}
	return apperr.Unexpected("Error al actualizar la reserva", err)
}

func (s *Service) publish(ctx context.Context, eventType string, r *models.Reservation) {
	event := events.NewEvent(ctx, eventType, strconv.FormatUint(uint64(r.ID), 10), map[string]interface{}{
		"id":            r.ID,
		"restaurant_id": r.RestaurantID,
		"date":          r.Date,
		"table_number":  r.TableNumber,
	})
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
