package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservas_api/pkg/apperr"
	"reservas_api/pkg/models"
	"reservas_api/pkg/store"
)

// Limits are the admission capacities. Tables are numbered 1..TablesPerRestaurant.
type Limits struct {
	TablesPerRestaurant     int
	RestaurantDailyCapacity int64
	GlobalDailyCapacity     int64
}

func DefaultLimits() Limits {
	return Limits{
		TablesPerRestaurant:     15,
		RestaurantDailyCapacity: 15,
		GlobalDailyCapacity:     20,
	}
}

type Reason int

const (
	ReasonRestaurantNotFound Reason = iota + 1
	ReasonTableNumberOutOfRange
	ReasonInvalidDate
	ReasonTableConflict
	ReasonRestaurantCapacityExceeded
	ReasonGlobalCapacityExceeded
)

func (r Reason) String() string {
	switch r {
	case ReasonRestaurantNotFound:
		return "restaurant_not_found"
	case ReasonTableNumberOutOfRange:
		return "table_number_out_of_range"
	case ReasonInvalidDate:
		return "invalid_date"
	case ReasonTableConflict:
		return "table_conflict"
	case ReasonRestaurantCapacityExceeded:
		return "restaurant_daily_capacity_exceeded"
	case ReasonGlobalCapacityExceeded:
		return "global_daily_capacity_exceeded"
	default:
		return "unknown"
	}
}

// Kind is the error category a rejection is reported with. A missing
// restaurant is a bad request here, not a 404.
func (r Reason) Kind() apperr.Kind {
	switch r {
	case ReasonTableConflict, ReasonRestaurantCapacityExceeded, ReasonGlobalCapacityExceeded:
		return apperr.KindConflict
	default:
		return apperr.KindValidation
	}
}

// Rejection is the outcome of a failed admission check.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func (r *Rejection) AppError() *apperr.Error {
	return &apperr.Error{Kind: r.Reason.Kind(), Message: r.Message}
}

// Checks selects which admission rules run. They always run in declaration order.
type Checks uint8

const (
	CheckRestaurant Checks = 1 << iota
	CheckTableRange
	CheckDate
	CheckConflict
	CheckRestaurantCapacity
	CheckGlobalCapacity

	AllChecks = CheckRestaurant | CheckTableRange | CheckDate | CheckConflict | CheckRestaurantCapacity | CheckGlobalCapacity
)

func (c Checks) has(check Checks) bool {
	return c&check != 0
}

// Candidate is a proposed reservation state. A nil RestaurantID or
// TableNumber means the client sent something that is not a valid integer.
type Candidate struct {
	RestaurantID *uint
	Date         string
	TableNumber  *int
	// ExcludeID is the reservation being updated, so it never conflicts with itself.
	ExcludeID uint
}

// Reader is the read side of the store the validator needs.
type Reader interface {
	RestaurantExists(ctx context.Context, id uint) (bool, error)
	FindReservationBySlot(ctx context.Context, restaurantID uint, date string, tableNumber int, excludeID uint) (*models.Reservation, error)
	CountReservations(ctx context.Context, filter store.CountFilter) (int64, error)
}

type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits}
}

func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate runs the enabled checks against the current store state and
// returns the first rejection. The error return is reserved for store failures.
func (v *Validator) Validate(ctx context.Context, r Reader, c Candidate, checks Checks) (*Rejection, error) {
	if checks.has(CheckRestaurant) {
		exists := false
		if c.RestaurantID != nil {
			var err error
			if exists, err = r.RestaurantExists(ctx, *c.RestaurantID); err != nil {
				return nil, err
			}
		}
		if !exists {
			return v.reject(ReasonRestaurantNotFound, c), nil
		}
	}

	if checks.has(CheckTableRange) {
		if c.TableNumber == nil || *c.TableNumber < 1 || *c.TableNumber > v.limits.TablesPerRestaurant {
			return v.reject(ReasonTableNumberOutOfRange, c), nil
		}
	}

	if checks.has(CheckDate) && !ValidDate(c.Date) {
		return v.reject(ReasonInvalidDate, c), nil
	}

	// Conflict and capacity need a concrete slot.
	if c.RestaurantID == nil || c.TableNumber == nil {
		return nil, nil
	}

	if checks.has(CheckConflict) {
		_, err := r.FindReservationBySlot(ctx, *c.RestaurantID, c.Date, *c.TableNumber, c.ExcludeID)
		switch {
		case err == nil:
			return v.reject(ReasonTableConflict, c), nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	if checks.has(CheckRestaurantCapacity) {
		count, err := r.CountReservations(ctx, store.CountFilter{RestaurantID: c.RestaurantID, Date: &c.Date})
		if err != nil {
			return nil, err
		}
		if count >= v.limits.RestaurantDailyCapacity {
			return v.reject(ReasonRestaurantCapacityExceeded, c), nil
		}
	}

	if checks.has(CheckGlobalCapacity) {
		count, err := r.CountReservations(ctx, store.CountFilter{Date: &c.Date})
		if err != nil {
			return nil, err
		}
		if count >= v.limits.GlobalDailyCapacity {
			return v.reject(ReasonGlobalCapacityExceeded, c), nil
		}
	}

	return nil, nil
}

func (v *Validator) reject(reason Reason, c Candidate) *Rejection {
	return &Rejection{Reason: reason, Message: v.message(reason, c)}
}

func (v *Validator) message(reason Reason, c Candidate) string {
	switch reason {
	case ReasonRestaurantNotFound:
		return "El restaurante no existe"
	case ReasonTableNumberOutOfRange:
		return fmt.Sprintf("El número de mesa debe estar entre 1 y %d", v.limits.TablesPerRestaurant)
	case ReasonInvalidDate:
		return "La fecha debe tener formato YYYY-MM-DD"
	case ReasonTableConflict:
		table := 0
		if c.TableNumber != nil {
			table = *c.TableNumber
		}
		return fmt.Sprintf("La mesa %d ya está reservada para ese restaurante en esa fecha", table)
	case ReasonRestaurantCapacityExceeded:
		return "No hay más cupo en este restaurante para esa fecha"
	case ReasonGlobalCapacityExceeded:
		return "No hay más cupo total para esa fecha"
	default:
		return "Reserva rechazada"
	}
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
