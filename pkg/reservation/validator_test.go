package reservation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservas_api/pkg/apperr"
	"reservas_api/pkg/models"
	"reservas_api/pkg/store"
)

// fakeReader is an in-memory Reader over a fixed set of reservations.
type fakeReader struct {
	restaurants  map[uint]bool
	reservations []models.Reservation
	err          error
}

func (f *fakeReader) RestaurantExists(_ context.Context, id uint) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.restaurants[id], nil
}

func (f *fakeReader) FindReservationBySlot(_ context.Context, restaurantID uint, date string, table int, excludeID uint) (*models.Reservation, error) {
	for _, r := range f.reservations {
		if r.RestaurantID == restaurantID && r.Date == date && r.TableNumber == table && r.ID != excludeID {
			r := r
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeReader) CountReservations(_ context.Context, filter store.CountFilter) (int64, error) {
	var n int64
	for _, r := range f.reservations {
		if filter.RestaurantID != nil && r.RestaurantID != *filter.RestaurantID {
			continue
		}
		if filter.Date != nil && r.Date != *filter.Date {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeReader) add(restaurantID uint, date string, table int) {
	f.reservations = append(f.reservations, models.Reservation{
		ID:           uint(len(f.reservations) + 1),
		RestaurantID: restaurantID,
		Date:         date,
		TableNumber:  table,
	})
}

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int { return &v }

func candidate(restaurantID uint, date string, table int) Candidate {
	return Candidate{RestaurantID: uintPtr(restaurantID), Date: date, TableNumber: intPtr(table)}
}

func TestValidateAccepts(t *testing.T) {
	r := &fakeReader{restaurants: map[uint]bool{1: true}}
	v := NewValidator(DefaultLimits())

	rejection, err := v.Validate(context.Background(), r, candidate(1, "2024-07-22", 4), AllChecks)
	require.NoError(t, err)
	assert.Nil(t, rejection)
}

func TestValidateRejections(t *testing.T) {
	full := &fakeReader{restaurants: map[uint]bool{1: true, 2: true}}
	for table := 1; table <= 15; table++ {
		full.add(1, "2024-07-23", table)
	}

	global := &fakeReader{restaurants: map[uint]bool{1: true, 2: true}}
	for table := 1; table <= 10; table++ {
		global.add(1, "2024-07-24", table)
		global.add(2, "2024-07-24", table)
	}

	taken := &fakeReader{restaurants: map[uint]bool{1: true}}
	taken.add(1, "2024-07-22", 5)

	tests := []struct {
		name     string
		reader   *fakeReader
		cand     Candidate
		expected Reason
		message  string
	}{
		{
			name:     "unknown restaurant",
			reader:   &fakeReader{restaurants: map[uint]bool{}},
			cand:     candidate(9, "2024-07-22", 4),
			expected: ReasonRestaurantNotFound,
			message:  "El restaurante no existe",
		},
		{
			name:     "unknown restaurant wins over every other problem",
			reader:   taken,
			cand:     Candidate{RestaurantID: uintPtr(9), Date: "mañana", TableNumber: intPtr(99)},
			expected: ReasonRestaurantNotFound,
		},
		{
			name:     "restaurant id that is not an integer",
			reader:   taken,
			cand:     Candidate{Date: "2024-07-22", TableNumber: intPtr(1)},
			expected: ReasonRestaurantNotFound,
		},
		{
			name:     "table zero",
			reader:   taken,
			cand:     candidate(1, "2024-07-22", 0),
			expected: ReasonTableNumberOutOfRange,
			message:  "El número de mesa debe estar entre 1 y 15",
		},
		{
			name:     "table sixteen",
			reader:   taken,
			cand:     candidate(1, "2024-07-22", 16),
			expected: ReasonTableNumberOutOfRange,
		},
		{
			name:     "table not an integer",
			reader:   taken,
			cand:     Candidate{RestaurantID: uintPtr(1), Date: "2024-07-22"},
			expected: ReasonTableNumberOutOfRange,
		},
		{
			name:     "malformed date",
			reader:   taken,
			cand:     candidate(1, "22/07/2024", 3),
			expected: ReasonInvalidDate,
		},
		{
			name:     "table taken",
			reader:   taken,
			cand:     candidate(1, "2024-07-22", 5),
			expected: ReasonTableConflict,
			message:  "La mesa 5 ya está reservada para ese restaurante en esa fecha",
		},
		{
			name:     "conflict is reported before capacity",
			reader:   full,
			cand:     Candidate{RestaurantID: uintPtr(1), Date: "2024-07-23", TableNumber: intPtr(15), ExcludeID: 1000},
			expected: ReasonTableConflict,
		},
		{
			name:     "day full across restaurants",
			reader:   global,
			cand:     candidate(2, "2024-07-24", 11),
			expected: ReasonGlobalCapacityExceeded,
			message:  "No hay más cupo total para esa fecha",
		},
	}

	v := NewValidator(DefaultLimits())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection, err := v.Validate(context.Background(), tt.reader, tt.cand, AllChecks)
			require.NoError(t, err)
			require.NotNil(t, rejection)
			assert.Equal(t, tt.expected, rejection.Reason)
			if tt.message != "" {
				assert.Equal(t, tt.message, rejection.Message)
			}
		})
	}
}

func TestValidateRestaurantCapacity(t *testing.T) {
	// With default limits a full day has every table taken, so conflict trips first.
	limits := Limits{TablesPerRestaurant: 15, RestaurantDailyCapacity: 3, GlobalDailyCapacity: 20}
	r := &fakeReader{restaurants: map[uint]bool{1: true}}
	for table := 1; table <= 3; table++ {
		r.add(1, "2024-07-23", table)
	}

	rejection, err := NewValidator(limits).Validate(context.Background(), r, candidate(1, "2024-07-23", 4), AllChecks)
	require.NoError(t, err)
	require.NotNil(t, rejection)
	assert.Equal(t, ReasonRestaurantCapacityExceeded, rejection.Reason)
	assert.Equal(t, "No hay más cupo en este restaurante para esa fecha", rejection.Message)
}

func TestValidateExcludesSelf(t *testing.T) {
	r := &fakeReader{restaurants: map[uint]bool{1: true}}
	r.add(1, "2024-07-22", 5)

	c := candidate(1, "2024-07-22", 5)
	c.ExcludeID = 1
	rejection, err := NewValidator(DefaultLimits()).Validate(context.Background(), r, c, CheckTableRange|CheckConflict)
	require.NoError(t, err)
	assert.Nil(t, rejection)
}

func TestValidateOnlyRunsSelectedChecks(t *testing.T) {
	r := &fakeReader{restaurants: map[uint]bool{}}
	for table := 1; table <= 15; table++ {
		r.add(1, "2024-07-23", table)
	}

	// Restaurant 1 is unknown and full, but neither check is selected.
	c := candidate(1, "2024-07-23", 16)
	rejection, err := NewValidator(DefaultLimits()).Validate(context.Background(), r, c, CheckConflict)
	require.NoError(t, err)
	assert.Nil(t, rejection)
}

func TestValidateStoreError(t *testing.T) {
	boom := errors.New("db down")
	r := &fakeReader{err: boom}

	rejection, err := NewValidator(DefaultLimits()).Validate(context.Background(), r, candidate(1, "2024-07-22", 1), AllChecks)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, rejection)
}

func TestReasonKinds(t *testing.T) {
	assert.Equal(t, apperr.KindValidation, ReasonRestaurantNotFound.Kind())
	assert.Equal(t, apperr.KindValidation, ReasonTableNumberOutOfRange.Kind())
	assert.Equal(t, apperr.KindConflict, ReasonTableConflict.Kind())
	assert.Equal(t, apperr.KindConflict, ReasonGlobalCapacityExceeded.Kind())
	assert.Equal(t, "table_conflict", ReasonTableConflict.String())
}

func TestScalar(t *testing.T) {
	n, ok := Scalar(`4`).Int()
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	for _, raw := range []string{`4.0`, `"4"`, `true`, `null`, ``, `1e2`} {
		_, ok := Scalar(raw).Int()
		assert.False(t, ok, raw)
	}

	_, ok = Scalar(`0`).ID()
	assert.False(t, ok)
	id, ok := Scalar(`3`).ID()
	assert.True(t, ok)
	assert.Equal(t, uint(3), id)

	s, ok := Scalar(`"2024-07-22"`).Text()
	assert.True(t, ok)
	assert.Equal(t, "2024-07-22", s)
	_, ok = Scalar(`20240722`).Text()
	assert.False(t, ok)

	assert.True(t, ValidDate("2024-02-29"))
	assert.False(t, ValidDate("2023-02-29"))
	assert.False(t, ValidDate("2024-7-22"))
}
