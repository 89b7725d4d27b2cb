package restaurant

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"reservas_api/pkg/apperr"
	"reservas_api/pkg/database"
	"reservas_api/pkg/events"
	"reservas_api/pkg/events/eventstest"
	"reservas_api/pkg/models"
	"reservas_api/pkg/optional"
	"reservas_api/pkg/store"
)

func setupTestService(t *testing.T) (*Service, *store.Store, *eventstest.Recorder) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db := database.New(gdb, zap.NewNop())
	require.NoError(t, db.Migrate())
	st := store.New(db, zap.NewNop())
	rec := &eventstest.Recorder{}
	return NewService(st, rec, nil, zap.NewNop()), st, rec
}

func mustCreate(t *testing.T, svc *Service, name, city string) *models.Restaurant {
	r, err := svc.Create(context.Background(), Request{Name: optional.Of(name), City: optional.Of(city)})
	require.NoError(t, err)
	return r
}

func TestCreateRestaurant(t *testing.T) {
	svc, _, rec := setupTestService(t)

	r, err := svc.Create(context.Background(), Request{
		Name:        optional.Of("Mi Restaurante"),
		Description: optional.Of("Comida típica"),
		City:        optional.Of("Bogotá"),
	})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.Equal(t, "Mi Restaurante", r.Name)
	assert.Equal(t, "Bogotá", *r.City)
	assert.Nil(t, r.Address)
	assert.Equal(t, []string{events.TypeRestaurantCreated}, rec.Types())
}

func TestCreateRestaurantRequiresName(t *testing.T) {
	svc, _, rec := setupTestService(t)

	for _, req := range []Request{
		{Description: optional.Of("Sin nombre")},
		{Name: optional.Null[string]()},
		{Name: optional.Of("   ")},
	} {
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Contains(t, apperr.As(err).Message, "name")
	}
	assert.Empty(t, rec.Types())
}

func TestCreateRestaurantTooLong(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, err := svc.Create(context.Background(), Request{
		Name: optional.Of("Ok"),
		City: optional.Of(strings.Repeat("x", 51)),
	})
	require.Error(t, err)
	assert.Equal(t, "El campo 'city' no puede superar 50 caracteres", apperr.As(err).Message)
}

func TestListRestaurants(t *testing.T) {
	svc, _, _ := setupTestService(t)
	mustCreate(t, svc, "Rápido", "Cali")
	mustCreate(t, svc, "Azulito", "Medellín")
	mustCreate(t, svc, "Arepa Loca", "Cali")

	tests := []struct {
		query    string
		expected []string
	}{
		{"", []string{"Rápido", "Azulito", "Arepa Loca"}},
		{"letra=A", []string{"Azulito", "Arepa Loca"}},
		{"letra=a", []string{}},
		{"ciudad=Cali", []string{"Rápido", "Arepa Loca"}},
		{"letra=A&ciudad=Cali", []string{"Arepa Loca"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			list, err := svc.List(context.Background(), q)
			require.NoError(t, err)
			names := []string{}
			for _, r := range list {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestListRestaurantsUnsupportedFilter(t *testing.T) {
	svc, _, _ := setupTestService(t)

	_, err := svc.List(context.Background(), url.Values{"letra": {"A"}, "pais": {"CO"}})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Filtro no soportado: pais", apperr.As(err).Message)
}

func TestUpdateRestaurant(t *testing.T) {
	svc, _, rec := setupTestService(t)
	r := mustCreate(t, svc, "UpdateMe", "Cali")

	updated, err := svc.Update(context.Background(), r.ID, Request{Name: optional.Of("Nuevo Nombre"), City: optional.Null[string]()})
	require.NoError(t, err)
	assert.Equal(t, "Nuevo Nombre", updated.Name)
	assert.Nil(t, updated.City)

	_, err = svc.Update(context.Background(), r.ID, Request{Name: optional.Of("")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Update(context.Background(), 999, Request{Name: optional.Of("No existe")})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Restaurante no encontrado", apperr.As(err).Message)

	assert.Equal(t, []string{events.TypeRestaurantCreated, events.TypeRestaurantUpdated}, rec.Types())
}

func TestGetRestaurant(t *testing.T) {
	svc, _, _ := setupTestService(t)
	r := mustCreate(t, svc, "Casa", "Cali")

	got, err := svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Casa", got.Name)

	_, err = svc.Get(context.Background(), r.ID+1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteRestaurantCascades(t *testing.T) {
	svc, st, rec := setupTestService(t)
	ctx := context.Background()
	r := mustCreate(t, svc, "DeleteMe", "Cali")
	other := mustCreate(t, svc, "Keep", "Cali")
	require.NoError(t, st.CreateReservation(ctx, &models.Reservation{RestaurantID: r.ID, Date: "2024-07-22", TableNumber: 1}))
	require.NoError(t, st.CreateReservation(ctx, &models.Reservation{RestaurantID: r.ID, Date: "2024-07-23", TableNumber: 2}))
	require.NoError(t, st.CreateReservation(ctx, &models.Reservation{RestaurantID: other.ID, Date: "2024-07-22", TableNumber: 1}))

	require.NoError(t, svc.Delete(ctx, r.ID))

	left, err := st.ListReservations(ctx, store.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].RestaurantID)

	err = svc.Delete(ctx, r.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	deleted := rec.Events()[len(rec.Events())-1]
	assert.Equal(t, events.TypeRestaurantDeleted, deleted.EventType)
	assert.Equal(t, int64(2), deleted.Payload["removed_reservations"])
}
