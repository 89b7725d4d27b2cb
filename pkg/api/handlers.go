package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reservas_api/pkg/reservation"
	"reservas_api/pkg/restaurant"
)

func (s *Server) listRestaurants(c *gin.Context) {
	restaurants, err := s.restaurants.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, restaurants)
}

func (s *Server) getRestaurant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	found, err := s.restaurants.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) createRestaurant(c *gin.Context) {
	var req restaurant.Request
	if !bindJSON(c, &req) {
		return
	}
	created, err := s.restaurants.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateRestaurant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req restaurant.Request
	if !bindJSON(c, &req) {
		return
	}
	updated, err := s.restaurants.Update(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteRestaurant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.restaurants.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurante eliminado"})
}

func (s *Server) listReservations(c *gin.Context) {
	reservations, err := s.reservations.List(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

func (s *Server) getReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.reservations.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) createReservation(c *gin.Context) {
	var req reservation.CreateRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := s.reservations.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reservation.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := s.reservations.Update(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.reservations.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reserva eliminada"})
}
