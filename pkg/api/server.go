package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"reservas_api/pkg/auth"
	"reservas_api/pkg/events"
	"reservas_api/pkg/metrics"
	"reservas_api/pkg/reservation"
	"reservas_api/pkg/restaurant"
)

// Pinger is implemented by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	restaurants  *restaurant.Service
	reservations *reservation.Service
	db           Pinger
	publisher    events.Publisher
	auth         *auth.JWTValidator
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	log          *zap.Logger
}

type Options struct {
	Restaurants  *restaurant.Service
	Reservations *reservation.Service
	DB           Pinger
	Publisher    events.Publisher
	// Auth may be nil or disabled, in which case write routes are open.
	Auth     *auth.JWTValidator
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func New(opts Options) *Server {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Server{
		restaurants:  opts.Restaurants,
		reservations: opts.Reservations,
		db:           opts.DB,
		publisher:    publisher,
		auth:         opts.Auth,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		log:          opts.Log,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.log, s.metrics), recovery(s.log), errorHandler(s.log))
	r.NoRoute(notFound)

	r.GET("/", s.root)
	r.GET("/manage/health", s.healthCheck)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))
	}

	requireAuth := auth.Middleware(s.auth, s.log)

	restaurants := r.Group("/restaurants")
	restaurants.GET("", s.listRestaurants)
	restaurants.GET("/:id", s.getRestaurant)
	restaurants.POST("", requireAuth, s.createRestaurant)
	restaurants.PUT("/:id", requireAuth, s.updateRestaurant)
	restaurants.DELETE("/:id", requireAuth, s.deleteRestaurant)

	reservations := r.Group("/reservations")
	reservations.GET("", s.listReservations)
	reservations.GET("/:id", s.getReservation)
	reservations.POST("", requireAuth, s.createReservation)
	reservations.PUT("/:id", requireAuth, s.updateReservation)
	reservations.DELETE("/:id", requireAuth, s.deleteReservation)

	return r
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API de Reservas funcionando"})
}

// healthCheck reports DOWN only when the database is unreachable. A broker
// outage degrades event delivery but never the API itself.
func (s *Server) healthCheck(c *gin.Context) {
	eventsStatus := "UP"
	if !s.publisher.Healthy() {
		eventsStatus = "DEGRADED"
	}

	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			s.log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "DOWN",
				"details": "Database ping failed",
				"events":  eventsStatus,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"events": eventsStatus,
	})
}
