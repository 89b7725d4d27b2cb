package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"reservas_api/pkg/api"
	"reservas_api/pkg/auth"
	"reservas_api/pkg/circuitbreaker"
	"reservas_api/pkg/config"
	"reservas_api/pkg/database"
	"reservas_api/pkg/events"
	"reservas_api/pkg/logger"
	"reservas_api/pkg/metrics"
	"reservas_api/pkg/reservation"
	"reservas_api/pkg/restaurant"
	"reservas_api/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting reservation service", zap.String("port", cfg.Port))

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db, log)
	if cfg.SeedData {
		seedTestData(context.Background(), st, log)
	}

	publisher, err := newPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	validator := auth.NewJWTValidator(cfg.JWTSecret)
	if !validator.Enabled() {
		log.Warn("JWT_SECRET is empty, write routes are not authenticated")
	}

	srv := api.New(api.Options{
		Restaurants:  restaurant.NewService(st, publisher, m, log),
		Reservations: reservation.NewService(st, reservation.NewValidator(reservation.DefaultLimits()), publisher, m, log),
		DB:           db,
		Publisher:    publisher,
		Auth:         validator,
		Metrics:      m,
		Gatherer:     reg,
		Log:          log,
	})

	gin.SetMode(cfg.GinMode)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

// newPublisher builds the configured broker publisher behind a circuit
// breaker. A broker that cannot be reached at startup degrades to dropping
// events rather than keeping the API down.
func newPublisher(cfg config.Events, log *zap.Logger) (events.Publisher, error) {
	var next events.Publisher
	switch cfg.Broker {
	case "", "none":
		log.Info("Event publishing disabled")
		return events.NopPublisher{}, nil
	case "rabbitmq":
		p, err := events.NewAMQPPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Error("RabbitMQ unavailable, events will be dropped", zap.Error(err))
			return events.NopPublisher{}, nil
		}
		next = p
	case "kafka":
		next = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	default:
		return nil, fmt.Errorf("unsupported events broker %q", cfg.Broker)
	}

	breaker := circuitbreaker.New(cfg.Broker, 5, 30*time.Second, time.Minute, log)
	return events.NewGuarded(next, breaker), nil
}
