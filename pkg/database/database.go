package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"reservas_api/pkg/config"
	"reservas_api/pkg/models"
)

// DB wraps the gorm handle owned by the process. It is opened once in main
// and closed at shutdown.
type DB struct {
	*gorm.DB
	log *zap.Logger
}

// Dialector picks the gorm driver from a DATABASE_URL.
// postgres:// and key=value DSNs go to PostgreSQL, everything else to SQLite.
// sqlite:///name.db is relative and sqlite:////abs/name.db absolute.
func Dialector(url string) (gorm.Dialector, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("empty database url")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "host="):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if strings.HasPrefix(path, "/") {
			path = path[1:]
		}
		return sqlite.Open(path), nil
	default:
		return sqlite.Open(url), nil
	}
}

// Connect opens the database, retrying while it comes up, configures the pool
// and migrates the schema.
func Connect(cfg config.Database, log *zap.Logger) (*DB, error) {
	dialector, err := Dialector(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Info("Connecting to database", zap.String("driver", dialector.Name()))

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var gdb *gorm.DB
	for i := 0; i < retries; i++ {
		gdb, err = gorm.Open(dialector, &gorm.Config{
			Logger:         newGormLogger(log),
			TranslateError: true,
		})
		if err == nil {
			break
		}
		log.Warn("Database connection attempt failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", retries),
			zap.Error(err),
		)
		if i < retries-1 {
			time.Sleep(cfg.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	db := New(gdb, log)
	if err := db.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.Ping(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("Database connection established successfully")
	return db, nil
}

// newGormLogger sends gorm's warnings and slow queries through zap. Missing
// rows are an expected outcome of lookups and are not logged.
func newGormLogger(log *zap.Logger) gormlogger.Interface {
	return gormlogger.New(zap.NewStdLog(log.With(zap.String("component", "gorm"))), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// New wraps an already opened gorm handle.
func New(gdb *gorm.DB, log *zap.Logger) *DB {
	return &DB{DB: gdb, log: log}
}

func (db *DB) Migrate() error {
	if err := db.DB.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

// Ping checks the connection with a short timeout.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	db.log.Info("Closing database connection")
	return sqlDB.Close()
}
