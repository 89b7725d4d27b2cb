package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"reservas_api/pkg/database"
)

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrSlotTaken is returned when a write hits the (restaurant_id, date, table_number) unique index.
	ErrSlotTaken = errors.New("reservation slot already taken")
)

// Store is the entity store for restaurants and reservations.
type Store struct {
	db     *gorm.DB
	log    *zap.Logger
	txOpts *sql.TxOptions
}

func New(db *database.DB, log *zap.Logger) *Store {
	s := &Store{db: db.DB, log: log}
	// SQLite serializes writers on its own; PostgreSQL needs it asked for.
	if db.Dialector.Name() == "postgres" {
		s.txOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return s
}

// Transaction runs fn against a store bound to a single transaction. Any
// error returned by fn rolls the transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	opts := []*sql.TxOptions{}
	if s.txOpts != nil {
		opts = append(opts, s.txOpts)
	}
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{db: gtx, log: s.log, txOpts: s.txOpts})
	}, opts...)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrSlotTaken
	default:
		return err
	}
}

func wrap(op string, err error) error {
	err = translate(err)
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrSlotTaken) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
