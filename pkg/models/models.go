package models

import (
	"time"
)

const DateLayout = "2006-01-02"

type Restaurant struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:100;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description"`
	Address     *string `gorm:"size:200" json:"address"`
	City        *string `gorm:"size:50;index" json:"city"`
	ImageURL    *string `gorm:"size:300" json:"image_url"`

	Reservations []Reservation `gorm:"foreignKey:RestaurantID" json:"-"`
}

type Reservation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;uniqueIndex:idx_reservation_slot,priority:1;index" json:"restaurant_id"`
	Date         string    `gorm:"size:20;not null;uniqueIndex:idx_reservation_slot,priority:2;index" json:"date"` // YYYY-MM-DD
	TableNumber  int       `gorm:"not null;uniqueIndex:idx_reservation_slot,priority:3;check:table_number >= 1 AND table_number <= 15" json:"table_number"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// All lists every model that has to be migrated.
func All() []interface{} {
	return []interface{}{&Restaurant{}, &Reservation{}}
}
