// Package model contains the symbol cache model for the database.
package model

import (
	"time"
)

// SymCache is a symbol cache blob stored under its cache key.
type SymCache struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Data      []byte    `json:"-"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
