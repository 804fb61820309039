package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription is the per-user practice-minutes balance. TotalMinutes
// only ever grows; AvailableMinutes grows on purchase and shrinks on
// consumption, never below zero.
type Subscription struct {
	gorm.Model
	UserID           string    `gorm:"uniqueIndex;not null" json:"userId"`
	AvailableMinutes int       `gorm:"not null;default:0" json:"availableMinutes"`
	TotalMinutes     int       `gorm:"not null;default:0" json:"totalMinutes"`
	LastRenewedAt    time.Time `json:"lastRenewedAt"`
}
