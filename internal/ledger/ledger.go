// Package ledger tracks each user's practice-minutes balance.
package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mockmate/interview/internal/metrics"
	"mockmate/interview/internal/models"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// AddMinutes upserts the user's subscription: created with
// available=total=n when absent, otherwise both counters grow by n and
// lastRenewedAt is bumped.
func (l *Ledger) AddMinutes(userID string, n int) (*models.Subscription, error) {
	now := time.Now()
	sub := &models.Subscription{
		UserID:           userID,
		AvailableMinutes: n,
		TotalMinutes:     n,
		LastRenewedAt:    now,
	}

	err := l.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"available_minutes": gorm.Expr("available_minutes + ?", n),
			"total_minutes":     gorm.Expr("total_minutes + ?", n),
			"last_renewed_at":   now,
		}),
	}).Create(sub).Error
	if err != nil {
		return nil, err
	}

	return l.Get(userID)
}

// DeductMinutes consumes n minutes. The decrement is a single
// conditional UPDATE so two concurrent deductions can never both pass a
// stale balance check: at most one matches the guard row. Returns false
// with no mutation when the balance is short or no subscription exists.
func (l *Ledger) DeductMinutes(userID string, n int) (bool, error) {
	result := l.db.Model(&models.Subscription{}).
		Where("user_id = ? AND available_minutes >= ?", userID, n).
		UpdateColumn("available_minutes", gorm.Expr("available_minutes - ?", n))
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	metrics.MinutesDeducted.Add(float64(n))
	return true, nil
}

// CheckAvailableMinutes reports whether the user can afford n minutes.
// Pure read, never mutates.
func (l *Ledger) CheckAvailableMinutes(userID string, n int) (bool, error) {
	sub, err := l.Get(userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.AvailableMinutes >= n, nil
}

// Get loads the user's subscription.
func (l *Ledger) Get(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := l.db.First(&sub, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
