package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// SchedulerLock marks a cron job as claimed for one period (LockKey) so that
// only one replica runs it.
type SchedulerLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LockName  string    `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null" json:"lock_name"`
	LockKey   string    `gorm:"uniqueIndex:idx_lock_name_key;size:100;not null" json:"lock_key"`
	LockedBy  string    `gorm:"size:100" json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (SchedulerLock) TableName() string { return "scheduler_locks" }

// ClaimSchedulerLock inserts the (name, key) row for owner. Expired rows for
// name are cleared first, so a period can be claimed again once its ttl lapses.
// It reports false when another owner holds the claim.
func ClaimSchedulerLock(db *gorm.DB, name, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	if err := db.Where("lock_name = ? AND expires_at < ?", name, now).Delete(&SchedulerLock{}).Error; err != nil {
		return false, err
	}
	err := db.Create(&SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return err == nil, err
}
