package postgres

import "time"

// deviceModel is the single-row mirror of this installation's identity.
// The check constraint in the schema pins id to 1.
type deviceModel struct {
	ID        int16     `gorm:"column:id;primaryKey"`
	Token     string    `gorm:"column:token"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (deviceModel) TableName() string { return "device_identity" }

// trialMarkerModel records that a device has ever consumed its trial. The
// marker outlives the trial record itself and explicit cache resets.
type trialMarkerModel struct {
	DeviceToken string    `gorm:"column:device_token;primaryKey"`
	FirstUsedAt time.Time `gorm:"column:first_used_at"`
}

func (trialMarkerModel) TableName() string { return "trial_markers" }

// trialRecordModel keeps trial timestamps as text, same as the fast tier,
// so a corrupted value stays detectable instead of being coerced.
type trialRecordModel struct {
	DeviceToken    string    `gorm:"column:device_token;primaryKey"`
	StartedAt      string    `gorm:"column:started_at"`
	TrialEndsAt    string    `gorm:"column:trial_ends_at"`
	ServerVerified bool      `gorm:"column:server_verified"`
	ServerRestored bool      `gorm:"column:server_restored"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (trialRecordModel) TableName() string { return "trial_records" }
