package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/threadlens/entitlement-service/internal/domain"
	"github.com/threadlens/entitlement-service/internal/ports"
)

// installationRowID pins the single-row identity table.
const installationRowID int16 = 1

// Store implements ports.DurableStore on Postgres. Everything here is
// best-effort from the caller's point of view: the application logs and
// continues when the durable tier is down.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetDeviceIdentity(ctx context.Context) (*ports.DeviceIdentity, error) {
	var rec deviceModel
	if err := s.db.WithContext(ctx).Where("id = ?", installationRowID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ports.DeviceIdentity{Token: rec.Token, CreatedAt: rec.CreatedAt}, nil
}

func (s *Store) PutDeviceIdentity(ctx context.Context, identity ports.DeviceIdentity) error {
	rec := deviceModel{ID: installationRowID, Token: identity.Token, CreatedAt: identity.CreatedAt}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "created_at"}),
		}).
		Create(&rec).Error
}

func (s *Store) MarkTrialUsed(ctx context.Context, deviceToken string, at time.Time) error {
	rec := trialMarkerModel{DeviceToken: deviceToken, FirstUsedAt: at}
	// First use wins; later registrations never move the marker.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
}

func (s *Store) TrialUsed(ctx context.Context, deviceToken string) (bool, error) {
	var rec trialMarkerModel
	err := s.db.WithContext(ctx).Where("device_token = ?", deviceToken).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) SaveTrialRecord(ctx context.Context, record domain.TrialRecord) error {
	rec := trialRecordModel{
		DeviceToken:    record.DeviceToken,
		StartedAt:      record.StartedAt,
		TrialEndsAt:    record.TrialEndsAt,
		ServerVerified: record.ServerVerified,
		ServerRestored: record.ServerRestored,
		UpdatedAt:      time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_token"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"started_at", "trial_ends_at", "server_verified", "server_restored", "updated_at",
			}),
		}).
		Create(&rec).Error
}

func (s *Store) GetTrialRecord(ctx context.Context, deviceToken string) (*domain.TrialRecord, error) {
	var rec trialRecordModel
	if err := s.db.WithContext(ctx).Where("device_token = ?", deviceToken).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.TrialRecord{
		DeviceToken:    rec.DeviceToken,
		StartedAt:      rec.StartedAt,
		TrialEndsAt:    rec.TrialEndsAt,
		ServerVerified: rec.ServerVerified,
		ServerRestored: rec.ServerRestored,
	}, nil
}

// Reset removes the identity mirror and trial record for this device. The
// trial marker is kept on purpose: a local reset must not re-open trial
// eligibility.
func (s *Store) Reset(ctx context.Context, deviceToken string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_token = ?", deviceToken).Delete(&trialRecordModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND token = ?", installationRowID, deviceToken).
			Delete(&deviceModel{}).Error
	})
}
