package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/notifystream/internal/models"
)

// DefaultBatchSize bounds the rows sent per INSERT statement during fan-out.
const DefaultBatchSize = 500

// Store persists notification records. Every mutation is scoped to a single
// recipient and only touches ACTIVE records.
type Store interface {
	BatchInsert(ctx context.Context, records []models.Notification) error
	CountActive(ctx context.Context, recipientID string) (int64, error)
	CountActiveRead(ctx context.Context, recipientID string) (int64, error)
	UpdateStatus(ctx context.Context, recipientID string, uids []string, status models.NotificationStatus) (int64, error)
	UpdateReadFlag(ctx context.Context, recipientID string, uids []string, isRead bool) (int64, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	RemoveAll(ctx context.Context, recipientID string) (int64, error)
	ListActive(ctx context.Context, recipientID string) ([]models.Notification, error)
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db        *gorm.DB
	batchSize int
	now       func() time.Time
}

// NewGormStore constructs a gorm backed store. Non-positive batch sizes use DefaultBatchSize.
func NewGormStore(db *gorm.DB, batchSize int) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("notification store: db is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &GormStore{
		db:        db,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// BatchInsert writes all records in one transaction, chunked by the batch size.
func (s *GormStore) BatchInsert(ctx context.Context, records []models.Notification) error {
	if len(records) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&records, s.batchSize).Error
	})
	return storeError("batch insert", err)
}

// CountActive counts the recipient's ACTIVE records.
func (s *GormStore) CountActive(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := s.active(ctx, recipientID).Count(&count).Error
	return count, storeError("count active", err)
}

// CountActiveRead counts the recipient's ACTIVE records that are read.
func (s *GormStore) CountActiveRead(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := s.active(ctx, recipientID).Where("is_read = ?", true).Count(&count).Error
	return count, storeError("count active read", err)
}

// UpdateStatus changes the status of the listed records owned by the recipient.
func (s *GormStore) UpdateStatus(ctx context.Context, recipientID string, uids []string, status models.NotificationStatus) (int64, error) {
	uids = cleanUIDs(uids)
	if len(uids) == 0 || status == models.NotificationActive {
		return 0, nil
	}

	result := s.active(ctx, recipientID).
		Where("uid IN ?", uids).
		Updates(map[string]any{
			"status":     status,
			"updated_at": s.now(),
		})
	return result.RowsAffected, storeError("update status", result.Error)
}

// UpdateReadFlag sets is_read on the listed records owned by the recipient.
// Records already carrying the flag are left untouched.
func (s *GormStore) UpdateReadFlag(ctx context.Context, recipientID string, uids []string, isRead bool) (int64, error) {
	uids = cleanUIDs(uids)
	if len(uids) == 0 {
		return 0, nil
	}

	result := s.active(ctx, recipientID).
		Where("uid IN ? AND is_read = ?", uids, !isRead).
		Updates(map[string]any{
			"is_read":    isRead,
			"updated_at": s.now(),
		})
	return result.RowsAffected, storeError("update read flag", result.Error)
}

// MarkAllRead flags every unread ACTIVE record of the recipient as read.
func (s *GormStore) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	result := s.active(ctx, recipientID).
		Where("is_read = ?", false).
		Updates(map[string]any{
			"is_read":    true,
			"updated_at": s.now(),
		})
	return result.RowsAffected, storeError("mark all read", result.Error)
}

// RemoveAll soft-deletes every ACTIVE record of the recipient.
func (s *GormStore) RemoveAll(ctx context.Context, recipientID string) (int64, error) {
	result := s.active(ctx, recipientID).
		Updates(map[string]any{
			"status":     models.NotificationRemoved,
			"updated_at": s.now(),
		})
	return result.RowsAffected, storeError("remove all", result.Error)
}

// ListActive returns the recipient's ACTIVE records, newest first, with the
// recipient and creator preloaded.
func (s *GormStore) ListActive(ctx context.Context, recipientID string) ([]models.Notification, error) {
	var rows []models.Notification
	err := s.active(ctx, recipientID).
		Preload("Recipient").
		Preload("CreatedBy").
		Order("created_at DESC").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, storeError("list active", err)
	}
	return rows, nil
}

func (s *GormStore) active(ctx context.Context, recipientID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, models.NotificationActive)
}

func cleanUIDs(uids []string) []string {
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid = strings.TrimSpace(uid); uid != "" {
			out = append(out, uid)
		}
	}
	return out
}
