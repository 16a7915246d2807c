// Package audit persists the local trail of auth lifecycle events.
package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smolnikov/adminpanel/internal/entities"
)

// Repository stores and queries auth events.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) (*Repository, error) {
	if err := db.AutoMigrate(&entities.AuthEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit table: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}, nil
}

// Record writes one event. A non-nil cause marks the event failed and keeps
// the error text. Recording never fails the calling operation; storage
// errors are logged and dropped.
func (r *Repository) Record(eventType entities.AuthEventType, email, description string, cause error) {
	event := entities.AuthEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		Email:       email,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}
	if cause != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = cause.Error()
	}

	if err := r.db.Create(&event).Error; err != nil {
		r.logger.Error("failed to record auth event", "event_type", eventType, "error", err)
	}
}

// Recent returns the newest events, most recent first.
func (r *Repository) Recent(limit int) ([]entities.AuthEvent, error) {
	var events []entities.AuthEvent
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan prunes events created before the cutoff and returns how
// many were removed.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&entities.AuthEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune auth events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
