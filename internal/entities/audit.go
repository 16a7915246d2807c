package entities

import "time"

type AuthEventType string

const (
	AuthEventLogin         AuthEventType = "login"
	AuthEventSignup        AuthEventType = "signup"
	AuthEventLogout        AuthEventType = "logout"
	AuthEventVerify        AuthEventType = "verify"
	AuthEventProfileUpdate AuthEventType = "profile_update"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuthEvent is one entry in the local authentication audit trail.
type AuthEvent struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	EventID     string        `gorm:"size:36;index" json:"event_id"`
	EventType   AuthEventType `gorm:"index;size:30" json:"event_type"`
	Email       string        `gorm:"size:255" json:"email,omitempty"`
	Description string        `gorm:"size:500" json:"description"`
	Status      AuditStatus   `gorm:"size:20" json:"status"`
	ErrorMsg    string        `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time     `gorm:"index" json:"created_at"`
}

func (AuthEvent) TableName() string {
	return "auth_events"
}
