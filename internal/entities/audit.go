package entities

import "time"

type AuditEventType string

const (
	AuditEventImport          AuditEventType = "import"
	AuditEventScheduledImport AuditEventType = "scheduled_import"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditEvent records the outcome of a finished import run
type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ImportID    string         `gorm:"size:64;index" json:"import_id"`
	CourseID    string         `gorm:"size:64;index" json:"course_id"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Description string         `gorm:"size:500" json:"description"` // Human-readable summary
	FolderID    string         `gorm:"size:128" json:"folder_id"`
	Metadata    string         `gorm:"type:text" json:"metadata,omitempty"` // JSON encoded write result
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
