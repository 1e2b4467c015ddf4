package entities

import (
	"time"
)

type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportProgress is the latest snapshot of one import run, polled by the status endpoint
type ImportProgress struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	ImportID          string       `gorm:"size:64;uniqueIndex" json:"import_id"`
	CourseID          string       `gorm:"size:64;index" json:"course_id"`
	FolderID          string       `gorm:"size:128" json:"folder_id"`
	Status            ImportStatus `gorm:"size:20" json:"status"`
	Phase             string       `gorm:"size:20" json:"phase"`
	CurrentStep       string       `gorm:"size:512" json:"current_step,omitempty"`
	CurrentItem       string       `gorm:"size:512" json:"current_item,omitempty"`
	TotalModules      int          `json:"total_modules"`
	ProcessedModules  int          `json:"processed_modules"`
	TotalSubjects     int          `json:"total_subjects"`
	ProcessedSubjects int          `json:"processed_subjects"`
	TotalLessons      int          `json:"total_lessons"`
	ProcessedLessons  int          `json:"processed_lessons"`
	Percentage        int          `json:"percentage"`
	Errors            string       `gorm:"type:text" json:"errors,omitempty"` // JSON array of messages
	Error             string       `gorm:"type:text" json:"error,omitempty"`
	Completed         bool         `json:"completed"`
	StartedAt         time.Time    `json:"started_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

func (ImportProgress) TableName() string {
	return "import_progress"
}
