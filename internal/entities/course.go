package entities

import "time"

// Module is a top-level section of a course
type Module struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CourseID   string    `gorm:"size:64;index;not null" json:"course_id"`
	Title      string    `gorm:"size:512;not null" json:"title"`
	OrderIndex int       `json:"order_index"`
	IsRequired bool      `gorm:"default:true" json:"is_required"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Module) TableName() string {
	return "course_modules"
}

// Subject is a discipline; one subject may be linked to several modules
type Subject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"size:64;index" json:"code"`
	Name        string    `gorm:"size:512;index;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Subject) TableName() string {
	return "subjects"
}

type ModuleSubject struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ModuleID   uint      `gorm:"uniqueIndex:idx_module_subject;not null" json:"module_id"`
	SubjectID  uint      `gorm:"uniqueIndex:idx_module_subject;not null" json:"subject_id"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ModuleSubject) TableName() string {
	return "module_subjects"
}

// Lesson belongs to a module and is linked to its subject through SubjectLesson
type Lesson struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ModuleID    uint      `gorm:"index;not null" json:"module_id"`
	Title       string    `gorm:"size:512;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Content     string    `gorm:"type:text" json:"content,omitempty"`
	ContentType string    `gorm:"size:20" json:"content_type"`
	ContentURL  string    `gorm:"size:1024;index" json:"content_url"`
	StoragePath string    `gorm:"size:1024" json:"storage_path,omitempty"`
	PublicURL   string    `gorm:"size:1024" json:"public_url,omitempty"`
	OrderIndex  int       `json:"order_index"`
	IsPreview   bool      `json:"is_preview"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type SubjectLesson struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SubjectID uint      `gorm:"uniqueIndex:idx_subject_lesson;not null" json:"subject_id"`
	LessonID  uint      `gorm:"uniqueIndex:idx_subject_lesson;not null" json:"lesson_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (SubjectLesson) TableName() string {
	return "subject_lessons"
}

// Test is an assessment document. Inactive tests wait for a manual answer key.
type Test struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	CourseID                string    `gorm:"size:64;index;not null" json:"course_id"`
	ModuleID                uint      `gorm:"index" json:"module_id"`
	SubjectID               uint      `gorm:"index" json:"subject_id"`
	Title                   string    `gorm:"size:512;not null" json:"title"`
	Description             string    `gorm:"type:text" json:"description,omitempty"`
	ContentURL              string    `gorm:"size:1024;index" json:"content_url"`
	StoragePath             string    `gorm:"size:1024" json:"storage_path,omitempty"`
	PublicURL               string    `gorm:"size:1024" json:"public_url,omitempty"`
	IsActive                bool      `json:"is_active"`
	RequiresManualAnswerKey bool      `json:"requires_manual_answer_key"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (Test) TableName() string {
	return "tests"
}

type AnswerKey struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TestID         uint      `gorm:"index;not null" json:"test_id"`
	QuestionNumber int       `json:"question_number"`
	CorrectAnswer  string    `gorm:"size:1" json:"correct_answer"`
	Points         int       `json:"points"`
	Justification  string    `gorm:"type:text" json:"justification,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (AnswerKey) TableName() string {
	return "test_answer_keys"
}
