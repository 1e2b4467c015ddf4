package importers

import (
	"context"

	"github.com/mrlokans/courseimport/internal/entities"
)

// SubjectLink is a subject together with the module it is linked to
type SubjectLink struct {
	ModuleID uint
	Subject  entities.Subject
}

// Store is the relational store behind the importer.
// Find* methods return (nil, nil) when nothing matches.
//
// Implementations:
//   - courses.Repository (internal/database/courses) - gorm over sqlite or mysql
type Store interface {
	// Snapshot loading
	ListModules(ctx context.Context, courseID string) ([]entities.Module, error)
	ListSubjectLinks(ctx context.Context, moduleIDs []uint) ([]SubjectLink, error)
	ListLessonURLs(ctx context.Context, moduleIDs []uint) ([]string, error)
	ListTestURLs(ctx context.Context, courseID string) ([]string, error)

	FindModule(ctx context.Context, courseID, title string) (*entities.Module, error)
	MaxModuleOrder(ctx context.Context, courseID string) (int, bool, error)
	CreateModule(ctx context.Context, module *entities.Module) error

	FindSubjectByCode(ctx context.Context, code string) (*entities.Subject, error)
	FindSubjectByName(ctx context.Context, name string) (*entities.Subject, error)
	CreateSubject(ctx context.Context, subject *entities.Subject) error
	HasModuleSubject(ctx context.Context, moduleID, subjectID uint) (bool, error)
	CreateModuleSubject(ctx context.Context, link *entities.ModuleSubject) error

	FindLesson(ctx context.Context, moduleID uint, title string) (*entities.Lesson, error)
	MaxLessonOrder(ctx context.Context, moduleID uint) (int, bool, error)
	CreateLesson(ctx context.Context, lesson *entities.Lesson) error
	HasSubjectLesson(ctx context.Context, subjectID, lessonID uint) (bool, error)
	CreateSubjectLesson(ctx context.Context, link *entities.SubjectLesson) error

	FindTestByURL(ctx context.Context, courseID, contentURL string) (*entities.Test, error)
	// CreateTest inserts the test and its answer key together
	CreateTest(ctx context.Context, test *entities.Test, keys []entities.AnswerKey) error
	// ReplaceAnswerKeys swaps the answer key of a test and marks it active
	ReplaceAnswerKeys(ctx context.Context, testID uint, keys []entities.AnswerKey) error
}
