// Package courses provides the course tables used by the importer.
//
// # Interface Implementation
//
//	var _ importers.Store = (*Repository)(nil)
package courses

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/importers"
)

// Repository handles module, subject, lesson and test rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new course repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListModules(ctx context.Context, courseID string) ([]entities.Module, error) {
	var modules []entities.Module
	err := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("order_index ASC, id ASC").Find(&modules).Error
	return modules, err
}

// ListSubjectLinks returns the subjects linked to any of moduleIDs
func (r *Repository) ListSubjectLinks(ctx context.Context, moduleIDs []uint) ([]importers.SubjectLink, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	db := r.db.WithContext(ctx)

	var links []entities.ModuleSubject
	if err := db.Where("module_id IN ?", moduleIDs).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	subjectIDs := make([]uint, 0, len(links))
	for _, l := range links {
		subjectIDs = append(subjectIDs, l.SubjectID)
	}
	var subjects []entities.Subject
	if err := db.Where("id IN ?", subjectIDs).Find(&subjects).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]entities.Subject, len(subjects))
	for _, s := range subjects {
		byID[s.ID] = s
	}

	result := make([]importers.SubjectLink, 0, len(links))
	for _, l := range links {
		if s, ok := byID[l.SubjectID]; ok {
			result = append(result, importers.SubjectLink{ModuleID: l.ModuleID, Subject: s})
		}
	}
	return result, nil
}

func (r *Repository) ListLessonURLs(ctx context.Context, moduleIDs []uint) ([]string, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	var urls []string
	err := r.db.WithContext(ctx).Model(&entities.Lesson{}).
		Where("module_id IN ? AND content_url <> ''", moduleIDs).
		Pluck("content_url", &urls).Error
	return urls, err
}

func (r *Repository) ListTestURLs(ctx context.Context, courseID string) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).Model(&entities.Test{}).
		Where("course_id = ? AND content_url <> ''", courseID).
		Pluck("content_url", &urls).Error
	return urls, err
}

func (r *Repository) FindModule(ctx context.Context, courseID, title string) (*entities.Module, error) {
	var module entities.Module
	err := r.db.WithContext(ctx).Where("course_id = ? AND title = ?", courseID, title).First(&module).Error
	return found(&module, err)
}

// MaxModuleOrder returns the highest order_index of the course; ok is false when it has no modules
func (r *Repository) MaxModuleOrder(ctx context.Context, courseID string) (int, bool, error) {
	var highest sql.NullInt64
	err := r.db.WithContext(ctx).Model(&entities.Module{}).
		Where("course_id = ?", courseID).
		Select("MAX(order_index)").
		Scan(&highest).Error
	return int(highest.Int64), highest.Valid, err
}

func (r *Repository) CreateModule(ctx context.Context, module *entities.Module) error {
	return r.db.WithContext(ctx).Create(module).Error
}

func (r *Repository) FindSubjectByCode(ctx context.Context, code string) (*entities.Subject, error) {
	var subject entities.Subject
	err := r.db.WithContext(ctx).Where("code = ?", code).Order("id ASC").First(&subject).Error
	return found(&subject, err)
}

func (r *Repository) FindSubjectByName(ctx context.Context, name string) (*entities.Subject, error) {
	var subject entities.Subject
	err := r.db.WithContext(ctx).Where("name = ?", name).Order("id ASC").First(&subject).Error
	return found(&subject, err)
}

func (r *Repository) CreateSubject(ctx context.Context, subject *entities.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *Repository) HasModuleSubject(ctx context.Context, moduleID, subjectID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.ModuleSubject{}).
		Where("module_id = ? AND subject_id = ?", moduleID, subjectID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateModuleSubject(ctx context.Context, link *entities.ModuleSubject) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *Repository) FindLesson(ctx context.Context, moduleID uint, title string) (*entities.Lesson, error) {
	var lesson entities.Lesson
	err := r.db.WithContext(ctx).Where("module_id = ? AND title = ?", moduleID, title).First(&lesson).Error
	return found(&lesson, err)
}

// MaxLessonOrder returns the highest order_index within the module; ok is false when it has no lessons
func (r *Repository) MaxLessonOrder(ctx context.Context, moduleID uint) (int, bool, error) {
	var highest sql.NullInt64
	err := r.db.WithContext(ctx).Model(&entities.Lesson{}).
		Where("module_id = ?", moduleID).
		Select("MAX(order_index)").
		Scan(&highest).Error
	return int(highest.Int64), highest.Valid, err
}

func (r *Repository) CreateLesson(ctx context.Context, lesson *entities.Lesson) error {
	return r.db.WithContext(ctx).Create(lesson).Error
}

func (r *Repository) HasSubjectLesson(ctx context.Context, subjectID, lessonID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.SubjectLesson{}).
		Where("subject_id = ? AND lesson_id = ?", subjectID, lessonID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateSubjectLesson(ctx context.Context, link *entities.SubjectLesson) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *Repository) FindTestByURL(ctx context.Context, courseID, contentURL string) (*entities.Test, error) {
	var test entities.Test
	err := r.db.WithContext(ctx).Where("course_id = ? AND content_url = ?", courseID, contentURL).First(&test).Error
	return found(&test, err)
}

// CreateTest inserts the test and its answer key in one transaction
func (r *Repository) CreateTest(ctx context.Context, test *entities.Test, keys []entities.AnswerKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(test).Error; err != nil {
			return err
		}
		return insertKeys(tx, test.ID, keys)
	})
}

// ReplaceAnswerKeys deletes the answer key of the test, inserts keys and activates the test
func (r *Repository) ReplaceAnswerKeys(ctx context.Context, testID uint, keys []entities.AnswerKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&entities.AnswerKey{}).Error; err != nil {
			return err
		}
		if err := insertKeys(tx, testID, keys); err != nil {
			return err
		}
		return tx.Model(&entities.Test{}).Where("id = ?", testID).Updates(map[string]any{
			"is_active":                  true,
			"requires_manual_answer_key": false,
		}).Error
	})
}

// GetAnswerKeys returns the answer key of a test ordered by question number
func (r *Repository) GetAnswerKeys(ctx context.Context, testID uint) ([]entities.AnswerKey, error) {
	var keys []entities.AnswerKey
	err := r.db.WithContext(ctx).Where("test_id = ?", testID).Order("question_number ASC").Find(&keys).Error
	return keys, err
}

func insertKeys(tx *gorm.DB, testID uint, keys []entities.AnswerKey) error {
	if len(keys) == 0 {
		return nil
	}
	rows := make([]entities.AnswerKey, len(keys))
	for i, k := range keys {
		k.ID = 0
		k.TestID = testID
		rows[i] = k
	}
	return tx.CreateInBatches(rows, 100).Error
}

// found maps gorm's not-found error to a nil result
func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

var _ importers.Store = (*Repository)(nil)
