package courses

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/courseimport/internal/answerkey"
	"github.com/mrlokans/courseimport/internal/course"
	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/importers"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_courses_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.Module{},
		&entities.Subject{},
		&entities.ModuleSubject{},
		&entities.Lesson{},
		&entities.SubjectLesson{},
		&entities.Test{},
		&entities.AnswerKey{},
	)
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func TestRepository_FindReturnsNilWhenMissing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	module, err := repo.FindModule(ctx, "course-1", "Módulo 1")
	assert.NoError(t, err)
	assert.Nil(t, module)

	subject, err := repo.FindSubjectByCode(ctx, "DISC1")
	assert.NoError(t, err)
	assert.Nil(t, subject)

	lesson, err := repo.FindLesson(ctx, 1, "A01 - Intro")
	assert.NoError(t, err)
	assert.Nil(t, lesson)

	test, err := repo.FindTestByURL(ctx, "course-1", "https://drive.google.com/file/d/x/view")
	assert.NoError(t, err)
	assert.Nil(t, test)
}

func TestRepository_MaxOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, ok, err := repo.MaxModuleOrder(ctx, "course-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.CreateModule(ctx, &entities.Module{CourseID: "course-1", Title: "A", OrderIndex: 0}))
	_, ok, err = repo.MaxModuleOrder(ctx, "course-1")
	require.NoError(t, err)
	assert.True(t, ok, "an order_index of zero still counts")

	module := &entities.Module{CourseID: "course-1", Title: "B", OrderIndex: 7}
	require.NoError(t, repo.CreateModule(ctx, module))
	require.NoError(t, repo.CreateModule(ctx, &entities.Module{CourseID: "course-2", Title: "C", OrderIndex: 20}))

	highest, ok, err := repo.MaxModuleOrder(ctx, "course-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, highest)

	require.NoError(t, repo.CreateLesson(ctx, &entities.Lesson{ModuleID: module.ID, Title: "x", OrderIndex: 3}))
	highest, ok, err = repo.MaxLessonOrder(ctx, module.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, highest)
}

func TestRepository_SnapshotQueries(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	m1 := &entities.Module{CourseID: "course-1", Title: "Módulo 1"}
	m2 := &entities.Module{CourseID: "course-2", Title: "Módulo 1"}
	require.NoError(t, repo.CreateModule(ctx, m1))
	require.NoError(t, repo.CreateModule(ctx, m2))

	subject := &entities.Subject{Code: "DISC1", Name: "Redes"}
	require.NoError(t, repo.CreateSubject(ctx, subject))
	require.NoError(t, repo.CreateModuleSubject(ctx, &entities.ModuleSubject{ModuleID: m1.ID, SubjectID: subject.ID}))

	require.NoError(t, repo.CreateLesson(ctx, &entities.Lesson{ModuleID: m1.ID, Title: "A01 - Intro", ContentURL: "url-1"}))
	require.NoError(t, repo.CreateLesson(ctx, &entities.Lesson{ModuleID: m1.ID, Title: "A02 - Sem link"}))
	require.NoError(t, repo.CreateLesson(ctx, &entities.Lesson{ModuleID: m2.ID, Title: "A01 - Intro", ContentURL: "url-2"}))
	require.NoError(t, repo.CreateTest(ctx, &entities.Test{CourseID: "course-1", Title: "T", ContentURL: "test-1"}, nil))

	modules, err := repo.ListModules(ctx, "course-1")
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, m1.ID, modules[0].ID)

	links, err := repo.ListSubjectLinks(ctx, []uint{m1.ID})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, m1.ID, links[0].ModuleID)
	assert.Equal(t, subject.ID, links[0].Subject.ID)
	assert.Equal(t, "DISC1", links[0].Subject.Code)

	urls, err := repo.ListLessonURLs(ctx, []uint{m1.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"url-1"}, urls)

	testURLs, err := repo.ListTestURLs(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"test-1"}, testURLs)

	empty, err := repo.ListSubjectLinks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_Associations(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	linked, err := repo.HasModuleSubject(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, linked)

	require.NoError(t, repo.CreateModuleSubject(ctx, &entities.ModuleSubject{ModuleID: 1, SubjectID: 2}))
	linked, err = repo.HasModuleSubject(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, linked)

	require.NoError(t, repo.CreateSubjectLesson(ctx, &entities.SubjectLesson{SubjectID: 2, LessonID: 3}))
	linked, err = repo.HasSubjectLesson(ctx, 2, 3)
	require.NoError(t, err)
	assert.True(t, linked)
	assert.Error(t, repo.CreateSubjectLesson(ctx, &entities.SubjectLesson{SubjectID: 2, LessonID: 3}))
}

func TestRepository_ReplaceAnswerKeys(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	test := &entities.Test{CourseID: "course-1", Title: "T", ContentURL: "test-1", RequiresManualAnswerKey: true}
	require.NoError(t, repo.CreateTest(ctx, test, []entities.AnswerKey{
		{QuestionNumber: 1, CorrectAnswer: "A", Points: 10},
	}))

	keys, err := repo.GetAnswerKeys(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, test.ID, keys[0].TestID)

	require.NoError(t, repo.ReplaceAnswerKeys(ctx, test.ID, []entities.AnswerKey{
		{QuestionNumber: 2, CorrectAnswer: "F", Points: 10},
		{QuestionNumber: 1, CorrectAnswer: "C", Points: 10},
	}))

	keys, err = repo.GetAnswerKeys(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "C", keys[0].CorrectAnswer)
	assert.Equal(t, "F", keys[1].CorrectAnswer)

	stored, err := repo.FindTestByURL(ctx, "course-1", "test-1")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.RequiresManualAnswerKey)
}

func TestRepository_WriterRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	structure := func() *course.Structure {
		return &course.Structure{Modules: []*course.ModuleDraft{{
			Name: "Módulo 1",
			Subjects: []*course.SubjectDraft{{
				Name: "DISC1 - Redes", Code: "DISC1", ExplicitCode: true,
				Lessons: []*course.LessonDraft{{Name: "Intro", Code: "A01", ContentType: course.ContentText, ContentURL: "url-1"}},
				Tests: []*course.TestDraft{{
					Name: "Teste", ContentType: course.ContentTest, ContentURL: "test-1",
					AnswerKey: []answerkey.Entry{{QuestionNumber: 1, CorrectAnswer: "B", Points: 10}},
				}},
			}},
		}}}
	}

	writer := importers.NewWriter(repo, nil)

	first, err := writer.Write(ctx, structure(), "course-1", nil)
	require.NoError(t, err)
	assert.Equal(t, course.Counts{Modules: 1, Subjects: 1, Lessons: 1, Tests: 1}, first.Counts)
	assert.Empty(t, first.Errors)

	second, err := writer.Write(ctx, structure(), "course-1", nil)
	require.NoError(t, err)
	assert.Equal(t, course.Counts{}, second.Counts)
	assert.Equal(t, course.Counts{Modules: 1, Subjects: 1, Lessons: 1, Tests: 1}, second.Skipped)
	assert.Empty(t, second.Errors)

	idx, err := importers.BuildIndex(ctx, repo, "course-1")
	require.NoError(t, err)
	assert.True(t, idx.HasLesson("url-1"))
	assert.True(t, idx.HasTest("test-1"))
	_, ok := idx.SubjectID(0, "DISC1", true, "")
	assert.True(t, ok)
}
