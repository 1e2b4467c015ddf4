package importers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/courseimport/internal/answerkey"
	"github.com/mrlokans/courseimport/internal/course"
	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/progress"
)

func sampleStructure(keys ...answerkey.Entry) *course.Structure {
	return &course.Structure{
		CourseID: "course-1",
		Modules: []*course.ModuleDraft{{
			Name:  "Módulo 1",
			Order: 1,
			Subjects: []*course.SubjectDraft{{
				Name:         "DISC1 - Redes",
				Code:         "DISC1",
				ExplicitCode: true,
				Order:        1,
				Lessons: []*course.LessonDraft{{
					Name:        "Introducao",
					Code:        "A01",
					Order:       1,
					Content:     "texto",
					ContentType: course.ContentText,
					ContentURL:  course.ContentURL("doc1"),
					Description: "Aula A01: Introducao",
				}},
				Tests: []*course.TestDraft{{
					Name:        "Teste Final",
					Order:       1,
					ContentType: course.ContentTest,
					ContentURL:  course.ContentURL("test1"),
					Description: "Teste: Teste Final",
					AnswerKey:   keys,
				}},
			}},
		}},
	}
}

func TestWrite_CreatesInDependencyOrder(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, nil)

	result, err := w.Write(context.Background(), sampleStructure(answerkey.Entry{QuestionNumber: 1, CorrectAnswer: "A", Points: 10}), "course-1", nil)
	require.NoError(t, err)

	assert.Equal(t, course.Counts{Modules: 1, Subjects: 1, Lessons: 1, Tests: 1}, result.Counts)
	assert.Equal(t, course.Counts{}, result.Skipped)
	assert.Empty(t, result.Errors)

	require.Len(t, store.modules, 1)
	module := store.modules[0]
	assert.Equal(t, "Módulo 1", module.Title)
	assert.True(t, module.IsRequired)
	assert.Equal(t, 0, module.OrderIndex)

	require.Len(t, store.subjects, 1)
	subject := store.subjects[0]
	assert.Equal(t, "DISC1", subject.Code)
	assert.Greater(t, subject.ID, module.ID)

	require.Len(t, store.moduleSubjects, 1)
	assert.Equal(t, entities.ModuleSubject{ID: store.moduleSubjects[0].ID, ModuleID: module.ID, SubjectID: subject.ID, OrderIndex: 1}, store.moduleSubjects[0])

	require.Len(t, store.lessons, 1)
	lesson := store.lessons[0]
	assert.Equal(t, "A01 - Introducao", lesson.Title)
	assert.Equal(t, module.ID, lesson.ModuleID)
	assert.Equal(t, "text", lesson.ContentType)
	require.Len(t, store.subjectLessons, 1)
	assert.Equal(t, lesson.ID, store.subjectLessons[0].LessonID)

	require.Len(t, store.tests, 1)
	test := store.tests[0]
	assert.True(t, test.IsActive)
	assert.False(t, test.RequiresManualAnswerKey)
	assert.Equal(t, subject.ID, test.SubjectID)
	assert.Len(t, store.keysOf(test.ID), 1)
}

func TestWrite_SecondRunSkipsEverything(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, nil)
	ctx := context.Background()

	_, err := w.Write(ctx, sampleStructure(), "course-1", nil)
	require.NoError(t, err)

	result, err := w.Write(ctx, sampleStructure(), "course-1", nil)
	require.NoError(t, err)

	assert.Equal(t, course.Counts{}, result.Counts)
	assert.Equal(t, course.Counts{Modules: 1, Subjects: 1, Lessons: 1, Tests: 1}, result.Skipped)
	assert.Zero(t, result.AnswerKeysReplaced)
	assert.Len(t, store.modules, 1)
	assert.Len(t, store.subjects, 1)
	assert.Len(t, store.moduleSubjects, 1)
	assert.Len(t, store.lessons, 1)
	assert.Len(t, store.subjectLessons, 1)
	assert.Len(t, store.tests, 1)
}

func TestWrite_CarriesSkipsFromTraversal(t *testing.T) {
	s := &course.Structure{
		CourseID: "course-1",
		Modules:  []*course.ModuleDraft{{Name: "Módulo 1", Order: 1}},
		Skipped:  course.Counts{Lessons: 2, Tests: 1},
	}

	result, err := NewWriter(newFakeStore(), nil).Write(context.Background(), s, "course-1", nil)
	require.NoError(t, err)

	assert.Equal(t, course.Counts{Modules: 1}, result.Counts)
	assert.Equal(t, course.Counts{Lessons: 2, Tests: 1}, result.Skipped)
}

func TestWrite_TestWithoutKeyIsInactive(t *testing.T) {
	store := newFakeStore()

	_, err := NewWriter(store, nil).Write(context.Background(), sampleStructure(), "course-1", nil)
	require.NoError(t, err)

	require.Len(t, store.tests, 1)
	assert.False(t, store.tests[0].IsActive)
	assert.True(t, store.tests[0].RequiresManualAnswerKey)
	assert.Empty(t, store.keysOf(store.tests[0].ID))
}

func TestWrite_ReimportReplacesAnswerKey(t *testing.T) {
	store := newFakeStore()
	w := NewWriter(store, nil)
	ctx := context.Background()

	_, err := w.Write(ctx, sampleStructure(), "course-1", nil)
	require.NoError(t, err)
	testID := store.tests[0].ID

	result, err := w.Write(ctx, sampleStructure(
		answerkey.Entry{QuestionNumber: 1, CorrectAnswer: "B", Points: 10},
		answerkey.Entry{QuestionNumber: 2, CorrectAnswer: "V", Points: 10},
	), "course-1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AnswerKeysReplaced)
	assert.Equal(t, 1, result.Skipped.Tests)
	assert.Zero(t, result.Tests)
	require.Len(t, store.tests, 1)
	assert.True(t, store.tests[0].IsActive)

	keys := store.keysOf(testID)
	require.Len(t, keys, 2)
	assert.Equal(t, "B", keys[0].CorrectAnswer)
	assert.Equal(t, "V", keys[1].CorrectAnswer)

	// A later run without a key leaves the replaced key alone
	_, err = w.Write(ctx, sampleStructure(), "course-1", nil)
	require.NoError(t, err)
	assert.Len(t, store.keysOf(testID), 2)
}

func TestWrite_OrderContinuesFromMaximum(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	require.NoError(t, store.CreateModule(ctx, &entities.Module{CourseID: "course-1", Title: "Anterior", OrderIndex: 4}))
	require.NoError(t, store.CreateModule(ctx, &entities.Module{CourseID: "other", Title: "Outro", OrderIndex: 40}))

	s := sampleStructure()
	s.Modules = append(s.Modules, &course.ModuleDraft{
		Name: "Módulo 2",
		Subjects: []*course.SubjectDraft{{
			Name: "Banco de Dados",
			Code: "MODULO2BANCODEDADOS",
			Lessons: []*course.LessonDraft{
				{Name: "Um", Code: "A01", ContentURL: course.ContentURL("x1")},
				{Name: "Dois", Code: "A02", ContentURL: course.ContentURL("x2")},
			},
		}},
	})

	_, err := NewWriter(store, nil).Write(ctx, s, "course-1", nil)
	require.NoError(t, err)

	orders := map[string]int{}
	for _, m := range store.modules {
		orders[m.Title] = m.OrderIndex
	}
	assert.Equal(t, 5, orders["Módulo 1"])
	assert.Equal(t, 6, orders["Módulo 2"])

	lessonOrders := map[string]int{}
	for _, l := range store.lessons {
		lessonOrders[l.Title] = l.OrderIndex
	}
	assert.Equal(t, 0, lessonOrders["A01 - Um"])
	assert.Equal(t, 1, lessonOrders["A02 - Dois"])
}

func TestWrite_LessonOrderContinuesWithinModule(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	module := &entities.Module{CourseID: "course-1", Title: "Módulo 1"}
	require.NoError(t, store.CreateModule(ctx, module))
	require.NoError(t, store.CreateLesson(ctx, &entities.Lesson{ModuleID: module.ID, Title: "A00 - Boas-vindas", OrderIndex: 2}))

	_, err := NewWriter(store, nil).Write(ctx, sampleStructure(), "course-1", nil)
	require.NoError(t, err)

	lesson, err := store.FindLesson(ctx, module.ID, "A01 - Introducao")
	require.NoError(t, err)
	require.NotNil(t, lesson)
	assert.Equal(t, 3, lesson.OrderIndex)
}

func TestWrite_SubjectLookups(t *testing.T) {
	tests := []struct {
		name     string
		existing entities.Subject
	}{
		{name: "explicit code", existing: entities.Subject{Code: "DISC1", Name: "Outro nome"}},
		{name: "generated code", existing: entities.Subject{Code: "MODULO1DISC1REDES", Name: "Outro nome"}},
		{name: "exact name", existing: entities.Subject{Code: "XYZ", Name: "DISC1 - Redes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			ctx := context.Background()
			existing := tt.existing
			require.NoError(t, store.CreateSubject(ctx, &existing))

			result, err := NewWriter(store, nil).Write(ctx, sampleStructure(), "course-1", nil)
			require.NoError(t, err)

			assert.Zero(t, result.Subjects)
			assert.Equal(t, 1, result.Skipped.Subjects)
			assert.Len(t, store.subjects, 1)
			require.Len(t, store.moduleSubjects, 1)
			assert.Equal(t, existing.ID, store.moduleSubjects[0].SubjectID)
		})
	}
}

func TestWrite_UsesExistingIDs(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	module := &entities.Module{CourseID: "course-1", Title: "Nome antigo"}
	require.NoError(t, store.CreateModule(ctx, module))
	subject := &entities.Subject{Code: "OLD", Name: "Nome antigo"}
	require.NoError(t, store.CreateSubject(ctx, subject))

	s := sampleStructure()
	s.Modules[0].ExistingID = module.ID
	s.Modules[0].Subjects[0].ExistingID = subject.ID

	result, err := NewWriter(store, nil).Write(ctx, s, "course-1", nil)
	require.NoError(t, err)

	assert.Equal(t, course.Counts{Lessons: 1, Tests: 1}, result.Counts)
	assert.Len(t, store.modules, 1)
	assert.Len(t, store.subjects, 1)
	assert.Equal(t, module.ID, store.lessons[0].ModuleID)
	assert.Equal(t, subject.ID, store.subjectLessons[0].SubjectID)
}

func TestWrite_LinksExistingLessonAfterPartialFailure(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	module := &entities.Module{CourseID: "course-1", Title: "Módulo 1"}
	require.NoError(t, store.CreateModule(ctx, module))
	require.NoError(t, store.CreateLesson(ctx, &entities.Lesson{ModuleID: module.ID, Title: "A01 - Introducao"}))

	result, err := NewWriter(store, nil).Write(ctx, sampleStructure(), "course-1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped.Lessons)
	assert.Len(t, store.lessons, 1)
	require.Len(t, store.subjectLessons, 1)
	assert.Equal(t, store.lessons[0].ID, store.subjectLessons[0].LessonID)
}

func TestWrite_ItemFailuresAreCollected(t *testing.T) {
	store := newFakeStore()
	store.failOn["CreateLesson"] = errors.New("disk full")

	result, err := NewWriter(store, nil).Write(context.Background(), sampleStructure(), "course-1", nil)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "A01 - Introducao")
	assert.Contains(t, result.Errors[0], "disk full")
	assert.Zero(t, result.Lessons)
	assert.Equal(t, 1, result.Tests)
}

func TestWrite_ModuleFailureSkipsItsChildren(t *testing.T) {
	store := newFakeStore()
	store.failOn["CreateModule"] = errors.New("connection lost")
	rec := &recorder{}
	tracker := progress.NewTracker("imp-1", "course-1", rec, nil)

	result, err := NewWriter(store, nil).Write(context.Background(), sampleStructure(), "course-1", tracker)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `module "Módulo 1"`)
	assert.Equal(t, course.Counts{}, result.Counts)
	assert.Empty(t, store.subjects)

	final := rec.last()
	assert.Equal(t, 100, final.Percentage)
	assert.Equal(t, result.Errors, final.Errors)
}

func TestWrite_ReportsSavingProgress(t *testing.T) {
	rec := &recorder{}
	tracker := progress.NewTracker("imp-1", "course-1", rec, nil)

	_, err := NewWriter(newFakeStore(), nil).Write(context.Background(), sampleStructure(), "course-1", tracker)
	require.NoError(t, err)

	final := rec.last()
	assert.Equal(t, progress.PhaseSaving, final.Phase)
	assert.Equal(t, progress.Totals{Modules: 1, Subjects: 1, Lessons: 2}, final.Totals)
	assert.Equal(t, final.Totals, final.Processed)
	assert.Equal(t, 100, final.Percentage)

	var steps []string
	for _, s := range rec.snaps {
		steps = append(steps, s.CurrentStep)
	}
	assert.Contains(t, steps, "Salvando módulo 1/1")
	assert.Contains(t, steps, "Salvando disciplina")
	assert.Contains(t, steps, "Salvando aula")
}

func TestWrite_StopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newFakeStore()
	_, err := NewWriter(store, nil).Write(ctx, sampleStructure(), "course-1", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.modules)
}
