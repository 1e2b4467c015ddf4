package importers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/course"
	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/progress"
)

// WriteResult summarises one write. Embedded counts are rows created.
type WriteResult struct {
	course.Counts      `yaml:",inline"`
	Skipped            course.Counts `json:"skipped" yaml:"skipped"`
	AnswerKeysReplaced int           `json:"answer_keys_replaced" yaml:"answer_keys_replaced"`
	Errors             []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Writer persists a course structure through a Store
type Writer struct {
	store  Store
	logger *zap.Logger
}

func NewWriter(store Store, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger.Named("writer")}
}

// Write stores the structure in dependency order: module, subject, module link, lessons,
// lesson links, tests. Every row is looked up before it is inserted, so writing the same
// structure twice creates nothing the second time.
// Failures of single items are collected in the result; Write only fails when ctx is done.
func (w *Writer) Write(ctx context.Context, s *course.Structure, courseID string, tracker *progress.Tracker) (*WriteResult, error) {
	if tracker == nil {
		tracker = progress.NewTracker("", courseID, nil, w.logger)
	}
	result := &WriteResult{}
	result.Skipped.Lessons = s.Skipped.Lessons
	result.Skipped.Tests = s.Skipped.Tests

	totals := s.Counts()
	tracker.Phase(ctx, progress.PhaseSaving, "Salvando estrutura")
	tracker.Update(ctx, func(snap *progress.Snapshot) {
		snap.Totals = progress.Totals{
			Modules:  totals.Modules,
			Subjects: totals.Subjects,
			Lessons:  totals.Lessons + totals.Tests,
		}
	})

	nextModuleOrder, err := w.nextModuleOrder(ctx, courseID)
	if err != nil {
		w.fail(tracker, result, fmt.Sprintf("failed to read module order: %v", err))
	}

	for i, m := range s.Modules {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step := fmt.Sprintf("Salvando módulo %d/%d", i+1, len(s.Modules))
		tracker.Update(ctx, func(snap *progress.Snapshot) {
			snap.CurrentStep = step
			snap.CurrentItem = m.Name
		})

		moduleID, created, err := w.ensureModule(ctx, courseID, m, nextModuleOrder)
		if err != nil {
			w.fail(tracker, result, fmt.Sprintf("module %q: %v", m.Name, err))
			w.skipModule(ctx, tracker, m)
			continue
		}
		if created {
			result.Modules++
			nextModuleOrder++
		} else {
			result.Skipped.Modules++
		}
		tracker.Update(ctx, func(snap *progress.Snapshot) { snap.Processed.Modules++ })

		for _, sub := range m.Subjects {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			w.writeSubject(ctx, courseID, m, moduleID, sub, tracker, result)
		}
	}

	w.logger.Info("structure written",
		zap.String("course_id", courseID),
		zap.Int("modules", result.Modules),
		zap.Int("subjects", result.Subjects),
		zap.Int("lessons", result.Lessons),
		zap.Int("tests", result.Tests),
		zap.Int("skipped_lessons", result.Skipped.Lessons),
		zap.Int("skipped_tests", result.Skipped.Tests),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (w *Writer) writeSubject(ctx context.Context, courseID string, m *course.ModuleDraft, moduleID uint, sub *course.SubjectDraft, tracker *progress.Tracker, result *WriteResult) {
	tracker.Update(ctx, func(snap *progress.Snapshot) {
		snap.CurrentStep = "Salvando disciplina"
		snap.CurrentItem = sub.Name
	})

	subjectID, created, err := w.ensureSubject(ctx, m.Name, sub)
	if err != nil {
		w.fail(tracker, result, fmt.Sprintf("subject %q: %v", sub.Name, err))
		w.skipSubject(ctx, tracker, sub)
		return
	}
	if created {
		result.Subjects++
	} else {
		result.Skipped.Subjects++
	}

	if err := w.ensureModuleSubject(ctx, moduleID, subjectID, sub.Order); err != nil {
		w.fail(tracker, result, fmt.Sprintf("subject %q: failed to link to module: %v", sub.Name, err))
	}
	tracker.Update(ctx, func(snap *progress.Snapshot) { snap.Processed.Subjects++ })

	nextLessonOrder, err := w.nextLessonOrder(ctx, moduleID)
	if err != nil {
		w.fail(tracker, result, fmt.Sprintf("subject %q: failed to read lesson order: %v", sub.Name, err))
	}

	for _, l := range sub.Lessons {
		tracker.Update(ctx, func(snap *progress.Snapshot) {
			snap.CurrentStep = "Salvando aula"
			snap.CurrentItem = l.FullTitle()
		})

		created, err := w.writeLesson(ctx, moduleID, subjectID, l, nextLessonOrder)
		switch {
		case err != nil:
			w.fail(tracker, result, fmt.Sprintf("lesson %q: %v", l.FullTitle(), err))
		case created:
			result.Lessons++
			nextLessonOrder++
		default:
			result.Skipped.Lessons++
		}
		tracker.Update(ctx, func(snap *progress.Snapshot) { snap.Processed.Lessons++ })
	}

	for _, t := range sub.Tests {
		tracker.Update(ctx, func(snap *progress.Snapshot) {
			snap.CurrentStep = "Salvando teste"
			snap.CurrentItem = t.Name
		})

		outcome, err := w.writeTest(ctx, courseID, moduleID, subjectID, t)
		switch {
		case err != nil:
			w.fail(tracker, result, fmt.Sprintf("test %q: %v", t.Name, err))
		case outcome == testCreated:
			result.Tests++
		case outcome == testKeyReplaced:
			result.Skipped.Tests++
			result.AnswerKeysReplaced++
		default:
			result.Skipped.Tests++
		}
		tracker.Update(ctx, func(snap *progress.Snapshot) { snap.Processed.Lessons++ })
	}
}

func (w *Writer) ensureModule(ctx context.Context, courseID string, m *course.ModuleDraft, order int) (uint, bool, error) {
	if m.ExistingID != 0 {
		return m.ExistingID, false, nil
	}

	existing, err := w.store.FindModule(ctx, courseID, m.Name)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	module := &entities.Module{
		CourseID:   courseID,
		Title:      m.Name,
		OrderIndex: order,
		IsRequired: true,
	}
	if err := w.store.CreateModule(ctx, module); err != nil {
		return 0, false, err
	}
	return module.ID, true, nil
}

// ensureSubject looks a subject up by its code, then by the generated code when the
// folder carried an explicit one, then by exact name
func (w *Writer) ensureSubject(ctx context.Context, moduleName string, sub *course.SubjectDraft) (uint, bool, error) {
	if sub.ExistingID != 0 {
		return sub.ExistingID, false, nil
	}

	codes := []string{sub.Code}
	if sub.ExplicitCode {
		if generated := course.GeneratedSubjectCode(moduleName, sub.Name); generated != sub.Code {
			codes = append(codes, generated)
		}
	}
	for _, code := range codes {
		if code == "" {
			continue
		}
		existing, err := w.store.FindSubjectByCode(ctx, code)
		if err != nil {
			return 0, false, err
		}
		if existing != nil {
			return existing.ID, false, nil
		}
	}

	existing, err := w.store.FindSubjectByName(ctx, sub.Name)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	subject := &entities.Subject{
		Code:        sub.Code,
		Name:        sub.Name,
		Description: "Disciplina: " + sub.Name,
	}
	if err := w.store.CreateSubject(ctx, subject); err != nil {
		return 0, false, err
	}
	return subject.ID, true, nil
}

func (w *Writer) ensureModuleSubject(ctx context.Context, moduleID, subjectID uint, order int) error {
	linked, err := w.store.HasModuleSubject(ctx, moduleID, subjectID)
	if err != nil || linked {
		return err
	}
	return w.store.CreateModuleSubject(ctx, &entities.ModuleSubject{
		ModuleID:   moduleID,
		SubjectID:  subjectID,
		OrderIndex: order,
	})
}

func (w *Writer) writeLesson(ctx context.Context, moduleID, subjectID uint, l *course.LessonDraft, order int) (bool, error) {
	title := l.FullTitle()

	lesson, err := w.store.FindLesson(ctx, moduleID, title)
	if err != nil {
		return false, err
	}

	created := false
	if lesson == nil {
		lesson = &entities.Lesson{
			ModuleID:    moduleID,
			Title:       title,
			Description: l.Description,
			Content:     l.Content,
			ContentType: string(l.ContentType),
			ContentURL:  l.ContentURL,
			StoragePath: l.StoragePath,
			PublicURL:   l.PublicURL,
			OrderIndex:  order,
		}
		if err := w.store.CreateLesson(ctx, lesson); err != nil {
			return false, err
		}
		created = true
	}

	linked, err := w.store.HasSubjectLesson(ctx, subjectID, lesson.ID)
	if err != nil {
		return created, err
	}
	if !linked {
		if err := w.store.CreateSubjectLesson(ctx, &entities.SubjectLesson{SubjectID: subjectID, LessonID: lesson.ID}); err != nil {
			return created, fmt.Errorf("failed to link to subject: %w", err)
		}
	}
	return created, nil
}

type testOutcome int

const (
	testSkipped testOutcome = iota
	testCreated
	testKeyReplaced
)

// writeTest inserts a new test, or replaces the answer key of an existing one when the
// document now yields a key. Tests without a key are stored inactive.
func (w *Writer) writeTest(ctx context.Context, courseID string, moduleID, subjectID uint, t *course.TestDraft) (testOutcome, error) {
	keys := answerKeyRows(t)

	existing, err := w.store.FindTestByURL(ctx, courseID, t.ContentURL)
	if err != nil {
		return testSkipped, err
	}
	if existing != nil {
		if len(keys) == 0 {
			return testSkipped, nil
		}
		if err := w.store.ReplaceAnswerKeys(ctx, existing.ID, keys); err != nil {
			return testSkipped, fmt.Errorf("failed to replace answer key: %w", err)
		}
		w.logger.Info("answer key replaced",
			zap.Uint("test_id", existing.ID),
			zap.Int("questions", len(keys)),
		)
		return testKeyReplaced, nil
	}

	test := &entities.Test{
		CourseID:                courseID,
		ModuleID:                moduleID,
		SubjectID:               subjectID,
		Title:                   t.Name,
		Description:             t.Description,
		ContentURL:              t.ContentURL,
		StoragePath:             t.StoragePath,
		PublicURL:               t.PublicURL,
		IsActive:                len(keys) > 0,
		RequiresManualAnswerKey: t.RequiresManualAnswerKey || len(keys) == 0,
	}
	if err := w.store.CreateTest(ctx, test, keys); err != nil {
		return testSkipped, err
	}
	return testCreated, nil
}

func answerKeyRows(t *course.TestDraft) []entities.AnswerKey {
	if len(t.AnswerKey) == 0 {
		return nil
	}
	rows := make([]entities.AnswerKey, 0, len(t.AnswerKey))
	for _, e := range t.AnswerKey {
		rows = append(rows, entities.AnswerKey{
			QuestionNumber: e.QuestionNumber,
			CorrectAnswer:  e.CorrectAnswer,
			Points:         e.Points,
			Justification:  e.Justification,
		})
	}
	return rows
}

// nextModuleOrder continues after the highest stored order_index of the course
func (w *Writer) nextModuleOrder(ctx context.Context, courseID string) (int, error) {
	highest, ok, err := w.store.MaxModuleOrder(ctx, courseID)
	if err != nil || !ok {
		return 0, err
	}
	return highest + 1, nil
}

func (w *Writer) nextLessonOrder(ctx context.Context, moduleID uint) (int, error) {
	highest, ok, err := w.store.MaxLessonOrder(ctx, moduleID)
	if err != nil || !ok {
		return 0, err
	}
	return highest + 1, nil
}

func (w *Writer) fail(tracker *progress.Tracker, result *WriteResult, msg string) {
	w.logger.Warn("write failed", zap.String("error", msg))
	result.Errors = append(result.Errors, msg)
	tracker.AddError(msg)
}

// skipModule advances the counters past a module that could not be stored
func (w *Writer) skipModule(ctx context.Context, tracker *progress.Tracker, m *course.ModuleDraft) {
	tracker.Update(ctx, func(snap *progress.Snapshot) {
		snap.Processed.Modules++
		for _, sub := range m.Subjects {
			snap.Processed.Subjects++
			snap.Processed.Lessons += len(sub.Lessons) + len(sub.Tests)
		}
	})
}

func (w *Writer) skipSubject(ctx context.Context, tracker *progress.Tracker, sub *course.SubjectDraft) {
	tracker.Update(ctx, func(snap *progress.Snapshot) {
		snap.Processed.Subjects++
		snap.Processed.Lessons += len(sub.Lessons) + len(sub.Tests)
	})
}
