package importers

import (
	"context"
	"errors"
	"sync"

	"github.com/mrlokans/courseimport/internal/entities"
)

// fakeStore is an in-memory Store. failOn makes the named method fail.
type fakeStore struct {
	mu sync.Mutex

	modules        []entities.Module
	subjects       []entities.Subject
	moduleSubjects []entities.ModuleSubject
	lessons        []entities.Lesson
	subjectLessons []entities.SubjectLesson
	tests          []entities.Test
	answerKeys     []entities.AnswerKey

	nextID uint
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{failOn: make(map[string]error)}
}

func (f *fakeStore) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) fail(method string) error {
	return f.failOn[method]
}

func (f *fakeStore) ListModules(ctx context.Context, courseID string) ([]entities.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListModules"); err != nil {
		return nil, err
	}
	var out []entities.Module
	for _, m := range f.modules {
		if m.CourseID == courseID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSubjectLinks(ctx context.Context, moduleIDs []uint) ([]SubjectLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SubjectLink
	for _, link := range f.moduleSubjects {
		if !containsID(moduleIDs, link.ModuleID) {
			continue
		}
		for _, s := range f.subjects {
			if s.ID == link.SubjectID {
				out = append(out, SubjectLink{ModuleID: link.ModuleID, Subject: s})
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListLessonURLs(ctx context.Context, moduleIDs []uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, l := range f.lessons {
		if containsID(moduleIDs, l.ModuleID) && l.ContentURL != "" {
			out = append(out, l.ContentURL)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTestURLs(ctx context.Context, courseID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.tests {
		if t.CourseID == courseID && t.ContentURL != "" {
			out = append(out, t.ContentURL)
		}
	}
	return out, nil
}

func (f *fakeStore) FindModule(ctx context.Context, courseID, title string) (*entities.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.modules {
		if m.CourseID == courseID && m.Title == title {
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MaxModuleOrder(ctx context.Context, courseID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	highest, found := 0, false
	for _, m := range f.modules {
		if m.CourseID == courseID && (!found || m.OrderIndex > highest) {
			highest, found = m.OrderIndex, true
		}
	}
	return highest, found, nil
}

func (f *fakeStore) CreateModule(ctx context.Context, module *entities.Module) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateModule"); err != nil {
		return err
	}
	module.ID = f.id()
	f.modules = append(f.modules, *module)
	return nil
}

func (f *fakeStore) FindSubjectByCode(ctx context.Context, code string) (*entities.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subjects {
		if s.Code == code {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindSubjectByName(ctx context.Context, name string) (*entities.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subjects {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateSubject(ctx context.Context, subject *entities.Subject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateSubject"); err != nil {
		return err
	}
	subject.ID = f.id()
	f.subjects = append(f.subjects, *subject)
	return nil
}

func (f *fakeStore) HasModuleSubject(ctx context.Context, moduleID, subjectID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.moduleSubjects {
		if l.ModuleID == moduleID && l.SubjectID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateModuleSubject(ctx context.Context, link *entities.ModuleSubject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.moduleSubjects {
		if l.ModuleID == link.ModuleID && l.SubjectID == link.SubjectID {
			return errors.New("UNIQUE constraint failed: module_subjects")
		}
	}
	link.ID = f.id()
	f.moduleSubjects = append(f.moduleSubjects, *link)
	return nil
}

func (f *fakeStore) FindLesson(ctx context.Context, moduleID uint, title string) (*entities.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lessons {
		if l.ModuleID == moduleID && l.Title == title {
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MaxLessonOrder(ctx context.Context, moduleID uint) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	highest, found := 0, false
	for _, l := range f.lessons {
		if l.ModuleID == moduleID && (!found || l.OrderIndex > highest) {
			highest, found = l.OrderIndex, true
		}
	}
	return highest, found, nil
}

func (f *fakeStore) CreateLesson(ctx context.Context, lesson *entities.Lesson) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateLesson"); err != nil {
		return err
	}
	lesson.ID = f.id()
	f.lessons = append(f.lessons, *lesson)
	return nil
}

func (f *fakeStore) HasSubjectLesson(ctx context.Context, subjectID, lessonID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.subjectLessons {
		if l.SubjectID == subjectID && l.LessonID == lessonID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateSubjectLesson(ctx context.Context, link *entities.SubjectLesson) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.subjectLessons {
		if l.SubjectID == link.SubjectID && l.LessonID == link.LessonID {
			return errors.New("UNIQUE constraint failed: subject_lessons")
		}
	}
	link.ID = f.id()
	f.subjectLessons = append(f.subjectLessons, *link)
	return nil
}

func (f *fakeStore) FindTestByURL(ctx context.Context, courseID, contentURL string) (*entities.Test, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tests {
		if t.CourseID == courseID && t.ContentURL == contentURL {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateTest(ctx context.Context, test *entities.Test, keys []entities.AnswerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateTest"); err != nil {
		return err
	}
	test.ID = f.id()
	f.tests = append(f.tests, *test)
	for _, k := range keys {
		k.ID = f.id()
		k.TestID = test.ID
		f.answerKeys = append(f.answerKeys, k)
	}
	return nil
}

func (f *fakeStore) ReplaceAnswerKeys(ctx context.Context, testID uint, keys []entities.AnswerKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.answerKeys[:0]
	for _, k := range f.answerKeys {
		if k.TestID != testID {
			kept = append(kept, k)
		}
	}
	f.answerKeys = kept
	for _, k := range keys {
		k.ID = f.id()
		k.TestID = testID
		f.answerKeys = append(f.answerKeys, k)
	}
	for i := range f.tests {
		if f.tests[i].ID == testID {
			f.tests[i].IsActive = true
			f.tests[i].RequiresManualAnswerKey = false
		}
	}
	return nil
}

func (f *fakeStore) keysOf(testID uint) []entities.AnswerKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.AnswerKey
	for _, k := range f.answerKeys {
		if k.TestID == testID {
			out = append(out, k)
		}
	}
	return out
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var _ Store = (*fakeStore)(nil)
