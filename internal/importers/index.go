package importers

import (
	"context"
	"fmt"

	"github.com/mrlokans/courseimport/internal/course"
	"github.com/mrlokans/courseimport/internal/entities"
)

// Index is a read-only snapshot of what a course already holds, loaded once per run
type Index struct {
	modulesByName    map[string]entities.Module
	subjectsByModule map[uint]map[string]entities.Subject
	subjectsByCode   map[string]entities.Subject
	lessonURLs       map[string]struct{}
	testURLs         map[string]struct{}
}

// BuildIndex loads the existing state of courseID
func BuildIndex(ctx context.Context, store Store, courseID string) (*Index, error) {
	idx := &Index{
		modulesByName:    make(map[string]entities.Module),
		subjectsByModule: make(map[uint]map[string]entities.Subject),
		subjectsByCode:   make(map[string]entities.Subject),
		lessonURLs:       make(map[string]struct{}),
		testURLs:         make(map[string]struct{}),
	}

	modules, err := store.ListModules(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	moduleIDs := make([]uint, 0, len(modules))
	for _, m := range modules {
		key := course.NormalizeName(m.Title)
		if _, dup := idx.modulesByName[key]; !dup {
			idx.modulesByName[key] = m
		}
		moduleIDs = append(moduleIDs, m.ID)
	}

	if len(moduleIDs) > 0 {
		links, err := store.ListSubjectLinks(ctx, moduleIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load subjects: %w", err)
		}
		for _, link := range links {
			byName, ok := idx.subjectsByModule[link.ModuleID]
			if !ok {
				byName = make(map[string]entities.Subject)
				idx.subjectsByModule[link.ModuleID] = byName
			}
			byName[course.NormalizeName(link.Subject.Name)] = link.Subject
			if link.Subject.Code != "" {
				idx.subjectsByCode[course.NormalizeCode(link.Subject.Code)] = link.Subject
			}
		}

		urls, err := store.ListLessonURLs(ctx, moduleIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load lesson urls: %w", err)
		}
		for _, u := range urls {
			idx.lessonURLs[u] = struct{}{}
		}
	}

	testURLs, err := store.ListTestURLs(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test urls: %w", err)
	}
	for _, u := range testURLs {
		idx.testURLs[u] = struct{}{}
	}

	return idx, nil
}

// ModuleID returns the stored module with the same normalized name
func (i *Index) ModuleID(name string) (uint, bool) {
	m, ok := i.modulesByName[course.NormalizeName(name)]
	return m.ID, ok
}

// SubjectID finds a stored subject: by code first when the code is explicit,
// then by name among the subjects of moduleID
func (i *Index) SubjectID(moduleID uint, code string, explicit bool, name string) (uint, bool) {
	if explicit && code != "" {
		if s, ok := i.subjectsByCode[course.NormalizeCode(code)]; ok {
			return s.ID, true
		}
	}
	if moduleID == 0 {
		return 0, false
	}
	s, ok := i.subjectsByModule[moduleID][course.NormalizeName(name)]
	return s.ID, ok
}

// HasLesson reports whether a lesson with this content URL exists in the course
func (i *Index) HasLesson(contentURL string) bool {
	_, ok := i.lessonURLs[contentURL]
	return ok
}

// HasTest reports whether a test with this content URL exists in the course
func (i *Index) HasTest(contentURL string) bool {
	_, ok := i.testURLs[contentURL]
	return ok
}

// Counts returns the snapshot sizes, for logging
func (i *Index) Counts() (modules, lessons, tests int) {
	return len(i.modulesByName), len(i.lessonURLs), len(i.testURLs)
}
