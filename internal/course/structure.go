package course

import "github.com/mrlokans/courseimport/internal/answerkey"

// ContentType is the kind of content a lesson or test carries
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
	ContentTest  ContentType = "test"
)

// Structure is the in-memory course tree built by one traversal
type Structure struct {
	CourseID string         `yaml:"course_id"`
	Modules  []*ModuleDraft `yaml:"modules"`
	// Skipped counts lessons and tests left out because their content URL is already stored
	Skipped Counts `yaml:"skipped"`
}

// ModuleDraft is one top-level folder
type ModuleDraft struct {
	Name       string          `yaml:"name"`
	Order      int             `yaml:"order"`
	ExistingID uint            `yaml:"existing_id,omitempty"`
	Subjects   []*SubjectDraft `yaml:"subjects"`
}

// SubjectDraft is one folder below a module.
// A non-zero ExistingID means the subject is already stored and only new children are written.
type SubjectDraft struct {
	Name         string         `yaml:"name"`
	Code         string         `yaml:"code"`
	ExplicitCode bool           `yaml:"explicit_code"`
	ExistingID   uint           `yaml:"existing_id,omitempty"`
	Order        int            `yaml:"order"`
	Lessons      []*LessonDraft `yaml:"lessons,omitempty"`
	Tests        []*TestDraft   `yaml:"tests,omitempty"`
}

// LessonDraft is a non-test file inside a subject
type LessonDraft struct {
	Name        string      `yaml:"name"`
	Code        string      `yaml:"code"`
	Order       int         `yaml:"order"`
	Content     string      `yaml:"-"`
	ContentType ContentType `yaml:"content_type"`
	ContentURL  string      `yaml:"content_url"`
	StoragePath string      `yaml:"storage_path,omitempty"`
	PublicURL   string      `yaml:"public_url,omitempty"`
	Description string      `yaml:"description"`
}

// FullTitle is the stored lesson title, "{code} - {name}" when a code exists
func (l *LessonDraft) FullTitle() string {
	return FullLessonTitle(l.Code, l.Name)
}

// TestDraft is a test document inside a subject
type TestDraft struct {
	Name                    string            `yaml:"name"`
	Order                   int               `yaml:"order"`
	ContentType             ContentType       `yaml:"content_type"`
	ContentURL              string            `yaml:"content_url"`
	StoragePath             string            `yaml:"storage_path,omitempty"`
	PublicURL               string            `yaml:"public_url,omitempty"`
	Description             string            `yaml:"description"`
	AnswerKey               []answerkey.Entry `yaml:"answer_key,omitempty"`
	RequiresManualAnswerKey bool              `yaml:"requires_manual_answer_key"`
}

// HasChildren reports whether the subject has anything new to write
func (s *SubjectDraft) HasChildren() bool {
	return len(s.Lessons) > 0 || len(s.Tests) > 0
}

// Counts holds per-level totals
type Counts struct {
	Modules  int `json:"modules" yaml:"modules"`
	Subjects int `json:"subjects" yaml:"subjects"`
	Lessons  int `json:"lessons" yaml:"lessons"`
	Tests    int `json:"tests" yaml:"tests"`
}

// Counts returns how many drafts of each kind the structure holds
func (s *Structure) Counts() Counts {
	var c Counts
	for _, m := range s.Modules {
		c.Modules++
		for _, sub := range m.Subjects {
			c.Subjects++
			c.Lessons += len(sub.Lessons)
			c.Tests += len(sub.Tests)
		}
	}
	return c
}
