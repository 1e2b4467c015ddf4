// Package drivewalk turns a remote folder tree into a course structure.
//
// The tree is read as root → module folders → subject folders → files. Files become lessons,
// or tests when their title names a test. Items whose content URL is already stored are skipped
// without being downloaded again.
package drivewalk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/answerkey"
	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/course"
	"github.com/mrlokans/courseimport/internal/progress"
	"github.com/mrlokans/courseimport/internal/remote"
	"github.com/mrlokans/courseimport/internal/storage"
	"github.com/mrlokans/courseimport/internal/transfer"
	"github.com/mrlokans/courseimport/internal/utils"
)

// ErrNoModules is returned when the root folder holds no module folders
var ErrNoModules = errors.New("no module folders found in the root folder")

const pdfMimeType = "application/pdf"

// textExports maps native documents to the format they are exported in as text
var textExports = map[string]string{
	storage.DocumentMimeType:     "text/plain",
	storage.PresentationMimeType: "text/plain",
	storage.SpreadsheetMimeType:  "text/csv",
}

// ExistingState answers whether parts of the tree are already stored
type ExistingState interface {
	ModuleID(name string) (uint, bool)
	SubjectID(moduleID uint, code string, explicit bool, name string) (uint, bool)
	HasLesson(contentURL string) bool
	HasTest(contentURL string) bool
}

// Transferer copies a remote file into object storage
type Transferer interface {
	DownloadThenStore(ctx context.Context, req transfer.Request) (*transfer.Result, error)
}

type Config struct {
	MaxDocExportBytes int64
	StoreBinaries     bool
}

func ConfigFrom(cfg config.Transfer) Config {
	return Config{
		MaxDocExportBytes: cfg.MaxDocExportBytes,
		StoreBinaries:     cfg.StoreBinaries,
	}
}

// Walker builds course structures from a storage.Client
type Walker struct {
	client   storage.Client
	exec     *remote.Executor
	transfer Transferer
	cfg      Config
	logger   *zap.Logger
}

// New creates a walker. transfer may be nil, in which case large documents are kept as references.
func New(client storage.Client, exec *remote.Executor, tr Transferer, cfg Config, logger *zap.Logger) *Walker {
	if cfg.MaxDocExportBytes <= 0 {
		cfg.MaxDocExportBytes = config.DefaultMaxDocExportBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		client:   client,
		exec:     exec,
		transfer: tr,
		cfg:      cfg,
		logger:   logger.Named("drivewalk"),
	}
}

// walk holds the state of one traversal
type walk struct {
	*Walker
	courseID string
	existing ExistingState
	tracker  *progress.Tracker
	skipped  course.Counts
}

// Walk lists the tree under rootFolderID and returns the parts not yet stored.
// Listing failures abort the walk; content extraction failures only degrade the item.
func (w *Walker) Walk(ctx context.Context, rootFolderID, courseID string, existing ExistingState, tracker *progress.Tracker) (*course.Structure, error) {
	if existing == nil {
		existing = noState{}
	}
	if tracker == nil {
		tracker = progress.NewTracker("", courseID, nil, w.logger)
	}
	run := &walk{Walker: w, courseID: courseID, existing: existing, tracker: tracker}

	tracker.Phase(ctx, progress.PhaseScanning, "Listando módulos")

	nodes, err := storage.ListAll(ctx, w.client, rootFolderID, w.exec.Call)
	if err != nil {
		return nil, err
	}

	folders := storage.FilterNodes(nodes, storage.Node.IsFolder)
	if skipped := len(nodes) - len(folders); skipped > 0 {
		w.logger.Warn("skipping files at the root folder", zap.Int("count", skipped))
	}
	if len(folders) == 0 {
		return nil, ErrNoModules
	}

	tracker.Update(ctx, func(s *progress.Snapshot) { s.Totals.Modules = len(folders) })

	structure := &course.Structure{CourseID: courseID}
	for i, folder := range folders {
		module, err := run.module(ctx, folder, i)
		if err != nil {
			return nil, err
		}
		if module != nil {
			structure.Modules = append(structure.Modules, module)
		}
	}

	structure.Skipped = run.skipped

	counts := structure.Counts()
	w.logger.Info("folder tree walked",
		zap.String("course_id", courseID),
		zap.Int("modules", counts.Modules),
		zap.Int("subjects", counts.Subjects),
		zap.Int("lessons", counts.Lessons),
		zap.Int("tests", counts.Tests),
		zap.Int("skipped_lessons", run.skipped.Lessons),
		zap.Int("skipped_tests", run.skipped.Tests),
	)
	return structure, nil
}

func (r *walk) module(ctx context.Context, folder storage.Node, index int) (*course.ModuleDraft, error) {
	name := course.ModuleName(folder.Name, index)
	module := &course.ModuleDraft{Name: name, Order: index + 1}
	if id, ok := r.existing.ModuleID(name); ok {
		module.ExistingID = id
	}

	nodes, err := storage.ListAll(ctx, r.client, folder.ID, r.exec.Call)
	if err != nil {
		return nil, fmt.Errorf("module %q: %w", name, err)
	}

	var subjects []storage.Node
	for _, n := range nodes {
		if !n.IsFolder() {
			r.logger.Warn("skipping file at module level", zap.String("module", name), zap.String("name", n.Name))
			continue
		}
		subjects = append(subjects, n)
	}

	r.tracker.Update(ctx, func(s *progress.Snapshot) {
		s.Totals.Subjects += len(subjects)
		s.Processed.Modules++
		s.CurrentStep = "Listando disciplinas"
		s.CurrentItem = name
	})

	for j, folder := range subjects {
		subject, err := r.subject(ctx, module, folder, j)
		if err != nil {
			return nil, err
		}
		if subject != nil {
			module.Subjects = append(module.Subjects, subject)
		}
	}

	if len(module.Subjects) == 0 && module.ExistingID == 0 {
		r.logger.Debug("dropping module without new content", zap.String("module", name))
		return nil, nil
	}
	return module, nil
}

func (r *walk) subject(ctx context.Context, module *course.ModuleDraft, folder storage.Node, index int) (*course.SubjectDraft, error) {
	name := course.SubjectName(module.Name, folder.Name, index)
	code, explicit := course.SubjectCode(module.Name, name)
	subject := &course.SubjectDraft{
		Name:         name,
		Code:         code,
		ExplicitCode: explicit,
		Order:        index + 1,
	}
	if id, ok := r.existing.SubjectID(module.ExistingID, code, explicit, name); ok {
		subject.ExistingID = id
	}

	nodes, err := storage.ListAll(ctx, r.client, folder.ID, r.exec.Call)
	if err != nil {
		return nil, fmt.Errorf("subject %q: %w", name, err)
	}

	var files []storage.Node
	for _, n := range nodes {
		if n.IsFolder() {
			r.logger.Warn("skipping nested folder", zap.String("subject", name), zap.String("name", n.Name))
			continue
		}
		files = append(files, n)
	}

	r.tracker.Update(ctx, func(s *progress.Snapshot) {
		s.Totals.Lessons += len(files)
		s.Processed.Subjects++
		s.CurrentStep = "Processando disciplina"
		s.CurrentItem = name
	})

	// Positions count every lesson or test file in the listing, stored or not, so codes and
	// orders do not depend on what earlier runs imported.
	target := transfer.Target{CourseID: r.courseID, ModuleName: module.Name, SubjectName: name}
	lessonIndex, testIndex := 0, 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.tracker.Update(ctx, func(s *progress.Snapshot) {
			s.CurrentStep = "Processando arquivo"
			s.CurrentItem = file.Name
		})

		if course.IsTestFile(file.Name) {
			if t := r.test(ctx, file, testIndex, target); t != nil {
				subject.Tests = append(subject.Tests, t)
			}
			testIndex++
		} else {
			if l := r.lesson(ctx, file, lessonIndex, target); l != nil {
				subject.Lessons = append(subject.Lessons, l)
			}
			lessonIndex++
		}

		r.tracker.Update(ctx, func(s *progress.Snapshot) { s.Processed.Lessons++ })
	}

	if !subject.HasChildren() && subject.ExistingID == 0 {
		r.logger.Debug("dropping subject without new content", zap.String("subject", name))
		return nil, nil
	}
	return subject, nil
}

func (r *walk) lesson(ctx context.Context, file storage.Node, index int, target transfer.Target) *course.LessonDraft {
	url := course.ContentURL(file.ID)
	if r.existing.HasLesson(url) {
		r.logger.Debug("lesson already imported", zap.String("name", file.Name))
		r.skipped.Lessons++
		return nil
	}

	code, name := course.LessonCode(file.Name, index)
	lesson := &course.LessonDraft{
		Name:        name,
		Code:        code,
		Order:       index + 1,
		ContentType: course.ContentText,
		ContentURL:  url,
		Description: course.LessonDescription(code, name),
	}
	if course.IsVideo(file) {
		lesson.ContentType = course.ContentVideo
	}

	c, err := r.extract(ctx, file, target)
	if err != nil {
		r.degrade(file, err)
		lesson.Content = course.FilePlaceholder(file.Name)
		return lesson
	}
	lesson.Content = c.text
	lesson.StoragePath = c.storagePath
	lesson.PublicURL = c.publicURL
	return lesson
}

func (r *walk) test(ctx context.Context, file storage.Node, index int, target transfer.Target) *course.TestDraft {
	url := course.ContentURL(file.ID)
	if r.existing.HasTest(url) {
		r.logger.Debug("test already imported", zap.String("name", file.Name))
		r.skipped.Tests++
		return nil
	}

	name := utils.StripExtension(file.Name)
	test := &course.TestDraft{
		Name:        name,
		Order:       index + 1,
		ContentType: course.ContentTest,
		ContentURL:  url,
		Description: course.TestDescription(name),
	}

	c, err := r.extract(ctx, file, target)
	if err != nil {
		r.degrade(file, err)
		test.RequiresManualAnswerKey = true
		return test
	}
	test.StoragePath = c.storagePath
	test.PublicURL = c.publicURL

	if c.exported {
		test.AnswerKey = answerkey.Parse(c.text)
	}
	if len(test.AnswerKey) == 0 {
		test.RequiresManualAnswerKey = true
		r.logger.Info("no answer key found", zap.String("test", name))
	}
	return test
}

// content is what extraction produced for one file
type content struct {
	text        string
	exported    bool // text came from a document export
	storagePath string
	publicURL   string
}

// extract reads the content of a file. Small native documents are exported as text, large ones
// are stored as PDF, other files are kept as a reference and stored only when StoreBinaries is set.
func (r *walk) extract(ctx context.Context, file storage.Node, target transfer.Target) (content, error) {
	exportMime, textual := textExports[file.MimeType]

	switch {
	case textual && file.ReportedSize() <= r.cfg.MaxDocExportBytes:
		text, err := storage.ReadAllText(ctx, r.client, file.ID, exportMime, r.exec.Call)
		if err != nil {
			return content{}, err
		}
		return content{text: text, exported: true}, nil

	case textual:
		r.logger.Info("document too large for text export, storing as pdf",
			zap.String("name", file.Name),
			zap.Int64("size", file.ReportedSize()),
			zap.Int64("limit", r.cfg.MaxDocExportBytes),
		)
		if r.transfer == nil {
			return content{text: course.FilePlaceholder(file.Name)}, nil
		}
		return r.store(ctx, file, pdfMimeType, target)

	case file.IsNative():
		return content{text: course.FilePlaceholder(file.Name)}, nil

	case r.cfg.StoreBinaries && r.transfer != nil:
		return r.store(ctx, file, "", target)

	default:
		return content{text: course.FilePlaceholder(file.Name)}, nil
	}
}

func (r *walk) store(ctx context.Context, file storage.Node, exportMime string, target transfer.Target) (content, error) {
	res, err := r.transfer.DownloadThenStore(ctx, transfer.Request{
		FileID:         file.ID,
		FileName:       file.Name,
		ExportMimeType: exportMime,
		Target:         target,
	})
	if err != nil {
		return content{}, err
	}
	return content{
		text:        course.FilePlaceholder(file.Name),
		storagePath: res.StoragePath,
		publicURL:   res.PublicURL,
	}, nil
}

// degrade records an extraction failure; the item is kept as a reference to the remote file
func (r *walk) degrade(file storage.Node, err error) {
	r.logger.Warn("content extraction failed, keeping reference only",
		zap.String("name", file.Name),
		zap.String("id", file.ID),
		zap.Error(err),
	)
	r.tracker.AddError(fmt.Sprintf("%s: %v", file.Name, err))
}

type noState struct{}

func (noState) ModuleID(string) (uint, bool)                      { return 0, false }
func (noState) SubjectID(uint, string, bool, string) (uint, bool) { return 0, false }
func (noState) HasLesson(string) bool                             { return false }
func (noState) HasTest(string) bool                               { return false }
