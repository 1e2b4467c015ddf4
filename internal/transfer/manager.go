// Package transfer copies remote files into object storage.
//
// A transfer downloads (or exports) the file into a private temp directory under a guarded copy,
// then uploads it with a single request or, for big files, the resumable protocol of the store.
// The temp directory is removed on every path.
package transfer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/remote"
	"github.com/mrlokans/courseimport/internal/storage"
	"github.com/mrlokans/courseimport/internal/utils"
)

// ObjectStore is the destination bucket
type ObjectStore interface {
	// EnsureBucket creates the bucket when missing; an existing bucket is not an error
	EnsureBucket(ctx context.Context) error
	// Upload stores size bytes from r in a single request
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error
	// UploadResumable stores a big file chunk by chunk
	UploadResumable(ctx context.Context, objectPath string, r io.ReaderAt, size int64, contentType string) error
	// PublicURL returns the address the object is served from
	PublicURL(objectPath string) string
}

// Target locates the stored object inside the course layout
type Target struct {
	CourseID    string
	ModuleName  string
	SubjectName string
}

// Request describes one file to copy. ExportMimeType is set for native documents.
type Request struct {
	FileID         string
	FileName       string
	ExportMimeType string
	Target         Target
}

// Result describes the stored object
type Result struct {
	StoragePath string
	PublicURL   string
	ContentType string
	Size        int64
}

// Config holds the transfer limits
type Config struct {
	ResumableThreshold     int64
	DownloadRequestTimeout time.Duration
	StreamTimeout          time.Duration
	TempDir                string // Parent of the per-transfer temp directories; empty uses os.TempDir
}

// ConfigFrom maps the application transfer settings
func ConfigFrom(cfg config.Transfer) Config {
	return Config{
		ResumableThreshold:     cfg.ResumableThreshold,
		DownloadRequestTimeout: cfg.DownloadRequestTimeout,
		StreamTimeout:          cfg.StreamTimeout,
	}
}

// Manager copies remote files into an ObjectStore
type Manager struct {
	client storage.Client
	exec   *remote.Executor
	store  ObjectStore
	cfg    Config
	logger *zap.Logger
}

// NewManager creates a transfer manager
func NewManager(client storage.Client, exec *remote.Executor, store ObjectStore, cfg Config, logger *zap.Logger) *Manager {
	if cfg.ResumableThreshold <= 0 {
		cfg.ResumableThreshold = config.DefaultResumableThresholdBytes
	}
	if cfg.DownloadRequestTimeout <= 0 {
		cfg.DownloadRequestTimeout = 60 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client: client,
		exec:   exec,
		store:  store,
		cfg:    cfg,
		logger: logger.Named("transfer"),
	}
}

// DownloadThenStore copies one remote file into the object store
func (m *Manager) DownloadThenStore(ctx context.Context, req Request) (*Result, error) {
	label := "download:" + req.FileID
	if req.ExportMimeType != "" {
		label = "export:" + req.FileID
	}

	// The stream outlives the attempt that opened it, so it is bound to the transfer context.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := remote.DoCloser(ctx, m.exec, label, func(attemptCtx context.Context) (io.ReadCloser, error) {
		rc, err := m.open(streamCtx, req)
		if err != nil {
			return nil, err
		}
		if attemptCtx.Err() != nil {
			rc.Close()
			return nil, attemptCtx.Err()
		}
		return rc, nil
	}, remote.WithTimeout(m.cfg.DownloadRequestTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", label, err)
	}
	defer src.Close()

	dir, err := os.MkdirTemp(m.cfg.TempDir, "course-import-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dst, err := os.Create(filepath.Join(dir, "payload"))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dst.Close()

	size, err := guardedCopy(ctx, label, dst, src, m.cfg.StreamTimeout)
	if err != nil {
		return nil, err
	}

	ext := extensionFor(req)
	contentType := contentTypeFor(req, ext)
	objectPath := ObjectPath(req.Target.CourseID, req.Target.ModuleName, req.Target.SubjectName, req.FileID, ext)

	if err := m.store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket: %w", err)
	}

	resumable := size >= m.cfg.ResumableThreshold
	if resumable {
		err = m.store.UploadResumable(ctx, objectPath, dst, size, contentType)
	} else {
		if _, err = dst.Seek(0, io.SeekStart); err == nil {
			err = m.store.Upload(ctx, objectPath, dst, size, contentType)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}

	m.logger.Info("stored file",
		zap.String("file_id", req.FileID),
		zap.String("path", objectPath),
		zap.Int64("size", size),
		zap.Bool("resumable", resumable),
	)

	return &Result{
		StoragePath: objectPath,
		PublicURL:   m.store.PublicURL(objectPath),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (m *Manager) open(ctx context.Context, req Request) (io.ReadCloser, error) {
	if req.ExportMimeType != "" {
		return m.client.Export(ctx, req.FileID, req.ExportMimeType)
	}
	return m.client.Download(ctx, req.FileID)
}

// guardedCopy copies src into dst within timeout. On expiry or cancellation both ends are closed,
// which unblocks the copy goroutine for readers that honour Close.
func guardedCopy(ctx context.Context, label string, dst *os.File, src io.ReadCloser, timeout time.Duration) (int64, error) {
	type copyResult struct {
		n   int64
		err error
	}
	done := make(chan copyResult, 1)
	go func() {
		n, err := io.Copy(dst, src)
		done <- copyResult{n: n, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return 0, fmt.Errorf("failed to copy %s: %w", label, r.err)
		}
		return r.n, nil
	case <-timer.C:
		src.Close()
		dst.Close()
		return 0, &remote.TimeoutError{Label: label, Timeout: timeout}
	case <-ctx.Done():
		src.Close()
		dst.Close()
		return 0, ctx.Err()
	}
}

// Drive IDs are case-sensitive, so they are sanitized rather than slugified
var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ObjectPath builds "{course}/{module}/{subject}/{fileID}.{ext}" from slugified names
func ObjectPath(courseID, moduleName, subjectName, fileID, ext string) string {
	name := strings.Trim(unsafeIDChars.ReplaceAllString(fileID, "-"), "-")
	if name == "" {
		name = "item"
	}
	if ext != "" {
		name += "." + ext
	}
	return path.Join(
		utils.Slugify(courseID, "item"),
		utils.Slugify(moduleName, "item"),
		utils.Slugify(subjectName, "item"),
		name,
	)
}

var exportExtensions = map[string]string{
	"application/pdf": "pdf",
	"text/plain":      "txt",
	"text/csv":        "csv",
}

func extensionFor(req Request) string {
	if req.ExportMimeType != "" {
		if ext, ok := exportExtensions[req.ExportMimeType]; ok {
			return ext
		}
	}
	if ext := utils.Extension(req.FileName); ext != "" {
		return ext
	}
	return "bin"
}

// Types missing from the mime package's builtin table
var contentTypes = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"mp3":  "audio/mpeg",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"zip":  "application/zip",
}

func contentTypeFor(req Request, ext string) string {
	if req.ExportMimeType != "" {
		return req.ExportMimeType
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		// Drop parameters such as "; charset=utf-8"
		return strings.TrimSpace(strings.Split(ct, ";")[0])
	}
	return "application/octet-stream"
}
