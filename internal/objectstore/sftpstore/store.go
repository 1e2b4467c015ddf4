// Package sftpstore mirrors course files onto an SFTP server that serves them over HTTP.
package sftpstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/mrlokans/courseimport/internal/config"
)

const (
	dialTimeout         = 20 * time.Second
	defaultPartAttempts = 4
	defaultPartDelay    = time.Second
	partSuffix          = ".part"
)

// Options configures a Store
type Options struct {
	RemoteDir     string
	PublicBaseURL string
	ChunkSize     int64
	PartAttempts  int
	PartDelay     time.Duration
}

// Store writes objects below RemoteDir
type Store struct {
	opts   Options
	logger *zap.Logger

	// connect opens the session on first use
	connect func(ctx context.Context) (*sftp.Client, error)

	mu     sync.Mutex
	client *sftp.Client

	ensureMu sync.Mutex
	ready    bool

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a store that dials the configured server lazily
func New(cfg config.SFTP, chunkSize int64, logger *zap.Logger) *Store {
	s := newStore(Options{
		RemoteDir:     cfg.RemoteDir,
		PublicBaseURL: cfg.PublicBaseURL,
		ChunkSize:     chunkSize,
	}, logger)
	s.connect = func(ctx context.Context) (*sftp.Client, error) {
		return dial(ctx, cfg)
	}
	return s
}

// NewWithClient creates a store on an open session
func NewWithClient(client *sftp.Client, opts Options, logger *zap.Logger) *Store {
	s := newStore(opts, logger)
	s.client = client
	s.connect = func(ctx context.Context) (*sftp.Client, error) {
		return nil, errors.New("sftp: session closed")
	}
	return s
}

func newStore(opts Options, logger *zap.Logger) *Store {
	if opts.RemoteDir == "" {
		opts.RemoteDir = "/"
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = config.DefaultUploadChunkSize
	}
	if opts.PartAttempts <= 0 {
		opts.PartAttempts = defaultPartAttempts
	}
	if opts.PartDelay <= 0 {
		opts.PartDelay = defaultPartDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		opts:   opts,
		logger: logger.Named("sftpstore"),
		sleep:  sleepContext,
	}
}

func dial(ctx context.Context, cfg config.SFTP) (*sftp.Client, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, fmt.Errorf("sftp: missing SFTP_HOST / SFTP_USER")
	}
	port := cfg.Port
	if port <= 0 {
		port = 22
	}

	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("sftp: read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("sftp: missing SFTP_PASSWORD or SFTP_KEY_PATH")
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, port)

	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("sftp: dial error: %w", r.err)
		}
		sshClient = r.client
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp: new client: %w", err)
	}
	return client, nil
}

func (s *Store) session(ctx context.Context) (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

// Close ends the session
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// EnsureBucket creates RemoteDir until it succeeds once
func (s *Store) EnsureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ready {
		return nil
	}
	client, err := s.session(ctx)
	if err != nil {
		return err
	}
	if err := client.MkdirAll(s.opts.RemoteDir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", s.opts.RemoteDir, err)
	}
	s.ready = true
	return nil
}

// Upload writes the object in one pass, replacing any previous copy
func (s *Store) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error {
	client, full, err := s.prepare(ctx, objectPath)
	if err != nil {
		return err
	}

	dst, err := client.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", full, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(r, size)); err != nil {
		return fmt.Errorf("sftp: upload copy: %w", err)
	}
	return nil
}

// UploadResumable appends chunks to "{path}.part", starting from whatever a previous attempt left,
// and renames it into place when complete
func (s *Store) UploadResumable(ctx context.Context, objectPath string, r io.ReaderAt, size int64, contentType string) error {
	client, full, err := s.prepare(ctx, objectPath)
	if err != nil {
		return err
	}
	partial := full + partSuffix

	offset := int64(0)
	if info, err := client.Stat(partial); err == nil && info.Size() <= size {
		offset = info.Size()
		s.logger.Info("resuming upload", zap.String("path", objectPath), zap.Int64("offset", offset))
	}

	dst, err := client.OpenFile(partial, os.O_WRONLY|os.O_CREATE)
	if err != nil {
		return fmt.Errorf("sftp: open %s: %w", partial, err)
	}

	buf := make([]byte, s.opts.ChunkSize)
	for offset < size {
		if err := ctx.Err(); err != nil {
			dst.Close()
			return err
		}
		n := min(int64(len(buf)), size-offset)
		chunk := buf[:n]
		if _, err := r.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			dst.Close()
			return fmt.Errorf("sftp: read local chunk: %w", err)
		}
		if err := s.writeChunk(ctx, dst, chunk, offset); err != nil {
			dst.Close()
			return err
		}
		offset += n
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp: close %s: %w", partial, err)
	}

	// Rename does not replace existing files on every server
	if _, err := client.Stat(full); err == nil {
		if err := client.Remove(full); err != nil {
			return fmt.Errorf("sftp: remove %s: %w", full, err)
		}
	}
	if err := client.Rename(partial, full); err != nil {
		return fmt.Errorf("sftp: rename %s: %w", partial, err)
	}
	return nil
}

func (s *Store) writeChunk(ctx context.Context, dst *sftp.File, chunk []byte, offset int64) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.PartAttempts; attempt++ {
		_, err := dst.WriteAt(chunk, offset)
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Warn("chunk write failed", zap.Int64("offset", offset), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == s.opts.PartAttempts {
			break
		}
		if err := s.sleep(ctx, s.opts.PartDelay*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("sftp: write chunk at %d: %w", offset, lastErr)
}

func (s *Store) prepare(ctx context.Context, objectPath string) (*sftp.Client, string, error) {
	client, err := s.session(ctx)
	if err != nil {
		return nil, "", err
	}
	full := path.Join(s.opts.RemoteDir, objectPath)
	if err := client.MkdirAll(path.Dir(full)); err != nil {
		return nil, "", fmt.Errorf("sftp: mkdir %s: %w", path.Dir(full), err)
	}
	return client, full, nil
}

// PublicURL joins PublicBaseURL and the object path
func (s *Store) PublicURL(objectPath string) string {
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + objectPath
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
