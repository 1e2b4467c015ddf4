// Package memstore keeps uploaded objects in memory. It backs dry runs and tests.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is one stored object
type Object struct {
	Data        []byte
	ContentType string
	Resumable   bool
}

// Store is an in-memory object store
type Store struct {
	mu sync.Mutex

	BaseURL string
	// UploadErr is returned by every upload when set
	UploadErr error

	objects        map[string]Object
	bucketPrepared bool
}

// New creates an empty store serving objects under baseURL
func New(baseURL string) *Store {
	return &Store{BaseURL: baseURL, objects: make(map[string]Object)}
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucketPrepared = true
	return nil
}

func (s *Store) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return err
	}
	return s.put(objectPath, data, contentType, false)
}

func (s *Store) UploadResumable(ctx context.Context, objectPath string, r io.ReaderAt, size int64, contentType string) error {
	data := make([]byte, size)
	if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
		return err
	}
	return s.put(objectPath, data, contentType, true)
}

func (s *Store) PublicURL(objectPath string) string {
	return s.BaseURL + "/" + objectPath
}

// Get returns a stored object
func (s *Store) Get(objectPath string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[objectPath]
	return obj, ok
}

// Len returns the number of stored objects
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Store) put(objectPath string, data []byte, contentType string, resumable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadErr != nil {
		return s.UploadErr
	}
	if !s.bucketPrepared {
		return fmt.Errorf("bucket not prepared before upload of %s", objectPath)
	}
	s.objects[objectPath] = Object{Data: bytes.Clone(data), ContentType: contentType, Resumable: resumable}
	return nil
}
