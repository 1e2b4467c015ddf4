package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Mime types used by the Drive folder layout
const (
	FolderMimeType       = "application/vnd.google-apps.folder"
	DocumentMimeType     = "application/vnd.google-apps.document"
	PresentationMimeType = "application/vnd.google-apps.presentation"
	SpreadsheetMimeType  = "application/vnd.google-apps.spreadsheet"
	NativeMimePrefix     = "application/vnd.google-apps."
)

// Kind tells folders apart from files
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Node is one entry returned by a folder listing
type Node struct {
	ID             string
	Name           string
	Kind           Kind
	MimeType       string
	SizeBytes      int64
	QuotaBytesUsed int64 // Reported for native documents that have no byte size
}

// IsFolder reports whether the node is a folder
func (n Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// IsNative reports whether the node is a provider-native document (Docs, Slides, Sheets, ...)
func (n Node) IsNative() bool {
	return strings.HasPrefix(n.MimeType, NativeMimePrefix)
}

// ReportedSize returns the byte size, falling back to the quota usage reported for native documents
func (n Node) ReportedSize() int64 {
	if n.SizeBytes > 0 {
		return n.SizeBytes
	}
	return n.QuotaBytesUsed
}

// Page is one page of a folder listing
type Page struct {
	Nodes         []Node
	NextPageToken string
}

// Client defines the remote content provider operations used by the importer
type Client interface {
	// Authenticate verifies the configured credentials are accepted
	Authenticate(ctx context.Context) error

	// List returns one page of the children of folderID
	List(ctx context.Context, folderID, pageToken string) (*Page, error)

	// Download retrieves the raw bytes of a binary file
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)

	// Export converts a native document to mimeType and streams the result
	Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error)
}

// CallFunc runs fn as one remote call identified by label.
// The importer passes the retrying executor here; Direct runs fn as is.
type CallFunc func(ctx context.Context, label string, fn func(ctx context.Context) error) error

// Direct calls fn once without retries
func Direct(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ListAll collects every page of folderID before returning, so callers classify a stable, complete listing
func ListAll(ctx context.Context, client Client, folderID string, call CallFunc) ([]Node, error) {
	if call == nil {
		call = Direct
	}

	var all []Node
	pageToken := ""
	for {
		var page *Page
		err := call(ctx, "list:"+folderID, func(ctx context.Context) error {
			var err error
			page, err = client.List(ctx, folderID, pageToken)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
		}

		all = append(all, page.Nodes...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return all, nil
}

// FilterNodes filters a listing by a predicate function
func FilterNodes(nodes []Node, predicate func(Node) bool) []Node {
	var filtered []Node
	for _, n := range nodes {
		if predicate(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// ReadAllText downloads an exported document into memory as text
func ReadAllText(ctx context.Context, client Client, fileID, mimeType string, call CallFunc) (string, error) {
	if call == nil {
		call = Direct
	}

	var text string
	err := call(ctx, "export:"+fileID, func(ctx context.Context) error {
		rc, err := client.Export(ctx, fileID, mimeType)
		if err != nil {
			return err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("failed to read export: %w", err)
		}
		text = string(data)
		return nil
	})
	return text, err
}

// ErrUnauthorized indicates the provider rejected the configured credentials
var ErrUnauthorized = errors.New("remote provider rejected credentials")

// ErrNotFound indicates the requested file or folder does not exist
var ErrNotFound = errors.New("remote item not found")

// ErrRateLimited indicates the provider throttled the request
var ErrRateLimited = errors.New("remote provider rate limit exceeded")

// APIError represents an error response from the remote provider
type APIError struct {
	StatusCode int
	Reason     string // Provider reason code, e.g. "userRateLimitExceeded"
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("remote API error (status %d, reason %s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("remote API error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known statuses onto the package sentinels
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 401:
		return ErrUnauthorized
	case 404:
		return ErrNotFound
	case 429:
		return ErrRateLimited
	}
	return nil
}
