// Package memory provides an in-memory storage.Client holding a folder tree.
// It backs dry runs against fixtures and the importer tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/mrlokans/courseimport/internal/storage"
)

// Client implements storage.Client over an in-memory tree
type Client struct {
	mu sync.Mutex

	// PageSize splits listings into pages; 0 returns everything in one page
	PageSize int
	// AuthErr is returned from Authenticate when set
	AuthErr error

	children  map[string][]storage.Node
	contents  map[string][]byte
	readers   map[string]func() io.ReadCloser
	exports   map[string]map[string]string
	failures  map[string][]error
	callCount map[string]int
}

// New creates an empty tree
func New() *Client {
	return &Client{
		children:  make(map[string][]storage.Node),
		contents:  make(map[string][]byte),
		readers:   make(map[string]func() io.ReadCloser),
		exports:   make(map[string]map[string]string),
		failures:  make(map[string][]error),
		callCount: make(map[string]int),
	}
}

// AddFolder adds a folder under parentID
func (c *Client) AddFolder(parentID, id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children[parentID] = append(c.children[parentID], storage.Node{
		ID:       id,
		Name:     name,
		Kind:     storage.KindFolder,
		MimeType: storage.FolderMimeType,
	})
}

// AddFile adds a file under parentID with its downloadable content
func (c *Client) AddFile(parentID string, node storage.Node, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node.Kind = storage.KindFile
	if node.SizeBytes == 0 && !node.IsNative() {
		node.SizeBytes = int64(len(content))
	}
	c.children[parentID] = append(c.children[parentID], node)
	c.contents[node.ID] = content
}

// SetExport registers the text returned when fileID is exported as mimeType
func (c *Client) SetExport(fileID, mimeType, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exports[fileID] == nil {
		c.exports[fileID] = make(map[string]string)
	}
	c.exports[fileID][mimeType] = text
}

// SetReader overrides the stream returned by Download and Export for fileID
func (c *Client) SetReader(fileID string, open func() io.ReadCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers[fileID] = open
}

// FailNext queues errors returned by the next calls of op ("list:ID", "download:ID", "export:ID")
func (c *Client) FailNext(op string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], errs...)
}

// Calls returns how many times op was invoked
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount[op]
}

func (c *Client) Authenticate(ctx context.Context) error {
	return c.AuthErr
}

func (c *Client) List(ctx context.Context, folderID, pageToken string) (*storage.Page, error) {
	if err := c.record("list:" + folderID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	nodes := append([]storage.Node(nil), c.children[folderID]...)
	c.mu.Unlock()

	if c.PageSize <= 0 || len(nodes) <= c.PageSize {
		if pageToken != "" {
			return &storage.Page{}, nil
		}
		return &storage.Page{Nodes: nodes}, nil
	}

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, &storage.APIError{StatusCode: 400, Reason: "invalidPageToken", Message: pageToken}
		}
		start = n
	}
	end := start + c.PageSize
	if end > len(nodes) {
		end = len(nodes)
	}

	page := &storage.Page{Nodes: nodes[start:end]}
	if end < len(nodes) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := c.record("download:" + fileID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if open, ok := c.readers[fileID]; ok {
		return open(), nil
	}
	data, ok := c.contents[fileID]
	if !ok {
		return nil, &storage.APIError{StatusCode: 404, Message: fmt.Sprintf("file %s not found", fileID)}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Client) Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	if err := c.record("export:" + fileID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if open, ok := c.readers[fileID]; ok {
		return open(), nil
	}
	text, ok := c.exports[fileID][mimeType]
	if !ok {
		return nil, &storage.APIError{
			StatusCode: 400,
			Reason:     "exportNotSupported",
			Message:    fmt.Sprintf("file %s cannot be exported as %s", fileID, mimeType),
		}
	}
	return io.NopCloser(bytes.NewReader([]byte(text))), nil
}

func (c *Client) record(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callCount[op]++
	if queued := c.failures[op]; len(queued) > 0 {
		c.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

var _ storage.Client = (*Client)(nil)
