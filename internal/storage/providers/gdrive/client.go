package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mrlokans/courseimport/internal/storage"
)

const listFields = "nextPageToken, files(id, name, mimeType, size, quotaBytesUsed)"

// Client implements storage.Client for Google Drive
type Client struct {
	svc      *drive.Service
	pageSize int64
}

// NewClient creates a Drive client from a service account or authorized user JSON file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("google credentials file is not configured: %w", storage.ErrUnauthorized)
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", errors.Join(storage.ErrUnauthorized, err))
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Client{svc: svc, pageSize: 1000}, nil
}

func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.svc.About.Get().Fields("user(emailAddress)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive authentication failed: %w", mapError(err))
	}
	return nil
}

func (c *Client) List(ctx context.Context, folderID, pageToken string) (*storage.Page, error) {
	call := c.svc.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))).
		Fields(listFields).
		OrderBy("name").
		PageSize(c.pageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, mapError(err)
	}

	page := &storage.Page{
		Nodes:         make([]storage.Node, 0, len(resp.Files)),
		NextPageToken: resp.NextPageToken,
	}
	for _, f := range resp.Files {
		kind := storage.KindFile
		if f.MimeType == storage.FolderMimeType {
			kind = storage.KindFolder
		}
		page.Nodes = append(page.Nodes, storage.Node{
			ID:             f.Id,
			Name:           f.Name,
			Kind:           kind,
			MimeType:       f.MimeType,
			SizeBytes:      f.Size,
			QuotaBytesUsed: f.QuotaBytesUsed,
		})
	}

	return page, nil
}

func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Body, nil
}

func (c *Client) Export(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	resp, err := c.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Body, nil
}

// mapError converts googleapi errors into storage.APIError so the executor can classify them
func mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	apiErr := &storage.APIError{
		StatusCode: gerr.Code,
		Message:    gerr.Message,
	}
	if len(gerr.Errors) > 0 {
		apiErr.Reason = gerr.Errors[0].Reason
		if apiErr.Message == "" {
			apiErr.Message = gerr.Errors[0].Message
		}
	}
	return apiErr
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

var _ storage.Client = (*Client)(nil)
