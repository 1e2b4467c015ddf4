// Package s3store stores course files in an S3-compatible bucket.
//
// Small files go up with PutObject. Big files use a multipart upload whose parts are retried
// individually, so a dropped connection costs one part rather than the whole file.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/config"
)

const (
	defaultPartAttempts = 4
	defaultPartDelay    = time.Second
	// S3 rejects non-final parts below 5MB
	minPartSize = 5 * 1024 * 1024
)

// API is the subset of the S3 client used by Store
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Options configures a Store
type Options struct {
	Bucket       string
	Endpoint     string
	CustomDomain string
	Region       string
	PathStyle    bool
	ChunkSize    int64
	PartAttempts int
	PartDelay    time.Duration
}

// Store uploads objects to one bucket
type Store struct {
	api    API
	opts   Options
	logger *zap.Logger

	// ensureMu guards ready, which is set once the bucket is known to exist
	ensureMu sync.Mutex
	ready    bool

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a store on top of an S3 client
func New(api API, opts Options, logger *zap.Logger) *Store {
	if opts.ChunkSize < minPartSize {
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
		api:    api,
		opts:   opts,
		logger: logger.Named("s3store"),
		sleep:  sleepContext,
	}
}

// NewFromConfig builds the S3 client from static credentials
func NewFromConfig(cfg config.ObjectStorage, chunkSize int64, logger *zap.Logger) *Store {
	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return New(client, Options{
		Bucket:       cfg.Bucket,
		Endpoint:     cfg.Endpoint,
		CustomDomain: cfg.CustomDomain,
		Region:       cfg.Region,
		PathStyle:    cfg.PathStyle,
		ChunkSize:    chunkSize,
	}, logger)
}

// EnsureBucket creates the bucket on first use. Only success is remembered, so a failed
// attempt is retried on the next call.
func (s *Store) EnsureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	bucket := aws.String(s.opts.Bucket)
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket}); err == nil {
		return nil
	}

	_, err := s.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: bucket})
	if err == nil || isAlreadyExists(err) {
		s.logger.Info("bucket ready", zap.String("bucket", s.opts.Bucket))
		return nil
	}
	return fmt.Errorf("failed to create bucket %s: %w", s.opts.Bucket, err)
}

func isAlreadyExists(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	return errors.As(err, &owned) || errors.As(err, &exists)
}

// Upload stores the object with a single PutObject
func (s *Store) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(objectPath),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectPath, err)
	}
	return nil
}

// UploadResumable stores the object as a multipart upload of ChunkSize parts.
// Each part is retried with a linear delay; the upload is aborted when a part gives up.
func (s *Store) UploadResumable(ctx context.Context, objectPath string, r io.ReaderAt, size int64, contentType string) error {
	created, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(objectPath),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("create multipart upload %s: %w", objectPath, err)
	}
	uploadID := created.UploadId

	var parts []types.CompletedPart
	partNumber := int32(0)
	for offset := int64(0); offset < size; offset += s.opts.ChunkSize {
		partNumber++
		length := min(s.opts.ChunkSize, size-offset)

		etag, err := s.uploadPart(ctx, objectPath, uploadID, partNumber, io.NewSectionReader(r, offset, length), length)
		if err != nil {
			s.abort(objectPath, uploadID)
			return err
		}
		parts = append(parts, types.CompletedPart{ETag: etag, PartNumber: aws.Int32(partNumber)})

		s.logger.Debug("uploaded part",
			zap.String("path", objectPath),
			zap.Int32("part", partNumber),
			zap.Int64("uploaded", offset+length),
			zap.Int64("total", size),
		)
	}

	_, err = s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.opts.Bucket),
		Key:             aws.String(objectPath),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		s.abort(objectPath, uploadID)
		return fmt.Errorf("complete multipart upload %s: %w", objectPath, err)
	}
	return nil
}

func (s *Store) uploadPart(ctx context.Context, objectPath string, uploadID *string, partNumber int32, body *io.SectionReader, length int64) (*string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.PartAttempts; attempt++ {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.opts.Bucket),
			Key:           aws.String(objectPath),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(partNumber),
			Body:          body,
			ContentLength: aws.Int64(length),
		})
		if err == nil {
			return out.ETag, nil
		}
		lastErr = err

		s.logger.Warn("part upload failed",
			zap.String("path", objectPath),
			zap.Int32("part", partNumber),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == s.opts.PartAttempts {
			break
		}
		if err := s.sleep(ctx, s.opts.PartDelay*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("upload part %d of %s: %w", partNumber, objectPath, lastErr)
}

// abort runs on a fresh context so a cancelled transfer still releases the parts
func (s *Store) abort(objectPath string, uploadID *string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.opts.Bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
	})
	if err != nil {
		s.logger.Warn("abort multipart upload failed", zap.String("path", objectPath), zap.Error(err))
	}
}

// PublicURL prefers the custom domain, then the endpoint in path or virtual-host style
func (s *Store) PublicURL(objectPath string) string {
	if s.opts.CustomDomain != "" {
		return strings.TrimRight(s.opts.CustomDomain, "/") + "/" + objectPath
	}

	endpoint := strings.TrimRight(s.opts.Endpoint, "/")
	if endpoint == "" {
		region := s.opts.Region
		if region == "" {
			region = "us-east-1"
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, region, objectPath)
	}
	if s.opts.PathStyle {
		return endpoint + "/" + s.opts.Bucket + "/" + objectPath
	}

	scheme, host, found := strings.Cut(endpoint, "://")
	if !found {
		return "https://" + s.opts.Bucket + "." + endpoint + "/" + objectPath
	}
	return scheme + "://" + s.opts.Bucket + "." + host + "/" + objectPath
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
