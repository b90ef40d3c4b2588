package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/statementhq/royalty-pipeline/internal/common"
)

// S3Store implements BlobStore on S3 or any S3-compatible endpoint.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	uploadTTL time.Duration
	maxBytes  int64
	logger    *slog.Logger
}

var _ BlobStore = (*S3Store)(nil)

func NewS3Store(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		uploadTTL: ttl,
		maxBytes:  cfg.DownloadLimit,
		logger:    logger,
	}, nil
}

func (s *S3Store) Download(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		s.logger.Error("storage.download.failed", "path", path, "error", err)
		return nil, fmt.Errorf("download %q: %w", path, err)
	}
	defer func() {
		if cerr := out.Body.Close(); cerr != nil {
			s.logger.Warn("storage.download.close_error", "path", path, "error", cerr)
		}
	}()

	if s.maxBytes > 0 && out.ContentLength != nil && *out.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("object %q is %d bytes, limit is %d", path, *out.ContentLength, s.maxBytes)
	}

	var body io.Reader = out.Body
	if s.maxBytes > 0 {
		// ContentLength can be absent; cap the read regardless.
		body = io.LimitReader(out.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		s.logger.Error("storage.download.read_failed", "path", path, "error", err)
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("object %q exceeds download limit of %d bytes", path, s.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %q", common.ErrEmptyFile, path)
	}
	s.logger.Debug("storage.download.ok",
		"path", path, "bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (s *S3Store) CreateSignedUploadURL(ctx context.Context, path string, metadata map[string]string) (SignedUpload, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(path),
		Metadata: metadata,
	}, s3.WithPresignExpires(s.uploadTTL))
	if err != nil {
		s.logger.Error("storage.presign.failed", "path", path, "error", err)
		return SignedUpload{}, fmt.Errorf("presign upload %q: %w", path, err)
	}
	return SignedUpload{SignedURL: req.URL, Path: path}, nil
}
