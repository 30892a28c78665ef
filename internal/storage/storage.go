// Package storage uploads note images to S3-compatible object storage.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrTooLarge is returned when an image exceeds the configured size.
	ErrTooLarge = errors.New("image too large")
	// ErrUnsupportedType is returned for non-image content types.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrEmpty is returned when the upload carries no bytes.
	ErrEmpty = errors.New("image is empty")
)

// allowedTypes maps accepted content types to the key extension.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is an uploaded file awaiting storage.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, img Image) (string, error)
}

// objectPutter is the subset of the S3 client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures an S3Uploader.
type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the AWS endpoint (MinIO, localstack). Enables path-style addressing.
	Endpoint string
	// PublicURL is the base URL objects are served from. Defaults to the bucket URL.
	PublicURL string
	MaxSize   int64
}

// S3Uploader uploads images with PutObject.
type S3Uploader struct {
	client  objectPutter
	bucket  string
	baseURL string
	maxSize int64
	now     func() time.Time
}

// NewS3Uploader builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Uploader(client, cfg), nil
}

func newS3Uploader(client objectPutter, cfg Config) *S3Uploader {
	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

// Upload validates img, stores it under a fresh key and returns its URL.
func (u *S3Uploader) Upload(ctx context.Context, img Image) (string, error) {
	ext, err := Validate(img, u.maxSize)
	if err != nil {
		return "", err
	}

	key, err := u.objectKey(ext)
	if err != nil {
		return "", err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          img.Body,
		ContentType:   aws.String(img.ContentType),
		ContentLength: aws.Int64(img.Size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return u.baseURL + "/" + key, nil
}

// Validate checks size and content type and returns the key extension.
// A maxSize of 0 disables the size check.
func Validate(img Image, maxSize int64) (string, error) {
	if img.Size <= 0 {
		return "", ErrEmpty
	}
	if maxSize > 0 && img.Size > maxSize {
		return "", ErrTooLarge
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(img.ContentType, ";")[0]))
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// objectKey returns notes/YYYY/MM/DD/<ulid><ext>.
func (u *S3Uploader) objectKey(ext string) (string, error) {
	now := u.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}
	return path.Join("notes", now.Format("2006/01/02"), strings.ToLower(id.String())+ext), nil
}

func publicBaseURL(cfg Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}
