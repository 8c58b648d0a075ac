package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Uploader stores one file and returns where it ended up
type Uploader interface {
	Upload(context.Context, UploadParams) (string, error)
}

// FileUploader writes files under Dir
type FileUploader struct {
	Dir string
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) (string, error) {
	if err := os.MkdirAll(u.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(u.Dir, filepath.Base(params.Name))
	slog.Debug("Writing image", "file", path, "bytes", len(params.Data))
	if err := os.WriteFile(path, params.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// S3PutAPI is the part of the S3 client S3Uploader needs
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts objects under Prefix in Bucket
type S3Uploader struct {
	Client S3PutAPI
	Bucket string
	Prefix string
}

// NewS3Uploader builds an uploader from the default AWS config chain
func NewS3Uploader(ctx context.Context, region, bucket string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Uploader{Client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: "images/"}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) (string, error) {
	key := u.Prefix + params.Name
	slog.Info("Uploading image to S3", "bucket", u.Bucket, "key", key, "content_type", params.ContentType)

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(params.ContentType),
		Body:        bytes.NewReader(params.Data),
		Metadata:    params.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", u.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.Bucket, key), nil
}
