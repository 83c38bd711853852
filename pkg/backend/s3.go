package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Backend implements Backend over a single S3 bucket.
type S3Backend struct {
	awsS3Client *s3.Client
	bucket      string
	log         *slog.Logger
}

// NewS3Backend creates a new S3 backend for the given bucket.
// By default the logger is set to discard.
func NewS3Backend(s3Client *s3.Client, bucket string) *S3Backend {
	return &S3Backend{
		awsS3Client: s3Client,
		bucket:      bucket,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger
func (b *S3Backend) SetLogger(log *slog.Logger) {
	b.log = log
}

// Exists returns true if the key exists in the bucket. Any lookup failure,
// including transport errors, reads as absence.
func (b *S3Backend) Exists(ctx context.Context, key string) bool {
	_, err := b.awsS3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	return err == nil
}

// Read retrieves the full content of the object at key.
func (b *S3Backend) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := b.awsS3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("Read: key %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("Read: error when called GetObject: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("Read: error reading object body: %w", err)
	}
	return data, nil
}

// Write uploads data under key, overwriting unconditionally.
func (b *S3Backend) Write(ctx context.Context, key string, data []byte) error {
	_, err := b.awsS3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("Write: error when called PutObject: %w", err)
	}
	b.log.Debug("Write completed", slog.String("key", key))
	return nil
}

// Delete removes the object at key. S3 DeleteObject succeeds on missing keys,
// so absence is probed first to honor the not-found contract.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	if !b.Exists(ctx, key) {
		return fmt.Errorf("Delete: key %s: %w", key, ErrNotFound)
	}
	_, err := b.awsS3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("Delete: error when called DeleteObject: %w", err)
	}
	b.log.Debug("Delete completed", slog.String("key", key))
	return nil
}

// ListByPrefix lists every key under prefix.
func (b *S3Backend) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	paginator := s3.NewListObjectsV2Paginator(b.awsS3Client, &s3.ListObjectsV2Input{
		Bucket: &b.bucket,
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ListByPrefix: failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// ListFiles lists every key under root whose base name matches pattern.
// The flat S3 namespace collapses into a single directory listing.
func (b *S3Backend) ListFiles(ctx context.Context, root, pattern string) ([]DirListing, error) {
	keys, err := b.ListByPrefix(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}
	files := []string{}
	for _, key := range keys {
		ok, err := path.Match(pattern, path.Base(key))
		if err != nil {
			return nil, fmt.Errorf("ListFiles: bad pattern %q: %w", pattern, err)
		}
		if ok {
			files = append(files, key)
		}
	}
	b.log.Debug("ListFiles completed",
		slog.String("root", root),
		slog.Int("matched", len(files)))
	return []DirListing{{Dir: root, Files: files}}, nil
}
