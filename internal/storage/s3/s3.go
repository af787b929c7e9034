// Package s3 provides an S3-compatible storage backend (AWS or MinIO).
// Object keys mirror tree paths; directories are zero-byte marker objects
// whose keys carry a trailing slash.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/jcollard/webshell/internal/logging"
	"github.com/jcollard/webshell/internal/storage"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
}

// Backend implements storage.Backend over an S3 bucket. Handles are object
// keys; directory handles end in "/" and the root handle is "".
type Backend struct {
	client *awss3.Client
	bucket string
}

// New creates an S3 backend and verifies the bucket, creating it when
// missing.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO
		}
	})

	b := &Backend{client: client, bucket: cfg.Bucket}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// NewFromJSON creates a Backend from raw JSON config.
func NewFromJSON(ctx context.Context, raw json.RawMessage) (*Backend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse s3 config: %w", err)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return New(ctx, cfg)
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err == nil {
		return nil
	}
	if _, createErr := b.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(b.bucket)}); createErr != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, createErr)
	}
	logging.Info("created s3 bucket", zap.String("bucket", b.bucket))
	return nil
}

func (b *Backend) Root(ctx context.Context) (storage.Handle, error) {
	return "", nil
}

func (b *Backend) List(ctx context.Context, dir storage.Handle) ([]storage.Child, error) {
	prefix, err := dirKey(dir)
	if err != nil {
		return nil, err
	}

	var children []storage.Child
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}

		for _, cp := range out.CommonPrefixes {
			key := aws.ToString(cp.Prefix)
			children = append(children, storage.Child{
				Name:   strings.TrimSuffix(strings.TrimPrefix(key, prefix), "/"),
				IsDir:  true,
				Handle: key,
			})
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue // the directory's own marker
			}
			children = append(children, storage.Child{
				Name:   strings.TrimPrefix(key, prefix),
				IsDir:  false,
				Handle: key,
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return children, nil
}

func (b *Backend) ReadFile(ctx context.Context, file storage.Handle) ([]byte, error) {
	key, err := fileKey(file)
	if err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (b *Backend) WriteFile(ctx context.Context, file storage.Handle, body io.Reader) error {
	key, err := fileKey(file)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Create(ctx context.Context, parent storage.Handle, name string, dir bool) (storage.Handle, error) {
	prefix, err := dirKey(parent)
	if err != nil {
		return nil, err
	}

	key := prefix + name
	if dir {
		key += "/"
	}
	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", key, err)
	}
	return key, nil
}

func (b *Backend) Remove(ctx context.Context, parent storage.Handle, name string) error {
	prefix, err := dirKey(parent)
	if err != nil {
		return err
	}

	// The child may be a file key or a directory marker; delete both forms.
	for _, key := range []string{prefix + name, prefix + name + "/"} {
		if _, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func (b *Backend) Type() string { return "s3" }

func (b *Backend) Close() error { return nil }

// dirKey validates a directory handle: "" (root) or a key ending in "/".
func dirKey(h storage.Handle) (string, error) {
	key, ok := h.(string)
	if !ok {
		return "", storage.ErrNotFound
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("handle %q is not a directory", key)
	}
	return key, nil
}

// fileKey validates a file handle: a non-empty key without trailing "/".
func fileKey(h storage.Handle) (string, error) {
	key, ok := h.(string)
	if !ok || key == "" || strings.HasSuffix(key, "/") {
		return "", storage.ErrNotFound
	}
	return key, nil
}
