// Package storage uploads user images to the object store
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	clierrors "github.com/zfogg/circle/cli/pkg/errors"
	"github.com/zfogg/circle/cli/pkg/logger"
)

// Folders inside the bucket
const (
	FolderPosts    = "posts/"
	FolderActivity = "profile-activity/"
	FolderAvatars  = "avatars/"
)

// MaxImageSize is the largest accepted upload
const MaxImageSize = 10 << 20

// ObjectAPI is the subset of the S3 client the uploader needs
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options describes the bucket and how to reach it
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	PublicURL string
	AccessKey string
	SecretKey string
}

// Uploader stores images and returns their public URLs
type Uploader struct {
	client    ObjectAPI
	bucket    string
	publicURL string
	newID     func() string
}

// UploadResult contains the result of an upload
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// NewS3Uploader builds an uploader from the AWS default chain, or from
// static keys when both are set. A custom endpoint switches to path-style
// addressing for S3-compatible stores.
func NewS3Uploader(ctx context.Context, opts Options) (*Uploader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewUploader(client, opts), nil
}

// NewUploader wraps an existing object client
func NewUploader(client ObjectAPI, opts Options) *Uploader {
	return &Uploader{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: PublicBaseURL(opts),
		newID:     func() string { return uuid.New().String() },
	}
}

// PublicBaseURL returns the URL prefix objects are served from
func PublicBaseURL(opts Options) string {
	switch {
	case opts.PublicURL != "":
		return strings.TrimSuffix(opts.PublicURL, "/")
	case opts.Endpoint != "":
		return strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
}

// ObjectKey builds <folder><userID>/<id><ext>
func ObjectKey(folder, userID, id, ext string) string {
	return folder + userID + "/" + id + ext
}

// UploadImage stores an image given as a file path, a base64 payload or
// a data URI under folder for userID.
func (u *Uploader) UploadImage(ctx context.Context, folder, userID, source string) (*UploadResult, error) {
	if userID == "" {
		return nil, clierrors.ValidationError("user id", "is required")
	}

	data, name, err := ReadSource(source)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, clierrors.ValidationError("image", "is empty")
	}
	if len(data) > MaxImageSize {
		return nil, clierrors.ValidationError("image", fmt.Sprintf("is larger than %d MB", MaxImageSize>>20))
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, clierrors.InvalidFormatError("image", fmt.Errorf("detected %s", mime.String()))
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = mime.Extension()
	}

	key := ObjectKey(folder, userID, u.newID(), ext)
	logger.Debug("Uploading image", "key", key, "content_type", mime.String(), "size", len(data))

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(mime.String()),
		CacheControl: aws.String("max-age=86400"),
		Metadata: map[string]string{
			"user-id":          userID,
			"upload-timestamp": time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, clierrors.NetworkError("Failed to upload image").WithCause(err)
	}

	return &UploadResult{
		Key:         key,
		URL:         u.publicURL + "/" + key,
		ContentType: mime.String(),
		Size:        int64(len(data)),
	}, nil
}

// Delete removes an object by key or by its public URL
func (u *Uploader) Delete(ctx context.Context, keyOrURL string) error {
	key := strings.TrimPrefix(keyOrURL, u.publicURL+"/")
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return clierrors.NetworkError("Failed to delete image").WithCause(err)
	}
	return nil
}

// ReadSource returns the bytes behind source and a file name hint.
// Data URIs and bare base64 are decoded; anything else is a file path.
func ReadSource(source string) ([]byte, string, error) {
	if source == "" {
		return nil, "", clierrors.ValidationError("image", "is required")
	}

	if strings.HasPrefix(source, "data:") {
		comma := strings.IndexByte(source, ',')
		if comma < 0 || !strings.Contains(source[:comma], ";base64") {
			return nil, "", clierrors.InvalidFormatError("data URI", fmt.Errorf("expected base64 payload"))
		}
		data, err := decodeBase64(source[comma+1:])
		if err != nil {
			return nil, "", clierrors.InvalidFormatError("data URI", err)
		}
		return data, "", nil
	}

	if _, err := os.Stat(source); err == nil {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, "", err
		}
		return data, filepath.Base(source), nil
	}

	if looksLikeBase64(source) {
		data, err := decodeBase64(source)
		if err == nil {
			return data, "", nil
		}
	}
	return nil, "", clierrors.FileNotFoundError(source)
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func looksLikeBase64(s string) bool {
	if len(s) < 16 || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=', r == '\n', r == '\r':
		default:
			return false
		}
	}
	return true
}
