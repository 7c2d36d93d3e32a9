package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vidra/cmd/account/ids"
)

// Config holds the connection settings for the object store. Endpoint is the
// public base URL (also used to build references), so it must be reachable by
// clients, not only by the service.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Host stores media in a single bucket of an S3-compatible service.
type S3Host struct {
	client   *s3.Client
	endpoint string
	bucket   string
	log      *slog.Logger
}

// NewS3Host dials nothing; the client is lazy. Credentials are static, which
// matches self-hosted MinIO-style deployments.
func NewS3Host(ctx context.Context, cfg Config, log *slog.Logger) (*S3Host, error) {
	const op = "media.NewS3Host"

	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: endpoint and bucket are required", op)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Host{
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		bucket:   cfg.Bucket,
		log:      log,
	}, nil
}

// Upload stores the staged file under a date-partitioned key and returns its
// public URL. The staged file is always removed afterwards.
func (h *S3Host) Upload(ctx context.Context, localPath string) (string, error) {
	const op = "media.S3Host.Upload"

	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			h.log.Warn("failed to remove staged upload", "path", localPath, "error", err)
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	key, err := objectKey(time.Now().UTC(), filepath.Ext(localPath))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return h.endpoint + "/" + h.bucket + "/" + key, nil
}

// Delete removes a previously uploaded object. References that do not belong
// to this host's endpoint and bucket are rejected.
func (h *S3Host) Delete(ctx context.Context, ref string) error {
	const op = "media.S3Host.Delete"

	key, err := keyFromRef(ref, h.endpoint, h.bucket)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// objectKey builds "YYYY/MM/DD/<ulid><ext>". Extensions are lowercased so a
// re-uploaded ".JPG" and ".jpg" map to the same content type downstream.
func objectKey(now time.Time, ext string) (string, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d/%02d/%02d/%s%s",
		now.Year(), int(now.Month()), now.Day(),
		id, strings.ToLower(ext)), nil
}

// keyFromRef inverts the URL produced by Upload.
func keyFromRef(ref, endpoint, bucket string) (string, error) {
	prefix := endpoint + "/" + bucket + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", fmt.Errorf("reference %q is not hosted here", ref)
	}
	key := strings.TrimPrefix(ref, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("reference %q has no usable key", ref)
	}
	return key, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
