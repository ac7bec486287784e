package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderVOD is the key prefix under each video where merged manifests live.
	FolderVOD = "cmaf"
	// ManifestContentType is the content type for stored manifest objects.
	ManifestContentType = "text/plain"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	DestinationBucket    string
	CDNEndpoint          string
	PresignExpireMinutes int
}

// S3 writes merged manifests to the destination bucket and builds their
// CDN-facing URLs.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using credentials from .env/config",
			zap.String("region", cfg.Region), zap.String("destination_bucket", cfg.DestinationBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// MasterManifestKey returns the destination key of the merged master
// manifest: {pk}/cmaf/{stamp}.m3u8.
func MasterManifestKey(pk, stamp string) string {
	return path.Join(pk, FolderVOD, stamp+".m3u8")
}

// SubManifestFilename returns the synthesized public filename of one merged
// per-resolution playlist: {environment}_{pk}_{stamp}_hls_{height}.m3u8.
func SubManifestFilename(environment, pk, stamp string, height int) string {
	return fmt.Sprintf("%s_%s_%s_hls_%d.m3u8", environment, pk, stamp, height)
}

// SubManifestKey returns the destination key of one merged per-resolution
// playlist: {pk}/cmaf/{environment}_{pk}_{stamp}_hls_{height}.m3u8.
func SubManifestKey(environment, pk, stamp string, height int) string {
	return path.Join(pk, FolderVOD, SubManifestFilename(environment, pk, stamp, height))
}

// UploadManifest writes a manifest body under key in the destination bucket
// as text/plain. An existing object under the same key is overwritten.
func (s *S3) UploadManifest(ctx context.Context, key, body string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.DestinationBucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String(ManifestContentType),
	})
	if err != nil {
		return fmt.Errorf("upload manifest %s: %w", key, err)
	}
	return nil
}

// ManifestURL returns the CDN URL serving the object under key.
func (s *S3) ManifestURL(key string) string {
	return fmt.Sprintf("https://%s/%s", s.cfg.CDNEndpoint, key)
}

// PresignedManifestURL returns a pre-signed GET URL for a stored manifest,
// for callers that cannot go through the CDN (e.g. private-bucket debugging).
func (s *S3) PresignedManifestURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.DestinationBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}
