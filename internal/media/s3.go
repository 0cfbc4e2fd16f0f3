package media

import (
	"context"
	"fmt"
	"io"
	"time"

	appconfig "user_service/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader stores media files in an S3-compatible bucket and hands back
// stable public URLs.
type Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func New(ctx context.Context, cfg *appconfig.Config) (*Uploader, error) {
	const op = "media.New"

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.S3.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
	})

	return &Uploader{
		client:    client,
		bucket:    cfg.S3.Bucket,
		publicURL: cfg.S3.PublicURL,
	}, nil
}

// Upload puts the file under a fresh dated key within category and returns the
// public URL of the stored object.
func (u *Uploader) Upload(ctx context.Context, category string, file io.Reader, contentType string) (string, error) {
	const op = "media.Upload"

	key := storageKey(category)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Sprintf("%s/%s/%s", u.publicURL, u.bucket, key), nil
}

func storageKey(category string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%v", category, d.Year(), int(d.Month()), d.Day(), uuid.New())
}
