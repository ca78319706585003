// s3.go AWS S3 object store implementation
package uploader

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/errors"
)

// S3Store uploads artifacts to an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3 client from the upload settings. Credentials fall
// back to the default AWS chain when not configured explicitly.
func NewS3Store(ctx context.Context, settings conf.UploadSettings) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}
	if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				settings.AccessKeyID,
				settings.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to load AWS config: %w", err)).
			Component("uploader").
			Category(errors.CategoryUpload).
			Build()
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			// Path style addressing for MinIO and other S3 compatibles
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: settings.Bucket}, nil
}

// Put uploads the file at path under the given key.
func (s *S3Store) Put(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.New(fmt.Errorf("failed to open artifact for upload: %w", err)).
			Component("uploader").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to upload artifact: %w", err)).
			Component("uploader").
			Category(errors.CategoryUpload).
			Context("bucket", s.bucket).
			Context("key", key).
			Build()
	}
	return nil
}
