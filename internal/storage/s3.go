package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const s3Backend = "s3"

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store talks to a single bucket. It is created once at startup and shared.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	baseURL  string
	logger   zerolog.Logger
}

func NewS3Store(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3: bucket and region are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		baseURL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", cfg.Bucket, cfg.Region),
		logger:   logger.With().Str("component", "s3").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

func (s *S3Store) URL(key string) string {
	return s.baseURL + key
}

func (s *S3Store) KeyFromURL(rawURL string) string {
	return strings.TrimPrefix(rawURL, s.baseURL)
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               body,
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(ContentDisposition(key)),
	})
	observe(s3Backend, "put", err)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("upload failed")
		return fmt.Errorf("s3 put %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Str("content_type", contentType).Msg("object uploaded")
	return nil
}

func (s *S3Store) Delete(ctx context.Context, keyOrURL string) error {
	key := s.KeyFromURL(keyOrURL)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	observe(s3Backend, "delete", err)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("delete failed")
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(ContentDisposition(key)),
		ResponseContentType:        aws.String(ContentTypeFor(key)),
	}, s3.WithPresignExpires(ttl))
	observe(s3Backend, "sign", err)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("presign failed")
		return "", fmt.Errorf("s3 sign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			observe(s3Backend, "list", err)
			s.logger.Error().Err(err).Str("prefix", prefix).Msg("list failed")
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	observe(s3Backend, "list", nil)
	return keys, nil
}
