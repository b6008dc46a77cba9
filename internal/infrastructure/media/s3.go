package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"Encyclopedia/internal/ports"
)

// Config describes the bucket images are uploaded to.
type Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicURL    string
	UsePathStyle bool
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ImageStore uploads article images to an S3 compatible bucket.
type S3ImageStore struct {
	client objectPutter
	cfg    Config
}

var _ ports.ImageStore = (*S3ImageStore)(nil)

// NewS3ImageStore builds an S3 client with static credentials.
func NewS3ImageStore(ctx context.Context, cfg Config) (*S3ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3ImageStore{client: client, cfg: cfg}, nil
}

// Put uploads data under key and returns its public link.
func (s *S3ImageStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.link(key), nil
}

func (s *S3ImageStore) link(key string) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
