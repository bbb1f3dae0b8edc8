package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Provider represents the S3-compatible storage provider
type Provider string

const (
	ProviderAWS    Provider = "aws"
	ProviderWasabi Provider = "wasabi"
	ProviderR2     Provider = "r2"
)

// Config holds configuration for S3-compatible storage
type Config struct {
	Provider        Provider
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	// Endpoint overrides the provider endpoint: a Wasabi host
	// ("s3.ap-southeast-1.wasabisys.com") or an R2 account id.
	Endpoint string
}

// wasabiEndpoints maps regions to Wasabi endpoints
var wasabiEndpoints = map[string]string{
	"us-east-1":      "s3.us-east-1.wasabisys.com",
	"us-east-2":      "s3.us-east-2.wasabisys.com",
	"us-west-1":      "s3.us-west-1.wasabisys.com",
	"eu-central-1":   "s3.eu-central-1.wasabisys.com",
	"eu-west-1":      "s3.eu-west-1.wasabisys.com",
	"ap-northeast-1": "s3.ap-northeast-1.wasabisys.com",
	"ap-southeast-1": "s3.ap-southeast-1.wasabisys.com",
	"ap-southeast-2": "s3.ap-southeast-2.wasabisys.com",
}

// ObjectAPI is the subset of the S3 client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client creates an S3 client for AWS, Wasabi or Cloudflare R2
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if cfg.Provider == ProviderR2 {
		region = "auto"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	switch cfg.Provider {
	case ProviderWasabi:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = wasabiEndpoints[cfg.Region]
		}
		if endpoint == "" {
			endpoint = "s3.ap-southeast-1.wasabisys.com"
		}
		// Wasabi requires path-style addressing
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String("https://" + endpoint)
			o.UsePathStyle = true
		}), nil
	case ProviderR2:
		if cfg.Endpoint == "" {
			return nil, errors.New("r2 storage requires S3_ENDPOINT to hold the account id")
		}
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.Endpoint))
		}), nil
	default:
		return s3.NewFromConfig(awsCfg), nil
	}
}

// S3Store implements the blob store contract on an S3-compatible bucket.
// URIs have the form s3://<bucket>/<key>.
type S3Store struct {
	client ObjectAPI
	bucket string
}

func NewS3Store(client ObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return "", errors.New("storage: empty object path")
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return BuildURI(s.bucket, key), nil
}

func (s *S3Store) Download(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) Delete(ctx context.Context, uri string) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// BuildURI formats a bucket/key pair as an s3:// URI.
func BuildURI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ParseURI splits an s3:// URI into bucket and key.
func ParseURI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("storage: unsupported uri %q", uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage: malformed uri %q", uri)
	}
	return bucket, key, nil
}
