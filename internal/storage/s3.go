// Package storage validates and re-signs download links for translated
// documents held in S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/MimeLyc/seabridge/internal/jobs"
)

const DefaultSignedURLTTL = 24 * time.Hour

const amzDateLayout = "20060102T150405Z"

type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Config struct {
	Bucket string
	Region string
	// EndpointURL points at an S3-compatible service and switches to
	// path-style addressing.
	EndpointURL string
	TTL         time.Duration
}

// S3Store implements jobs.ObjectStore.
type S3Store struct {
	bucket    string
	client    HeadObjectAPI
	presigner PresignAPI
	ttl       time.Duration
	now       func() time.Time
}

var _ jobs.ObjectStore = (*S3Store)(nil)

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClients(cfg.Bucket, client, s3.NewPresignClient(client), cfg.TTL), nil
}

func NewS3StoreWithClients(bucket string, client HeadObjectAPI, presigner PresignAPI, ttl time.Duration) *S3Store {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &S3Store{
		bucket:    bucket,
		client:    client,
		presigner: presigner,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Probe reports whether signedURL is unexpired and its object still exists.
func (s *S3Store) Probe(ctx context.Context, signedURL string) (bool, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return false, nil
	}
	if expired(u, s.now()) {
		return false, nil
	}

	key, ok := s.objectKey(u)
	if !ok {
		return false, nil
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

// Refresh signs a new GET link for the object behind signedURL.
func (s *S3Store) Refresh(ctx context.Context, signedURL string) (string, error) {
	u, err := url.Parse(signedURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL: %w", err)
	}
	key, ok := s.objectKey(u)
	if !ok {
		return "", fmt.Errorf("download URL is not in bucket %s", s.bucket)
	}
	return s.Presign(ctx, key)
}

// Presign returns a GET link for key valid for the configured TTL.
func (s *S3Store) Presign(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// objectKey extracts the object key from a virtual-hosted or path-style URL.
func (s *S3Store) objectKey(u *url.URL) (string, bool) {
	p := strings.TrimPrefix(u.Path, "/")
	if !strings.HasPrefix(u.Host, s.bucket+".") {
		rest, found := strings.CutPrefix(p, s.bucket+"/")
		if !found {
			return "", false
		}
		p = rest
	}
	if p == "" {
		return "", false
	}
	return p, true
}

// expired checks the SigV4 query parameters. URLs without them are not
// considered expired.
func expired(u *url.URL, now time.Time) bool {
	q := u.Query()
	date, secs := q.Get("X-Amz-Date"), q.Get("X-Amz-Expires")
	if date == "" || secs == "" {
		return false
	}
	signedAt, err := time.Parse(amzDateLayout, date)
	if err != nil {
		return true
	}
	n, err := strconv.Atoi(secs)
	if err != nil {
		return true
	}
	return !now.Before(signedAt.Add(time.Duration(n) * time.Second))
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
