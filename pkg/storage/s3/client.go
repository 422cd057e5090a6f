package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

const pingTimeout = 5 * time.Second

// Client stores bill documents in a single S3 (or S3-compatible) bucket.
type Client struct {
	api      *s3.Client
	bucket   string
	region   string
	endpoint *url.URL
}

// Option tweaks the underlying SDK client.
type Option func(*s3.Options)

// WithHTTPClient swaps the transport used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *s3.Options) {
		o.HTTPClient = hc
	}
}

func NewClient(ctx context.Context, cfg config.S3Config, logg *logger.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket name is required")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-south-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var endpoint *url.URL
	if cfg.Endpoint != "" {
		endpoint, err = url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing s3 endpoint: %w", err)
		}
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, opt := range opts {
			opt(o)
		}
	})

	client := &Client{api: api, bucket: cfg.Bucket, region: region, endpoint: endpoint}
	if logg != nil {
		logg.Info(ctx, "s3 client initialized")
	}
	return client, nil
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Ping checks that the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("s3 client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket check failed: %w", err)
	}
	return nil
}

// Put uploads body under key and returns the object url.
func (c *Client) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if key == "" {
		return "", errors.New("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return c.ObjectURL(key), nil
}

// Object is an open object stream. Callers must close Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Get opens the object stored under key.
func (c *Client) Get(ctx context.Context, key string) (*Object, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &Object{
		Body:          out.Body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
	}, nil
}

// ObjectURL builds the public-style url of key. Custom endpoints use path style.
func (c *Client) ObjectURL(key string) string {
	escaped := escapeKey(key)
	if c.endpoint != nil {
		base := strings.TrimRight(c.endpoint.String(), "/")
		return fmt.Sprintf("%s/%s/%s", base, c.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
