package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/scanforge/filescand/pkg/log"
)

// s3Config is the "s3"-kind backend's configuration shape.
type s3Config struct {
	Kind            string `json:"kind"`
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// S3 is a Backend that stores each pointer's chunks as sequentially
// numbered objects under <prefix>/<pointer>/<seq>, draining by listing
// and concatenating them in order. S3 itself has no per-object
// EXPIREAT primitive, so each object carries its deadline as an
// "expires_at" tag; this backend does not delete expired objects
// itself.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string

	mu  sync.Mutex
	seq map[string]int
}

func newS3FromConfig(raw json.RawMessage) (*S3, error) {
	var cfg s3Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("blobstore: decoding s3 config: %w", err)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blobstore: s3 backend requires a bucket")
	}

	optFns := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Infof("blobstore: s3 backend targeting bucket %q", cfg.Bucket)
	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		seq:    map[string]int{},
	}, nil
}

func (b *S3) key(pointer string, seq int) string {
	if b.prefix == "" {
		return fmt.Sprintf("data/%s/%06d", pointer, seq)
	}
	return fmt.Sprintf("%s/data/%s/%06d", b.prefix, pointer, seq)
}

// Append implements Backend by writing the next sequential object
// under the pointer's namespace.
func (b *S3) Append(ctx context.Context, pointer string, chunk []byte, deadline time.Time) error {
	b.mu.Lock()
	n := b.seq[pointer]
	b.seq[pointer] = n + 1
	b.mu.Unlock()

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(pointer, n)),
		Body:   bytes.NewReader(chunk),
		Tagging: aws.String(
			"expires_at=" + strconv.FormatInt(deadline.Unix(), 10),
		),
	})
	if err != nil {
		return fmt.Errorf("blobstore: s3 put %s/%d: %w", pointer, n, err)
	}
	return nil
}

// Drain implements Backend by listing and concatenating every object
// under the pointer's namespace in sequence order, then deleting them.
func (b *S3) Drain(ctx context.Context, pointer string) ([]byte, error) {
	listPrefix := b.key(pointer, 0)
	listPrefix = listPrefix[:len(listPrefix)-len("000000")]

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(listPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: s3 list %s: %w", pointer, err)
	}

	var buf bytes.Buffer
	var keys []string
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	for _, key := range keys {
		getOut, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("blobstore: s3 get %s: %w", key, err)
		}
		if _, err := io.Copy(&buf, getOut.Body); err != nil {
			getOut.Body.Close()
			return nil, fmt.Errorf("blobstore: s3 read %s: %w", key, err)
		}
		getOut.Body.Close()
		if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		}); err != nil {
			log.Warnf("blobstore: s3 failed to delete drained object %s: %v", key, err)
		}
	}

	b.mu.Lock()
	delete(b.seq, pointer)
	b.mu.Unlock()

	return buf.Bytes(), nil
}
