// Package s3store implements kvstore.Store on S3. Each key is one JSON
// object; merges are read-modify-write cycles guarded by ETag conditional
// puts so concurrent writers retry instead of overwriting each other.
package s3store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/awsconf"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// ErrConflict is returned when a conditional write kept losing the race.
var ErrConflict = errors.New("concurrent modification")

const maxConditionalAttempts = 5

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store keeps one object per key under a prefix.
type Store struct {
	api     API
	bucket  string
	prefix  string
	logger  types.Logger
	metrics types.Metrics
}

type document struct {
	Fields    map[string][]byte `json:"fields"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Open builds an S3 client from cfg.
func Open(ctx context.Context, cfg config.S3Config, logger types.Logger, metrics types.Metrics) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("invalid S3 configuration: bucket is required")
	}

	awsCfg, err := awsconf.Load(ctx, awsconf.Options{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return New(client, cfg.Bucket, cfg.Prefix, logger, metrics), nil
}

// New wraps an existing client.
func New(api API, bucket, prefix string, logger types.Logger, metrics types.Metrics) *Store {
	return &Store{
		api:     api,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger,
		metrics: metrics,
	}
}

// objectKey hashes the cache key so arbitrary URLs map to safe object names.
func (s *Store) objectKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return path.Join(s.prefix, hex.EncodeToString(sum[:])+".json")
}

func (s *Store) Read(ctx context.Context, key string) (kvstore.Record, error) {
	start := time.Now()
	doc, _, err := s.get(ctx, key)
	s.record(ctx, "read", start, err)
	if err != nil {
		return nil, err
	}
	if len(doc.Fields) == 0 {
		return nil, kvstore.ErrKeyNotFound
	}
	return kvstore.Record(doc.Fields), nil
}

func (s *Store) Replace(ctx context.Context, key string, rec kvstore.Record) error {
	start := time.Now()
	var err error
	if len(rec) == 0 {
		err = s.delete(ctx, key)
	} else {
		err = s.put(ctx, key, document{Fields: rec, UpdatedAt: time.Now().UTC()}, nil, nil)
	}
	s.record(ctx, "replace", start, err)
	return err
}

func (s *Store) Merge(ctx context.Context, key string, rec kvstore.Record) error {
	if len(rec) == 0 {
		return nil
	}
	start := time.Now()

	var err error
	for attempt := 0; attempt < maxConditionalAttempts; attempt++ {
		var (
			doc  document
			etag *string
		)
		doc, etag, err = s.get(ctx, key)
		if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
			break
		}
		if doc.Fields == nil {
			doc.Fields = make(map[string][]byte, len(rec))
		}
		for field, value := range rec {
			doc.Fields[field] = value
		}
		doc.UpdatedAt = time.Now().UTC()

		if etag != nil {
			err = s.put(ctx, key, doc, etag, nil)
		} else {
			err = s.put(ctx, key, doc, nil, aws.String("*"))
		}
		if !isPreconditionFailed(err) {
			break
		}

		s.logger.Debug(ctx, "Conditional write lost the race, retrying", types.Fields{
			"attempt": attempt + 1,
		})
		err = ErrConflict
	}

	s.record(ctx, "merge", start, err)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.delete(ctx, key)
	s.record(ctx, "delete", start, err)
	return err
}

func (s *Store) Close() error { return nil }

func (s *Store) get(ctx context.Context, key string) (document, *string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return document{}, nil, kvstore.ErrKeyNotFound
		}
		return document{}, nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return document{}, nil, fmt.Errorf("failed to read object: %w", err)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return document{}, nil, fmt.Errorf("failed to decode object: %w", err)
	}
	return doc, out.ETag, nil
}

func (s *Store) put(ctx context.Context, key string, doc document, ifMatch, ifNoneMatch *string) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode object: %w", err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		IfMatch:     ifMatch,
		IfNoneMatch: ifNoneMatch,
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return err
		}
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *Store) record(ctx context.Context, operation string, start time.Time, err error) {
	op := "kvstore.s3." + operation
	s.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		s.metrics.RecordError(op, "s3")
		s.logger.Error(ctx, "S3 store operation failed", err, types.Fields{
			"operation": operation,
			"bucket":    s.bucket,
		})
		return
	}
	s.metrics.RecordSuccess(op)
}

// isNotFoundError checks if an error is a not found error
func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nse *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nse)
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
