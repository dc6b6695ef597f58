package s3infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/citymate-api/internal/config"
	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/id"
	"github.com/gabriel-vasile/mimetype"
)

const (
	pendingPrefix = "pending"
	photoPrefix   = "profile_photos"
	maxPhotoBytes = 5 << 20
)

// Store keeps profile photos. Uploads land under pending/ until the owner verifies the profile change.
type Store struct {
	client *s3.Client
	bucket string
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(cfg *config.Config) *s3.Client {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		panic("failed to load AWS config for S3: " + err.Error())
	}

	clientOpts := []func(*s3.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...)
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Stage decodes a base64 image and uploads it under the pending prefix for userID.
func (s *Store) Stage(ctx context.Context, userID, b64Data string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(b64Data)
	if err != nil {
		return "", fmt.Errorf("photo is not valid base64: %w", domain.ErrValidation)
	}
	if len(decoded) > maxPhotoBytes {
		return "", fmt.Errorf("photo exceeds %d bytes: %w", maxPhotoBytes, domain.ErrValidation)
	}
	contentType, ext, err := detectImageType(decoded)
	if err != nil {
		return "", err
	}
	key := StagedKey(userID, id.New()+ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(decoded),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return key, nil
}

// Promote copies a staged object to its permanent profile key and removes the staged copy.
func (s *Store) Promote(ctx context.Context, stagedKey string) (string, error) {
	if !strings.HasPrefix(stagedKey, pendingPrefix+"/") {
		return "", fmt.Errorf("not a staged key %q: %w", stagedKey, domain.ErrBadRequest)
	}
	finalKey := PromotedKey(stagedKey)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + stagedKey),
		Key:        aws.String(finalKey),
	})
	if err != nil {
		return "", fmt.Errorf("s3 copy object: %w", err)
	}
	if err := s.Delete(ctx, stagedKey); err != nil {
		return "", err
	}
	return finalKey, nil
}

// PresignedURL generates a time-limited presigned GET URL for the given key.
func (s *Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}

// Delete removes an object from S3.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// StagedKey is the pending location of an upload: pending/<user>/<name>.
func StagedKey(userID, name string) string {
	return path.Join(pendingPrefix, userID, name)
}

// PromotedKey maps pending/<user>/<name> to profile_photos/<user>/<name>.
func PromotedKey(stagedKey string) string {
	return photoPrefix + strings.TrimPrefix(stagedKey, pendingPrefix)
}

var photoTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

func detectImageType(b []byte) (contentType, ext string, err error) {
	mt := mimetype.Detect(b)
	for _, allowed := range photoTypes {
		if mt.Is(allowed) {
			return allowed, mt.Extension(), nil
		}
	}
	return "", "", fmt.Errorf("unsupported photo type %s: %w", mt.String(), domain.ErrValidation)
}
