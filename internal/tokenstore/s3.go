package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/auctionledger/onboard/internal/logging"
	"github.com/auctionledger/onboard/internal/token"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// indirection points for tests
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds connection settings for the S3-compatible backend
// (MinIO in development).
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	RootUser     string
	RootPassword string
}

// S3Store uploads the token document to object storage so web clients can
// fetch it without access to the host filesystem. It is a distribution
// channel, not the durable artifact: the FileStore remains the run's
// success criterion.
type S3Store struct {
	cfg    S3Config
	key    string
	logger logging.Logger
}

func NewS3Store(cfg S3Config, key string, logger logging.Logger) *S3Store {
	if key == "" {
		key = path.Join("onboarding", "tokens.json")
	}
	return &S3Store{cfg: cfg, key: key, logger: logger.With("module", "s3_store")}
}

func (s *S3Store) Persist(ctx context.Context, tokens []token.IssuedToken) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload tokens to s3: %w", err)
	}

	s.logger.Info(ctx, "tokens uploaded", "bucket", s.cfg.Bucket, "key", s.key)
	return nil
}

func (s *S3Store) getClient(ctx context.Context) (s3API, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.RootUser,     // MINIO_ROOT_USER
			s.cfg.RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}
