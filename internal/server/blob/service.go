// Package blob hands out presigned S3 URLs for encrypted attachment blobs.
// Attachments are encrypted on the client before upload, so the object store
// only ever holds ciphertext; the server brokers access without proxying
// the bytes.
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dvoronkov/lockbox/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Settings configures access to the S3-compatible object store
// (MinIO in development).
type Settings struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	PresignTTL   time.Duration
}

// Service issues presigned upload and download URLs.
type Service struct {
	settings Settings
}

func NewService(settings Settings) *Service {
	if settings.PresignTTL <= 0 {
		settings.PresignTTL = 15 * time.Minute
	}
	return &Service{settings: settings}
}

// storageKey places blobs under the owning identity, partitioned by date so
// bucket listings stay manageable. The 128-bit random suffix keeps keys
// unguessable.
func storageKey(identityID string) (string, error) {
	suffix, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	d := time.Now()
	return fmt.Sprintf("blobs/%s/%d/%d/%d/%s", identityID, d.Year(), d.Month(), d.Day(), suffix), nil
}

func (s *Service) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.settings.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.settings.AccessKey,
			s.settings.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.settings.BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// PresignedPutURL allocates a fresh storage key for the identity and returns
// it with a presigned upload URL.
func (s *Service) PresignedPutURL(ctx context.Context, identityID string) (string, string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.settings.Bucket
	key, err := storageKey(identityID)
	if err != nil {
		return "", "", err
	}

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.settings.PresignTTL))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// PresignedGetURL returns a presigned download URL for an existing blob.
func (s *Service) PresignedGetURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.settings.Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.settings.PresignTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
