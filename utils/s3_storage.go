package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3FileStorage struct {
	client     *s3.Client
	bucketName string
	prefix     string
}

// NewS3FileStorage builds an S3 backed storage. S3_ENDPOINT points the client at a local
// S3 compatible server (LocalStack, MinIO) with static credentials.
func NewS3FileStorage(ctx context.Context, bucketName string) (*S3FileStorage, error) {
	if bucketName == "" {
		return nil, errors.New("report bucket name is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3FileStorage{client: client, bucketName: bucketName, prefix: "reports/"}, nil
}

func (s *S3FileStorage) key(fileName string) string {
	return s.prefix + fileName
}

func (s *S3FileStorage) UploadFileFromReader(ctx context.Context, src io.Reader, fileName string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(fileName)),
		Body:   src,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", fileName, err)
	}
	return fileName, nil
}

func (s *S3FileStorage) DownloadFile(ctx context.Context, filePath string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(filePath)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", filePath, err)
	}
	return out.Body, nil
}

func (s *S3FileStorage) DeleteFile(ctx context.Context, filePath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(filePath)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", filePath, err)
	}
	return nil
}

func (s *S3FileStorage) FileExists(ctx context.Context, filePath string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(filePath)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", filePath, err)
	}
	return true, nil
}

var _ FileStorage = (*S3FileStorage)(nil)
