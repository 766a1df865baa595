package logstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutAPI is the subset of the S3 client used to write records.
type PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// GetAPI is the subset of the S3 client used to read records.
type GetAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ListAPI is the subset of the S3 client used to enumerate records.
type ListAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3API is everything the logger needs from S3. *s3.Client satisfies it.
type S3API interface {
	PutAPI
	GetAPI
	ListAPI
}

var _ S3API = (*s3.Client)(nil)
