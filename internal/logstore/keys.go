package logstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ListKeys returns every key under prefix, following continuation tokens until
// S3 reports no more pages. A failed page discards everything listed so far.
func ListKeys(ctx context.Context, client ListAPI, bucket, prefix string) ([]string, error) {
	ctx, span := otel.Tracer("alexa-logger/logstore").Start(ctx, "logstore.list_keys")
	defer span.End()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	pages := 0
	for {
		out, err := client.ListObjectsV2(ctx, input)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("logstore: s3 list %s page %d: %w", bucket, pages+1, err)
		}
		pages++
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}

		token := aws.ToString(out.NextContinuationToken)
		if token == "" {
			break
		}
		input.ContinuationToken = aws.String(token)
	}

	span.SetAttributes(attribute.Int("s3.pages", pages), attribute.Int("s3.keys", len(keys)))
	return keys, nil
}
