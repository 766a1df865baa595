package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/record"
)

// Policy decides what a failed read does to the rest of a fetch.
type Policy int

const (
	// PolicyDefault uses the source's own default.
	PolicyDefault Policy = iota
	// FailFast aborts the fetch on the first failed read.
	FailFast
	// BestEffort logs and drops failed records.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case BestEffort:
		return "best_effort"
	default:
		return "default"
	}
}

// ParsePolicy maps "fail_fast", "best_effort" or "" (default) to a Policy.
// Dashes are accepted in place of underscores.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "default":
		return PolicyDefault, nil
	case "fail_fast":
		return FailFast, nil
	case "best_effort":
		return BestEffort, nil
	default:
		return PolicyDefault, fmt.Errorf("fetch: unknown failure policy %q", s)
	}
}

// Entry is a stored record's key paired with the timestamp parsed from it.
type Entry struct {
	Key       string
	Timestamp int64
}

// Source lists and reads stored records.
type Source interface {
	// Kind names the source for logs and metrics.
	Kind() string
	// Entries lists every record. ignored counts names that are not records.
	Entries(ctx context.Context) (entries []Entry, ignored int, err error)
	Read(ctx context.Context, key string) ([]byte, error)
	Policy() Policy
}

// DirSource reads records from a local directory, one file per record.
// It fails fast unless told otherwise.
type DirSource struct {
	Dir           string
	FailurePolicy Policy
}

func (d DirSource) Kind() string { return "directory" }

func (d DirSource) Policy() Policy {
	if d.FailurePolicy == PolicyDefault {
		return FailFast
	}
	return d.FailurePolicy
}

func (d DirSource) Entries(ctx context.Context) ([]Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	files, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch: read dir %s: %w", d.Dir, err)
	}

	entries := make([]Entry, 0, len(files))
	ignored := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		ts, ok := record.TimestampFromKey(f.Name(), "")
		if !ok {
			ignored++
			continue
		}
		entries = append(entries, Entry{Key: f.Name(), Timestamp: ts})
	}
	return entries, ignored, nil
}

func (d DirSource) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(d.Dir, key))
}

// S3API is what S3Source needs from the S3 client.
type S3API interface {
	logstore.GetAPI
	logstore.ListAPI
}

// S3Source reads records from an S3 bucket under an optional key prefix.
// It drops unreadable records unless told otherwise.
type S3Source struct {
	Client        S3API
	Bucket        string
	Prefix        string
	FailurePolicy Policy
}

func (s S3Source) Kind() string { return "s3" }

func (s S3Source) Policy() Policy {
	if s.FailurePolicy == PolicyDefault {
		return BestEffort
	}
	return s.FailurePolicy
}

func (s S3Source) Entries(ctx context.Context) ([]Entry, int, error) {
	keys, err := logstore.ListKeys(ctx, s.Client, s.Bucket, s.Prefix)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]Entry, 0, len(keys))
	ignored := 0
	for _, key := range keys {
		ts, ok := record.TimestampFromKey(key, s.Prefix)
		if !ok {
			ignored++
			continue
		}
		entries = append(entries, Entry{Key: key, Timestamp: ts})
	}
	return entries, ignored, nil
}

func (s S3Source) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
