package logstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MemoryClient is an in-process fake S3API for tests. Objects are
// listed in key order, PageSize keys per page.
type MemoryClient struct {
	PageSize int

	mu       sync.Mutex
	objects  map[string][]byte
	failGet  map[string]error
	failList map[int]error
	puts     []string
	lists    int
}

// NewMemoryClient returns an empty MemoryClient with a page size of 1000.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		PageSize: 1000,
		objects:  make(map[string][]byte),
		failGet:  make(map[string]error),
		failList: make(map[int]error),
	}
}

// Set stores body under key.
func (m *MemoryClient) Set(key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
}

// Object returns the body stored under key.
func (m *MemoryClient) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	return body, ok
}

// PutKeys returns the keys written through PutObject in call order.
func (m *MemoryClient) PutKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.puts...)
}

// ListCalls returns how many list pages were requested.
func (m *MemoryClient) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

// FailGet makes GetObject on key return err.
func (m *MemoryClient) FailGet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet[key] = err
}

// FailListPage makes the n-th list request (1-based) return err.
func (m *MemoryClient) FailListPage(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failList[n] = err
}

func (m *MemoryClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	m.puts = append(m.puts, key)
	return &s3.PutObjectOutput{ETag: aws.String(fmt.Sprintf("%q", strconv.Itoa(len(m.puts))))}, nil
}

func (m *MemoryClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failGet[key]; err != nil {
		return nil, err
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String(key)}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (m *MemoryClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if err := m.failList[m.lists]; err != nil {
		return nil, err
	}

	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("memory s3: bad continuation token %q", token)
		}
		start = min(n, len(keys))
	}
	size := m.PageSize
	if size <= 0 {
		size = 1000
	}
	end := min(start+size, len(keys))

	out := &s3.ListObjectsV2Output{KeyCount: aws.Int32(int32(end - start))}
	for _, key := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

var _ S3API = (*MemoryClient)(nil)
