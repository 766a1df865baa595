package logstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(client *MemoryClient, prefix string, n int) {
	for i := 0; i < n; i++ {
		client.Set(fmt.Sprintf("%s%d.txt", prefix, 1000+i), []byte(`{}`))
	}
}

func TestListKeysFollowsContinuationTokens(t *testing.T) {
	client := NewMemoryClient()
	client.PageSize = 2
	seed(client, "a/", 5)
	seed(client, "b/", 3)

	keys, err := ListKeys(context.Background(), client, "logs", "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1000.txt", "a/1001.txt", "a/1002.txt", "a/1003.txt", "a/1004.txt"}, keys)
	assert.Equal(t, 3, client.ListCalls())
}

func TestListKeysWithoutPrefix(t *testing.T) {
	client := NewMemoryClient()
	seed(client, "", 3)

	keys, err := ListKeys(context.Background(), client, "logs", "")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.Equal(t, 1, client.ListCalls())
}

func TestListKeysEmptyBucket(t *testing.T) {
	keys, err := ListKeys(context.Background(), NewMemoryClient(), "logs", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestListKeysLatePageFailureDiscardsEverything(t *testing.T) {
	client := NewMemoryClient()
	client.PageSize = 2
	seed(client, "", 6)
	boom := errors.New("throttled")
	client.FailListPage(3, boom)

	keys, err := ListKeys(context.Background(), client, "logs", "")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, keys)
}
