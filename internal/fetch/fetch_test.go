package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/record"
)

func ms(v int64) *int64 { return &v }

func body(user, session string) []byte {
	return []byte(fmt.Sprintf(`{"event":{"session":{"sessionId":%q,"user":{"userId":%q}},"request":{"type":"LaunchRequest"}},"response":"hi"}`, session, user))
}

func writeDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func timestamps(res *Result) []int64 {
	out := make([]int64, 0, len(res.Records))
	for _, r := range res.Records {
		out = append(out, r.Timestamp)
	}
	return out
}

func TestDateRangeContains(t *testing.T) {
	all := []int64{100, 200, 300}
	tests := []struct {
		name  string
		rng   DateRange
		wants []int64
	}{
		{"open", DateRange{}, []int64{100, 200, 300}},
		{"start only", DateRange{Start: ms(150)}, []int64{200, 300}},
		{"end only", DateRange{End: ms(250)}, []int64{100, 200}},
		{"both exclusive", DateRange{Start: ms(100), End: ms(300)}, []int64{200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for _, ts := range all {
				if tt.rng.Contains(ts) {
					got = append(got, ts)
				}
			}
			assert.Equal(t, tt.wants, got)
		})
	}
}

func TestFetchDirectory(t *testing.T) {
	dir := writeDir(t, map[string][]byte{
		"100.txt":   body("u", "s"),
		"300.txt":   body("u", "s"),
		"200.txt":   body("u", "s"),
		".DS_Store": []byte("junk"),
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	res, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: dir}, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []int64{300, 200, 100}, timestamps(res))
	require.NotNil(t, res.Last)
	assert.Equal(t, int64(300), *res.Last)
	assert.Equal(t, 1, res.Ignored)
	assert.Equal(t, "u", res.Records[0].Event.UserID())
}

func TestFetchDirectorySkipsFilesOutsideWindowWithoutReading(t *testing.T) {
	dir := writeDir(t, map[string][]byte{
		"100.txt": []byte("not json"),
		"200.txt": body("u", "s"),
		"300.txt": []byte("not json either"),
	})

	res, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: dir}, DateRange{Start: ms(100), End: ms(300)})
	require.NoError(t, err)
	assert.Equal(t, []int64{200}, timestamps(res))
	assert.Equal(t, 2, res.Filtered)
}

func TestFetchDirectoryFailsFast(t *testing.T) {
	dir := writeDir(t, map[string][]byte{
		"100.txt": body("u", "s"),
		"200.txt": []byte("{broken"),
	})

	res, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: dir}, DateRange{})
	assert.Nil(t, res)
	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "200.txt", readErr.Key)
}

func TestFetchDirectoryBestEffortWhenSelected(t *testing.T) {
	dir := writeDir(t, map[string][]byte{
		"100.txt": body("u", "s"),
		"200.txt": []byte("{broken"),
	})

	res, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: dir, FailurePolicy: BestEffort}, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(res))
	assert.Equal(t, 1, res.Skipped)
	require.NotNil(t, res.OldestSkipped)
	assert.Equal(t, int64(200), *res.OldestSkipped)
}

func TestFetchDirectoryMissing(t *testing.T) {
	_, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: filepath.Join(t.TempDir(), "nope")}, DateRange{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchEmptyDirectory(t *testing.T) {
	res, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: t.TempDir()}, DateRange{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Nil(t, res.Last)
	assert.Nil(t, res.OldestSkipped)
}

func TestFetchS3BestEffort(t *testing.T) {
	client := logstore.NewMemoryClient()
	client.PageSize = 2
	client.Set("logs/100.txt", body("u", "s"))
	client.Set("logs/200.txt", []byte("garbage"))
	client.Set("logs/300.txt", body("u", "s"))
	client.Set("logs/400.txt", body("u", "s"))
	client.Set("logs/", nil)
	client.FailGet("logs/300.txt", errors.New("connection reset"))

	src := S3Source{Client: client, Bucket: "b", Prefix: "logs/"}
	res, err := NewFetcher(nil).Fetch(context.Background(), src, DateRange{End: ms(400)})
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, timestamps(res))
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, int64(200), *res.OldestSkipped)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 1, res.Ignored)
	assert.Equal(t, int64(100), *res.Last)
}

func TestFetchS3FailFastWhenSelected(t *testing.T) {
	client := logstore.NewMemoryClient()
	client.Set("100.txt", body("u", "s"))
	boom := errors.New("connection reset")
	client.FailGet("100.txt", boom)

	_, err := NewFetcher(nil).Fetch(context.Background(), S3Source{Client: client, Bucket: "b", FailurePolicy: FailFast}, DateRange{})
	assert.ErrorIs(t, err, boom)
}

func TestFetchS3ListFailure(t *testing.T) {
	client := logstore.NewMemoryClient()
	client.Set("100.txt", body("u", "s"))
	boom := errors.New("no such bucket")
	client.FailListPage(1, boom)

	_, err := NewFetcher(nil).Fetch(context.Background(), S3Source{Client: client, Bucket: "b"}, DateRange{})
	assert.ErrorIs(t, err, boom)
}

func TestPolicyDefaults(t *testing.T) {
	assert.Equal(t, FailFast, DirSource{}.Policy())
	assert.Equal(t, BestEffort, S3Source{}.Policy())
	assert.Equal(t, BestEffort, DirSource{FailurePolicy: BestEffort}.Policy())
	assert.Equal(t, FailFast, S3Source{FailurePolicy: FailFast}.Policy())
}

// jitterSource completes reads in random order and fails some of them.
type jitterSource struct {
	rnd     *rand.Rand
	mu      sync.Mutex
	entries []Entry
	fail    map[string]bool
	reads   map[string]int
}

func (s *jitterSource) Kind() string { return "jitter" }
func (s *jitterSource) Policy() Policy { return BestEffort }
func (s *jitterSource) Entries(context.Context) ([]Entry, int, error) {
	return s.entries, 0, nil
}

func (s *jitterSource) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	delay := time.Duration(s.rnd.Intn(300)) * time.Microsecond
	s.reads[key]++
	s.mu.Unlock()
	time.Sleep(delay)
	if s.fail[key] {
		return nil, errors.New("flaky")
	}
	return body("u", "s"), nil
}

func TestFetchCompletionIsOrderIndependent(t *testing.T) {
	const n = 60
	var want []int64
	for run := 0; run < 20; run++ {
		src := &jitterSource{
			rnd:   rand.New(rand.NewSource(int64(run))),
			fail:  map[string]bool{},
			reads: map[string]int{},
		}
		for i := 0; i < n; i++ {
			key := fmt.Sprintf("%d.txt", 1000+i)
			src.entries = append(src.entries, Entry{Key: key, Timestamp: int64(1000 + i)})
			if i%7 == 0 {
				src.fail[key] = true
			}
		}
		src.rnd.Shuffle(len(src.entries), func(i, j int) {
			src.entries[i], src.entries[j] = src.entries[j], src.entries[i]
		})

		res, err := NewFetcher(nil, WithConcurrency(1+run%8)).Fetch(context.Background(), src, DateRange{End: ms(1050)})
		require.NoError(t, err)
		assert.Equal(t, n-50, res.Filtered)
		assert.Equal(t, 8, res.Skipped)
		assert.Len(t, res.Records, 42)
		for key, count := range src.reads {
			assert.Equal(t, 1, count, "key %s read more than once", key)
		}

		got := timestamps(res)
		if want == nil {
			want = got
			continue
		}
		assert.Equal(t, want, got)
	}
}

func TestFetchRecordsKeepKeyAndTimestamp(t *testing.T) {
	dir := writeDir(t, map[string][]byte{"1501995600000.txt": body("u", "s")})

	res, err := NewFetcher(nil).Fetch(context.Background(), DirSource{Dir: dir}, DateRange{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, &record.Fetched{
		Key:       "1501995600000.txt",
		Timestamp: 1501995600000,
		Event:     res.Records[0].Event,
		Response:  res.Records[0].Response,
		Slots:     record.Slots{},
	}, res.Records[0])
	assert.JSONEq(t, `"hi"`, string(res.Records[0].Response))
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"":            PolicyDefault,
		"default":     PolicyDefault,
		"fail-fast":   FailFast,
		"FAIL_FAST":   FailFast,
		"best-effort": BestEffort,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("retry")
	assert.Error(t, err)
}
