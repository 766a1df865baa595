package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps checkpoints as plain integer keys.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("checkpoint: redis client cannot be nil")
	}
	return &RedisStore{redis: client, prefix: "alexa-logger:checkpoint:"}
}

func (s *RedisStore) Load(ctx context.Context, name string) (int64, error) {
	val, err := s.redis.Get(ctx, s.prefix+name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("checkpoint: load %s: %w", name, err)
	}
	last, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: decode %s: %w", name, err)
	}
	return last, nil
}

// maxScript sets the key only when the new value is larger.
var maxScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or tonumber(cur) < tonumber(ARGV[1]) then
	redis.call("SET", KEYS[1], ARGV[1])
	return 1
end
return 0
`)

func (s *RedisStore) Save(ctx context.Context, name string, last int64) error {
	if err := maxScript.Run(ctx, s.redis, []string{s.prefix + name}, last).Err(); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", name, err)
	}
	return nil
}
