package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
)

// RedisStore implementa Store sobre Redis para despliegues multi-instancia.
//
// Layout de keys:
//
//	{prefix}att:{identifier}  ZSET  score = unixnano del intento
//	{prefix}cf:{account}      STRING contador de fallos consecutivos
//	{prefix}lock:{account}    STRING unixnano de locked_until, TTL = duración
type RedisStore struct {
	client *rdb.Client
	prefix string
}

func NewRedisStore(client *rdb.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) attKey(id string) string   { return s.prefix + "att:" + id }
func (s *RedisStore) cfKey(acc string) string   { return s.prefix + "cf:" + acc }
func (s *RedisStore) lockKey(acc string) string { return s.prefix + "lock:" + acc }

func (s *RedisStore) AppendAttempt(ctx context.Context, a Attempt) (int, error) {
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.attKey(a.Identifier), rdb.Z{
		Score:  float64(a.At.UnixNano()),
		Member: uuid.NewString(),
	})
	// ventana máxima de retención; el prune fino lo hace CountSince
	pipe.Expire(ctx, s.attKey(a.Identifier), 24*time.Hour)

	var incr *rdb.IntCmd
	if a.Success {
		pipe.Del(ctx, s.cfKey(a.Account))
	} else {
		// INCR es atómico: dos requests concurrentes ven valores distintos
		incr = pipe.Incr(ctx, s.cfKey(a.Account))
		pipe.Expire(ctx, s.cfKey(a.Account), 24*time.Hour)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	if incr == nil {
		return 0, nil
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	key := s.attKey(identifier)
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(since.UnixNano()-1, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

func (s *RedisStore) OldestSince(ctx context.Context, identifier string, since time.Time) (time.Time, bool, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, s.attKey(identifier), &rdb.ZRangeBy{
		Min:   strconv.FormatInt(since.UnixNano(), 10),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, err
	}
	if len(zs) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(zs[0].Score)), true, nil
}

func (s *RedisStore) ClearAttempts(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, s.attKey(identifier)).Err()
}

func (s *RedisStore) SetLockout(ctx context.Context, account string, until time.Time) error {
	return s.client.Set(ctx, s.lockKey(account),
		strconv.FormatInt(until.UnixNano(), 10), time.Until(until)).Err()
}

func (s *RedisStore) GetLockout(ctx context.Context, account string) (time.Time, bool, error) {
	v, err := s.client.Get(ctx, s.lockKey(account)).Result()
	if errors.Is(err, rdb.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(0, n), true, nil
}

func (s *RedisStore) ClearLockout(ctx context.Context, account string) error {
	return s.client.Del(ctx, s.lockKey(account), s.cfKey(account)).Err()
}
