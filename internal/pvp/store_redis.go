package pvp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 24 * time.Hour

// RedisStore keeps one JSON document per session plus a digest -> seat index.
// Every key carries the session TTL, refreshed on each save.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) keySession(id string) string { return "board:session:" + strings.TrimSpace(id) }
func (s *RedisStore) keyToken(digest string) string {
	return "board:token:" + strings.TrimSpace(digest)
}
func (s *RedisStore) keyIndex() string { return "board:sessions" }

func (s *RedisStore) Save(ctx context.Context, rec *SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keySession(rec.ID), raw, s.ttl)
	pipe.SAdd(ctx, s.keyIndex(), rec.ID)
	pipe.Expire(ctx, s.keyIndex(), s.ttl)
	for _, sr := range rec.Seats {
		if sr.TokenDigest != "" {
			pipe.Expire(ctx, s.keyToken(sr.TokenDigest), s.ttl)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, id string) (*SessionRecord, error) {
	raw, err := s.rdb.Get(ctx, s.keySession(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the ids of sessions that still exist. Expired ids are pruned
// from the index.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.rdb.Exists(ctx, s.keySession(id)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = s.rdb.SRem(ctx, s.keyIndex(), id).Err()
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *RedisStore) BindToken(ctx context.Context, digest string, ref TokenRef) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyToken(digest), raw, s.ttl).Err()
}

func (s *RedisStore) LookupToken(ctx context.Context, digest string) (TokenRef, bool, error) {
	raw, err := s.rdb.Get(ctx, s.keyToken(digest)).Bytes()
	if err == redis.Nil {
		return TokenRef{}, false, nil
	}
	if err != nil {
		return TokenRef{}, false, err
	}
	var ref TokenRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return TokenRef{}, false, err
	}
	return ref, true, nil
}
