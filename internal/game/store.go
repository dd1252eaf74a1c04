package game

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marsdevs/chess-arena/internal/domain"
)

// Live records expire from Redis a day after their last write; finished
// games live on in the archive.
const liveGameTTL = 24 * time.Hour

// Store keeps live game records as JSON blobs in Redis, with a per-user
// index set so listings do not scan the keyspace.
type Store struct {
	rdb *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for game store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Client exposes the underlying connection so sibling managers can run
// multi-key transactions against the same instance.
func (s *Store) Client() *redis.Client { return s.rdb }

func gameKey(id string) string    { return "arena:game:" + strings.TrimSpace(id) }
func idxUserKey(id string) string { return "arena:game:index:user:" + strings.TrimSpace(id) }

func (s *Store) save(ctx context.Context, g *Record) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, gameKey(g.ID), raw, liveGameTTL).Err()
}

func (s *Store) get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g Record
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// writeInPipe queues the record write plus index updates on an open
// pipeline, so callers can commit it atomically with other keys.
func writeInPipe(ctx context.Context, pipe redis.Pipeliner, g *Record) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe.Set(ctx, gameKey(g.ID), raw, liveGameTTL)
	for _, userID := range participants(g) {
		key := idxUserKey(userID)
		pipe.SAdd(ctx, key, g.ID)
		pipe.Expire(ctx, key, liveGameTTL)
	}
	return nil
}

func participants(g *Record) []string {
	ids := []string{g.PlayerID}
	if g.OpponentType == domain.OpponentStudent && strings.TrimSpace(g.OpponentID) != "" {
		ids = append(ids, g.OpponentID)
	}
	return ids
}

func (s *Store) indexParticipants(ctx context.Context, g *Record) error {
	for _, userID := range participants(g) {
		key := idxUserKey(userID)
		if err := s.rdb.SAdd(ctx, key, g.ID).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, key, liveGameTTL).Err()
	}
	return nil
}

// gamesByUser loads every indexed game for the user, most recently
// updated first. Ids whose blob already expired are skipped.
func (s *Store) gamesByUser(ctx context.Context, userID string) ([]*Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Record
	for _, id := range ids {
		g, gerr := s.get(ctx, id)
		if gerr != nil || g == nil {
			continue
		}
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

// ParseRedisURL converts a redis:// or rediss:// URL into client
// options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
