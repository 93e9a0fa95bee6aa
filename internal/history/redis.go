package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisStore keeps each conversation in a list of JSON messages.
// Data model:
//   - prefix+":history:"+user => list of JSON(Message), oldest first
//   - prefix+":users"         => set of user ids with a conversation
type RedisStore struct {
	client      *redis.Client
	prefix      string
	maxMessages int
	ttl         time.Duration
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr        string
	DB          int
	Prefix      string
	MaxMessages int
	TTL         time.Duration
}

// NewRedisStore connects to redis and checks the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	prefix := strings.TrimSuffix(opts.Prefix, ":")
	if prefix == "" {
		prefix = "claimwise"
	}
	return &RedisStore{client: client, prefix: prefix, maxMessages: opts.MaxMessages, ttl: opts.TTL}, nil
}

func (s *RedisStore) usersKey() string               { return s.prefix + ":users" }
func (s *RedisStore) historyKey(userID string) string { return s.prefix + ":history:" + userID }

func (s *RedisStore) Append(ctx context.Context, userID string, msgs ...Message) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshalling message: %w", err)
		}
		values[i] = string(b)
	}

	key := s.historyKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.maxMessages > 0 {
			pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.SAdd(ctx, s.usersKey(), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending history for %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", userID, err)
	}
	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.historyKey(userID))
		pipe.SRem(ctx, s.usersKey(), userID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("clearing history for %s: %w", userID, err)
	}
	return del.Val() > 0, nil
}

// Users drops ids whose conversation expired from the user set.
func (s *RedisStore) Users(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	users := make([]string, 0, len(members))
	for _, u := range members {
		n, err := s.client.Exists(ctx, s.historyKey(u)).Result()
		if err != nil {
			return nil, fmt.Errorf("checking history for %s: %w", u, err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.usersKey(), u)
			continue
		}
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
