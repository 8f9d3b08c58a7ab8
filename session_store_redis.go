package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix     = "session:"
	redisUserSessionPrefix = "session:user:"
)

// RedisSessionStore keeps sessions as JSON values expiring with the
// session, plus one set per user listing its session ids.
type RedisSessionStore struct {
	client  *redis.Client
	NowFunc func() time.Time
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a session store on top of client
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, NowFunc: time.Now}
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ttl := session.ExpiresAt.Sub(s.NowFunc())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	userKey := redisUserSessionPrefix + session.UserID.String()

	// the user set lives as long as its longest session
	current, err := s.client.TTL(ctx, userKey).Result()
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionPrefix+session.ID, data, ttl)
		pipe.SAdd(ctx, userKey, session.ID)
		if current < ttl {
			pipe.Expire(ctx, userKey, ttl)
		}
		return nil
	})
	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return nil
	case err != nil:
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionPrefix+id)
		pipe.SRem(ctx, redisUserSessionPrefix+session.UserID.String(), id)
		return nil
	})
	return err
}

func (s *RedisSessionStore) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	userKey := redisUserSessionPrefix + userID.String()

	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, redisSessionPrefix+id)
	}
	keys = append(keys, userKey)

	return s.client.Del(ctx, keys...).Err()
}
