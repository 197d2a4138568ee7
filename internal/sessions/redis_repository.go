package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session as a hash under <prefix><refresh> that
// expires with the session. The refresh tokens of one account are indexed in
// a set under <prefix>user:<userID> so they can be revoked together.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string { return r.prefix + refresh }

func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	// Redis must not keep an already expired session around
	expireAt := s.ExpiresAt
	if floor := now.Add(time.Second); expireAt.Before(floor) {
		expireAt = floor
	}
	key, idx := r.key(s.RefreshToken), r.userKey(s.UserID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"userId", s.UserID,
			"email", s.Email,
			"createdAt", s.CreatedAt.Format(time.RFC3339Nano),
			"expiresAt", s.ExpiresAt.Format(time.RFC3339Nano),
		)
		p.ExpireAt(ctx, key, expireAt)
		p.SAdd(ctx, idx, s.RefreshToken)
		p.ExpireAt(ctx, idx, expireAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session for %s: %w", s.UserID, err)
	}
	return nil
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key(refresh)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	s := &Session{RefreshToken: refresh, UserID: fields["userId"], Email: fields["email"]}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["createdAt"]); err != nil {
		return nil, fmt.Errorf("session createdAt: %w", err)
	}
	if s.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expiresAt"]); err != nil {
		return nil, fmt.Errorf("session expiresAt: %w", err)
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = r.DeleteByRefresh(ctx, refresh)
		return nil, nil
	}
	return s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	userID, err := r.client.HGet(ctx, r.key(refresh), "userId").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key(refresh))
		p.SRem(ctx, r.userKey(userID), refresh)
		return nil
	})
	return err
}

// DeleteByUser removes every session of userID and reports how many were
// still live.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	idx := r.userKey(userID)
	refreshes, err := r.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(refreshes))
	for _, rt := range refreshes {
		keys = append(keys, r.key(rt))
	}
	var removed *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = p.Del(ctx, keys...)
		}
		p.Del(ctx, idx)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}
