package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"salonbook/internal/model"
)

const (
	defaultKeyPrefix = "salonbook:hold"
	// keyGrace keeps a key around a little past the hold expiry so the ledger,
	// not redis, is the one that decides a hold has expired.
	keyGrace = time.Minute
)

// RedisStore keeps holds in redis so several instances share one ledger.
//
// Layout:
//
//	<prefix>:session:<sessionID>  JSON hold, TTL = hold lifetime + grace
//	<prefix>:staff:<staffID>      sorted set of sessionIDs scored by expiry (unix ms)
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a store; an empty prefix uses "salonbook:hold".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + ":session:" + sessionID
}

func (s *RedisStore) staffKey(staffID string) string {
	return s.prefix + ":staff:" + staffID
}

func (s *RedisStore) BySession(ctx context.Context, sessionID string) (*model.ReservationHold, error) {
	raw, err := s.rdb.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get hold: %w", err)
	}

	var h model.ReservationHold
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decode hold: %w", err)
	}
	return &h, nil
}

func (s *RedisStore) ByStaff(ctx context.Context, staffID string) ([]model.ReservationHold, error) {
	sessions, err := s.rdb.ZRange(ctx, s.staffKey(staffID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list staff holds: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	keys := make([]string, len(sessions))
	for i, id := range sessions {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load staff holds: %w", err)
	}

	out := make([]model.ReservationHold, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // key already gone
		}
		var h model.ReservationHold
		if err := json.Unmarshal([]byte(str), &h); err != nil {
			return nil, fmt.Errorf("decode hold: %w", err)
		}
		// The session may have moved its hold to another staff member.
		if h.StaffID != staffID {
			continue
		}
		out = append(out, h)
	}
	sortHolds(out)
	return out, nil
}

func (s *RedisStore) Put(ctx context.Context, hold model.ReservationHold) error {
	prev, err := s.BySession(ctx, hold.SessionID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("encode hold: %w", err)
	}
	ttl := hold.ExpiresAt.Sub(hold.CreatedAt) + keyGrace

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil && prev.StaffID != hold.StaffID {
			pipe.ZRem(ctx, s.staffKey(prev.StaffID), hold.SessionID)
		}
		pipe.Set(ctx, s.sessionKey(hold.SessionID), data, ttl)
		pipe.ZAdd(ctx, s.staffKey(hold.StaffID), redis.Z{
			Score:  float64(hold.ExpiresAt.UnixMilli()),
			Member: hold.SessionID,
		})
		pipe.Expire(ctx, s.staffKey(hold.StaffID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store hold: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) (*model.ReservationHold, error) {
	h, err := s.BySession(ctx, sessionID)
	if err != nil || h == nil {
		return nil, err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sessionID))
		pipe.ZRem(ctx, s.staffKey(h.StaffID), sessionID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete hold: %w", err)
	}
	return h, nil
}

func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	maxScore := strconv.FormatInt(now.UnixMilli(), 10)
	removed := 0

	iter := s.rdb.Scan(ctx, 0, s.prefix+":staff:*", 100).Iterator()
	for iter.Next(ctx) {
		staffKey := iter.Val()
		sessions, err := s.rdb.ZRangeByScore(ctx, staffKey, &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
		if err != nil {
			return removed, fmt.Errorf("list expired holds: %w", err)
		}
		for _, sessionID := range sessions {
			h, err := s.BySession(ctx, sessionID)
			if err != nil {
				return removed, err
			}
			owned := h != nil && staffKey == s.staffKey(h.StaffID)
			if owned && !h.ExpiredAt(now) {
				continue
			}
			if owned {
				if err := s.rdb.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
					return removed, fmt.Errorf("delete expired hold: %w", err)
				}
				removed++
			}
			if err := s.rdb.ZRem(ctx, staffKey, sessionID).Err(); err != nil {
				return removed, fmt.Errorf("trim staff index: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan hold index: %w", err)
	}
	return removed, nil
}
