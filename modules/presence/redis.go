package presence

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/redis/go-redis/v9"
)

// sweepScript removes expired members of one room and drops the room from
// the index once it is empty. Returns the number of removed members.
var sweepScript = redis.NewScript(`
	local room_key = KEYS[1]
	local index_key = KEYS[2]
	local now = ARGV[1]
	local room_id = ARGV[2]

	local removed = redis.call('ZREMRANGEBYSCORE', room_key, '-inf', '(' .. now)
	if redis.call('ZCARD', room_key) == 0 then
		redis.call('SREM', index_key, room_id)
	end
	return removed
`)

// RedisStore keeps presence in Redis so several gateway processes share it.
// Each room is a sorted set of user ids scored by expiry time in unix ms.
type RedisStore struct {
	client *redis.Client
	prefix string
	window time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string, window time.Duration) *RedisStore {
	if window <= 0 {
		window = DefaultHeartbeatWindow
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		window: window,
		now:    time.Now,
	}
}

func (s *RedisStore) roomKey(roomID domain.RoomID) string {
	return s.prefix + "room:" + roomID.String()
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "rooms"
}

func (s *RedisStore) MarkOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	expiry := s.now().Add(s.window).UnixMilli()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.roomKey(roomID), redis.Z{Score: float64(expiry), Member: userID.String()})
		pipe.SAdd(ctx, s.indexKey(), roomID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark online: %w", err)
	}
	return nil
}

func (s *RedisStore) MarkOffline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if err := s.client.ZRem(ctx, s.roomKey(roomID), userID.String()).Err(); err != nil {
		return fmt.Errorf("failed to mark offline: %w", err)
	}
	return nil
}

func (s *RedisStore) IsOnline(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	score, err := s.client.ZScore(ctx, s.roomKey(roomID), userID.String()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read presence: %w", err)
	}
	return int64(score) >= s.now().UnixMilli(), nil
}

func (s *RedisStore) Snapshot(ctx context.Context, roomID domain.RoomID, userIDs []domain.UserID) ([]domain.PresenceStatus, error) {
	result := make([]domain.PresenceStatus, 0, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	members := make([]string, len(userIDs))
	for i, id := range userIDs {
		members[i] = id.String()
	}
	// missing members score 0, which reads as expired
	scores, err := s.client.ZMScore(ctx, s.roomKey(roomID), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence snapshot: %w", err)
	}

	now := s.now().UnixMilli()
	for i, id := range userIDs {
		result = append(result, domain.PresenceStatus{
			UserID:   id,
			IsOnline: int64(scores[i]) >= now,
		})
	}
	return result, nil
}

func (s *RedisStore) Sweep(ctx context.Context) ([]domain.RoomID, error) {
	roomIDs, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence rooms: %w", err)
	}

	now := strconv.FormatInt(s.now().UnixMilli(), 10)
	var changed []domain.RoomID
	for _, raw := range roomIDs {
		roomID, err := domain.ParseRoomID(raw)
		if err != nil {
			s.client.SRem(ctx, s.indexKey(), raw)
			continue
		}
		removed, err := sweepScript.Run(ctx, s.client,
			[]string{s.roomKey(roomID), s.indexKey()}, now, raw).Int64()
		if err != nil {
			return changed, fmt.Errorf("failed to sweep room %s: %w", raw, err)
		}
		if removed > 0 {
			changed = append(changed, roomID)
		}
	}
	slices.Sort(changed)
	return changed, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
