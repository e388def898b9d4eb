package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Suja2004/WebRTC/internal/core/domain"
	"github.com/Suja2004/WebRTC/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRegistryRepository holds live presence only; entries carry the
// same ephemeral semantics as the memory backend (nothing survives the
// participants themselves). It exists so multiple signal nodes can share
// one registry.
type RedisRegistryRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistryRepository(client *redis.Client) ports.RegistryRepository {
	return &RedisRegistryRepository{
		client: client,
		prefix: "signal:",
	}
}

func (r *RedisRegistryRepository) participantKey(id domain.ParticipantID) string {
	return r.prefix + "participant:" + string(id)
}

func (r *RedisRegistryRepository) roomKey(room domain.RoomID) string {
	return fmt.Sprintf("%sroom:%s:members", r.prefix, room)
}

func (r *RedisRegistryRepository) roomsKey() string {
	return r.prefix + "rooms"
}

func (r *RedisRegistryRepository) participantsKey() string {
	return r.prefix + "participants"
}

func (r *RedisRegistryRepository) Join(ctx context.Context, p *domain.Participant) ([]*domain.Participant, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal participant: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.participantKey(p.ID), data, 0)
	pipe.SAdd(ctx, r.roomKey(p.Room), string(p.ID))
	pipe.SAdd(ctx, r.roomsKey(), string(p.Room))
	pipe.SAdd(ctx, r.participantsKey(), string(p.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to join room in Redis: %w", err)
	}

	members, err := r.Members(ctx, p.Room)
	if err != nil {
		return nil, err
	}

	others := members[:0]
	for _, m := range members {
		if m.ID != p.ID {
			others = append(others, m)
		}
	}
	return others, nil
}

func (r *RedisRegistryRepository) Leave(ctx context.Context, id domain.ParticipantID, room domain.RoomID) (*domain.Participant, []*domain.Participant, error) {
	removedCount, err := r.client.SRem(ctx, r.roomKey(room), string(id)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to remove member from room set: %w", err)
	}
	if removedCount == 0 {
		return nil, nil, domain.ErrParticipantNotFound
	}

	removed, err := r.Get(ctx, id)
	if err != nil {
		removed = &domain.Participant{ID: id, Room: room}
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.participantKey(id))
	pipe.SRem(ctx, r.participantsKey(), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to delete participant from Redis: %w", err)
	}

	size, err := r.client.SCard(ctx, r.roomKey(room)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read room size: %w", err)
	}
	if size == 0 {
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.roomKey(room))
		pipe.SRem(ctx, r.roomsKey(), string(room))
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to delete empty room: %w", err)
		}
		return removed, nil, nil
	}

	remaining, err := r.Members(ctx, room)
	if err != nil {
		return nil, nil, err
	}
	return removed, remaining, nil
}

func (r *RedisRegistryRepository) Disconnect(ctx context.Context, id domain.ParticipantID) (*domain.Participant, []*domain.Participant, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return r.Leave(ctx, id, p.Room)
}

func (r *RedisRegistryRepository) Get(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	data, err := r.client.Get(ctx, r.participantKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant from Redis: %w", err)
	}

	var p domain.Participant
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participant: %w", err)
	}
	return &p, nil
}

func (r *RedisRegistryRepository) Members(ctx context.Context, room domain.RoomID) ([]*domain.Participant, error) {
	ids, err := r.client.SMembers(ctx, r.roomKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read room members: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrRoomNotFound
	}

	members := make([]*domain.Participant, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, domain.ParticipantID(id))
		if err != nil {
			// Stale set entry; skip rather than fail the whole read.
			continue
		}
		members = append(members, p)
	}
	return members, nil
}

func (r *RedisRegistryRepository) SetMediaState(ctx context.Context, id domain.ParticipantID, kind domain.TrackKind, on bool) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	switch kind {
	case domain.TrackKindVideo:
		p.VideoOn = on
	case domain.TrackKindAudio:
		p.AudioOn = on
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal participant: %w", err)
	}
	if err := r.client.Set(ctx, r.participantKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update participant in Redis: %w", err)
	}
	return nil
}

func (r *RedisRegistryRepository) Stats(ctx context.Context) (int, int, error) {
	rooms, err := r.client.SCard(ctx, r.roomsKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	participants, err := r.client.SCard(ctx, r.participantsKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return int(rooms), int(participants), nil
}
