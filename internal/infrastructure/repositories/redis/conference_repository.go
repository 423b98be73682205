package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"huddle/internal/core/domain"
	"huddle/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	conferencePrefix = "huddle:conference:"
	activeSetKey     = "huddle:conferences:active"
)

type RedisConferenceRepository struct {
	client *redis.Client
}

func NewRedisConferenceRepository(client *redis.Client) ports.ConferenceRepository {
	return &RedisConferenceRepository{client: client}
}

func (r *RedisConferenceRepository) key(id domain.RoomID) string {
	return conferencePrefix + string(id)
}

func (r *RedisConferenceRepository) Create(ctx context.Context, conf *domain.Conference) error {
	if conf.CreatedAt.IsZero() {
		conf.CreatedAt = time.Now()
	}
	data, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("failed to marshal conference: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(conf.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set conference in Redis: %w", err)
	}
	if !ok {
		return domain.ErrConferenceExists
	}

	if conf.Active {
		if err := r.client.SAdd(ctx, activeSetKey, string(conf.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add conference to active set: %w", err)
		}
	}
	return nil
}

func (r *RedisConferenceRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Conference, error) {
	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrConferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conference from Redis: %w", err)
	}

	var conf domain.Conference
	if err := json.Unmarshal([]byte(data), &conf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conference: %w", err)
	}
	return &conf, nil
}

func (r *RedisConferenceRepository) Update(ctx context.Context, conf *domain.Conference) error {
	data, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("failed to marshal conference: %w", err)
	}

	ok, err := r.client.SetXX(ctx, r.key(conf.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update conference in Redis: %w", err)
	}
	if !ok {
		return domain.ErrConferenceNotFound
	}

	// Keep the active set in step with the record.
	if conf.Active {
		err = r.client.SAdd(ctx, activeSetKey, string(conf.ID)).Err()
	} else {
		err = r.client.SRem(ctx, activeSetKey, string(conf.ID)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update active set: %w", err)
	}
	return nil
}

func (r *RedisConferenceRepository) Delete(ctx context.Context, id domain.RoomID) error {
	removed, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete conference from Redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrConferenceNotFound
	}
	if err := r.client.SRem(ctx, activeSetKey, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove conference from active set: %w", err)
	}
	return nil
}

func (r *RedisConferenceRepository) ListActive(ctx context.Context) ([]*domain.Conference, error) {
	ids, err := r.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active set: %w", err)
	}

	out := make([]*domain.Conference, 0, len(ids))
	for _, id := range ids {
		conf, err := r.GetByID(ctx, domain.RoomID(id))
		if err == domain.ErrConferenceNotFound {
			// Record expired out from under the set.
			r.client.SRem(ctx, activeSetKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conf)
	}
	return out, nil
}
