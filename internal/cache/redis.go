package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bus-monitor/internal/models"

	"github.com/go-redis/redis/v8"
)

const recentAlertsLimit = 1000

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisClient(ctx context.Context, opts Options) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   3,
	})

	// fail fast if the server is unreachable
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisClient{
		client: client,
		ttl:    ttl,
	}, nil
}

func alertKey(alert models.AlertEvent) string {
	return fmt.Sprintf("alert:%s:%d", alert.SessionID, alert.Timestamp.UnixNano())
}

func recentKey(sessionID string) string {
	return fmt.Sprintf("alerts:%s:recent", sessionID)
}

// StoreAlert saves the alert with a TTL and pushes its key onto the
// session's capped recent list.
func (r *RedisClient) StoreAlert(ctx context.Context, alert models.AlertEvent) error {
	key := alertKey(alert)

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store alert in Redis: %w", err)
	}

	listKey := recentKey(alert.SessionID)
	if err := r.client.LPush(ctx, listKey, key).Err(); err != nil {
		return fmt.Errorf("failed to update recent alerts list: %w", err)
	}

	if err := r.client.LTrim(ctx, listKey, 0, recentAlertsLimit-1).Err(); err != nil {
		return fmt.Errorf("failed to trim recent alerts list: %w", err)
	}
	if err := r.client.Expire(ctx, listKey, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set recent alerts list TTL: %w", err)
	}

	return nil
}

// GetRecentAlerts returns up to count alerts, newest first. Expired or
// unreadable entries are skipped.
func (r *RedisClient) GetRecentAlerts(ctx context.Context, sessionID string, count int64) ([]models.AlertEvent, error) {
	keys, err := r.client.LRange(ctx, recentKey(sessionID), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent alert keys: %w", err)
	}

	var alerts []models.AlertEvent
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var alert models.AlertEvent
		if err := json.Unmarshal([]byte(data), &alert); err != nil {
			continue
		}

		alerts = append(alerts, alert)
	}

	return alerts, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
