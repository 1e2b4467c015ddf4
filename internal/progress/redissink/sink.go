// Package redissink publishes progress snapshots on a Redis channel and keeps the latest
// snapshot of each run under "{channel}:{importID}".
package redissink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mrlokans/courseimport/internal/progress"
)

const latestTTL = 24 * time.Hour

// Client is the subset of redis.Cmdable used by Sink
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type Sink struct {
	client  Client
	channel string
}

func New(client Client, channel string) *Sink {
	return &Sink{client: client, channel: channel}
}

// Connect parses url, verifies connectivity and returns the raw client
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// LatestKey is where the most recent snapshot of a run is stored
func (s *Sink) LatestKey(importID string) string {
	return s.channel + ":" + importID
}

func (s *Sink) Report(ctx context.Context, snap progress.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.LatestKey(snap.ImportID), data, latestTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

var _ progress.Reporter = (*Sink)(nil)
