// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisHistory keeps the most recent cycle records in a capped Redis list,
// newest first.
type RedisHistory struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewRedisHistory connects to addr and checks the server answers.
func NewRedisHistory(ctx context.Context, addr, key string, maxLen int) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	log.Printf("history: connected to Redis at %s (key=%s, len=%d)", addr, key, maxLen)

	if maxLen <= 0 {
		maxLen = 1
	}
	return &RedisHistory{client: client, key: key, maxLen: int64(maxLen)}, nil
}

func (h *RedisHistory) Publish(ctx context.Context, rec CycleRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = h.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, h.key, payload)
		p.LTrim(ctx, h.key, 0, h.maxLen-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: push: %w", err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (h *RedisHistory) Recent(ctx context.Context, n int) ([]CycleRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := h.client.LRange(ctx, h.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history: range: %w", err)
	}
	out := make([]CycleRecord, 0, len(raw))
	for _, r := range raw {
		var rec CycleRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			log.Printf("history: skipping bad record: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}
