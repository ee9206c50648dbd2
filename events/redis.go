package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "provisions:changes"

// RedisBus is a Bus over Redis pub/sub.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

// NewRedisBus connects to addr and pings it.
func NewRedisBus(ctx context.Context, addr, channel string, log *zap.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBusWithClient(rdb, channel, log), nil
}

// NewRedisBusWithClient wraps an existing client.
func NewRedisBusWithClient(rdb *redis.Client, channel string, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log.Named("redis-bus")}
}

func (b *RedisBus) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes and calls onMsg for every message until ctx ends.
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad bus payload", zap.Error(err))
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
