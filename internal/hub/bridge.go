package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"draftroom/internal/protocol"
)

// Bridge relays room events between server instances over Redis pub/sub,
// one channel per draft room. Each instance tags what it publishes so it
// can skip its own messages on the way back in.
type Bridge struct {
	client     *redis.Client
	instanceID string
	prefix     string
}

type bridgeEnvelope struct {
	Origin  string           `json:"origin"`
	Message protocol.Message `json:"message"`
}

// NewBridge connects to Redis and verifies the connection.
func NewBridge(redisURL string) (*Bridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Bridge{
		client:     client,
		instanceID: uuid.NewString(),
		prefix:     "room:",
	}, nil
}

// NewBridgeWithClient creates a bridge from an existing Redis client.
func NewBridgeWithClient(client *redis.Client) *Bridge {
	return &Bridge{
		client:     client,
		instanceID: uuid.NewString(),
		prefix:     "room:",
	}
}

func (b *Bridge) channel(room string) string {
	return b.prefix + room
}

// Publish relays one room event to the other instances.
func (b *Bridge) Publish(ctx context.Context, room string, msg protocol.Message) error {
	payload, err := json.Marshal(bridgeEnvelope{Origin: b.instanceID, Message: msg})
	if err != nil {
		return fmt.Errorf("marshal bridge envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(room), payload).Err(); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}

// Subscribe delivers events published by other instances for the room to
// apply, until the returned stop function is called. Envelopes that fail
// to decode are dropped.
func (b *Bridge) Subscribe(room string, apply func(protocol.Message)) (stop func()) {
	pubsub := b.client.Subscribe(context.Background(), b.channel(room))
	go func() {
		for msg := range pubsub.Channel() {
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("hub: bridge decode on %s: %v", room, err)
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			apply(env.Message)
		}
	}()
	return func() {
		if err := pubsub.Close(); err != nil {
			log.Printf("hub: close bridge subscription %s: %v", room, err)
		}
	}
}

// Close releases the Redis connection.
func (b *Bridge) Close() error {
	return b.client.Close()
}

// Ping checks if Redis is reachable.
func (b *Bridge) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
