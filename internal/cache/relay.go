package cache

import (
	"context"
	"encoding/json"
)

// relayChannel is the single Redis pub/sub channel carrying hub broadcasts
// between processes. Group name and origin travel in the envelope.
const relayChannel = "hub:broadcast"

type relayEnvelope struct {
	Origin  string          `json:"origin"`
	Group   string          `json:"group"`
	Payload json.RawMessage `json:"payload"`
}

// BroadcastRelay fans presence-hub broadcasts out to sibling processes over
// Redis pub/sub. The hub treats it as an injected dependency; a single-process
// deployment runs without one.
type BroadcastRelay struct {
	cache *RedisCache
}

func NewBroadcastRelay(c *RedisCache) *BroadcastRelay {
	return &BroadcastRelay{cache: c}
}

// Publish sends one group broadcast to the relay channel.
func (r *BroadcastRelay) Publish(ctx context.Context, origin, group string, payload []byte) error {
	env, err := json.Marshal(relayEnvelope{Origin: origin, Group: group, Payload: payload})
	if err != nil {
		return err
	}
	return r.cache.Client.Publish(ctx, relayChannel, env).Err()
}

// Listen delivers remote broadcasts to fn until ctx is done. Envelopes from
// self are skipped (the originating process already delivered locally);
// malformed envelopes are skipped too.
func (r *BroadcastRelay) Listen(ctx context.Context, self string, fn func(group string, payload []byte)) error {
	sub := r.cache.Client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			if env.Origin == self {
				continue
			}
			fn(env.Group, env.Payload)
		}
	}
}
