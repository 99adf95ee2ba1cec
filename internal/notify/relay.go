package notify

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
)

type envelope struct {
	Origin       string       `json:"origin"`
	Notification Notification `json:"notification"`
}

// Relay shares notifications between server instances over a redis
// channel. Local delivery happens immediately; messages this instance
// published are ignored when they come back.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	log     *logger.Logger
}

func NewRelay(client *redis.Client, channel string, hub *Hub, log *logger.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		log:     log,
	}
}

func (r *Relay) Publish(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.hub.now()
	}
	r.hub.Publish(n)

	data, err := json.Marshal(envelope{Origin: r.origin, Notification: n})
	if err != nil {
		r.log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Failed to encode relayed notification")
		return
	}
	go func() {
		if err := r.client.Publish(context.Background(), r.channel, data).Err(); err != nil {
			r.log.WithFields(map[string]interface{}{
				"channel": r.channel,
				"error":   err.Error(),
			}).Warn("Failed to relay notification")
		}
	}()
}

// Run forwards notifications from other instances into the local hub
// until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Discarding malformed relayed notification")
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.hub.Publish(env.Notification)
		}
	}
}
