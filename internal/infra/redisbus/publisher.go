// Package redisbus bridges engine notifications to other processes through
// a Redis pub/sub channel.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rent_autopay/internal/domain/notification"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Message is the JSON shape published for every notification.
type Message struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Priority   string         `json:"priority"`
	Timestamp  time.Time      `json:"timestamp"`
	Read       bool           `json:"read"`
	ActionURL  string         `json:"action_url,omitempty"`
	ActionText string         `json:"action_text,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func FromNotification(n *notification.Notification) Message {
	return Message{
		ID:         n.ID,
		TenantID:   n.TenantID,
		Type:       string(n.Type),
		Title:      n.Title,
		Message:    n.Message,
		Priority:   string(n.Priority),
		Timestamp:  n.Timestamp,
		Read:       n.Read,
		ActionURL:  n.ActionURL,
		ActionText: n.ActionText,
		Data:       n.Data,
	}
}

// publisher is the part of *redis.Client the bridge uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher is a bus subscriber that republishes notifications on a channel.
type Publisher struct {
	client  publisher
	channel string
	logger  *logrus.Entry
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		PoolSize:        10,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func NewPublisher(client publisher, channel string, logger *logrus.Entry) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  logger.WithField("component", "redis_publisher"),
	}
}

// Handle has the bus handler signature; register it with NotificationBus.Subscribe.
func (p *Publisher) Handle(ctx context.Context, n *notification.Notification) error {
	payload, err := json.Marshal(FromNotification(n))
	if err != nil {
		return fmt.Errorf("failed to encode notification %s: %w", n.ID, err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", n.ID, err)
	}
	p.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"channel":         p.channel,
		"receivers":       receivers,
	}).Debug("Notification published")
	return nil
}
