package action

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	MailerBackendLog   = "log"
	MailerBackendRedis = "redis"

	// DefaultOutboxKey Redis 发件箱列表键
	DefaultOutboxKey = "flowrunner:outbox"
)

// Message is one outgoing email.
type Message struct {
	RunID     string    `json:"run_id,omitempty"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Mailer delivers messages produced by email_sender.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// LogMailer only logs the message; delivery always succeeds.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.With(zap.String("mailer", MailerBackendLog))}
}

func (m *LogMailer) Name() string { return MailerBackendLog }

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("sending email",
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)))
	return nil
}

// RedisMailer pushes messages as JSON onto a Redis list for a separate
// delivery worker.
type RedisMailer struct {
	client redis.Cmdable
	key    string
	logger *zap.Logger
}

func NewRedisMailer(client redis.Cmdable, key string, logger *zap.Logger) *RedisMailer {
	if key == "" {
		key = DefaultOutboxKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMailer{client: client, key: key, logger: logger.With(zap.String("mailer", MailerBackendRedis))}
}

func (m *RedisMailer) Name() string { return MailerBackendRedis }

func (m *RedisMailer) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := m.client.RPush(ctx, m.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	m.logger.Debug("email queued", zap.String("key", m.key), zap.String("recipient", msg.Recipient))
	return nil
}
