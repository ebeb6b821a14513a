//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"podcaster/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishEpisode() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-episode",
		RoutingKey: "test-routing-key-episode",
		QueueName:  "test-queue-episode",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	now := time.Now().UTC().Truncate(time.Millisecond)
	result := &domain.GenerationResult{
		Episode: &domain.Episode{
			ID:       "2026-08-30-1756500000000",
			Title:    "Big Model Week",
			AudioURL: "https://bucket.example.com/audio/2026-08-30-full-1756500000000.mp3",
			Duration: 142,
			Topics:   []string{"models", "research"},
			Sources: []domain.Citation{
				{Kind: domain.KindNews, Title: "Launch", URL: "https://example.com/a"},
			},
			CreatedAt: now,
		},
	}

	err = pub.Publish(s.ctx, result)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)

	var received ArtifactMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(domain.ArtifactEpisode, received.Kind)
	s.Require().NotNil(received.Episode)
	s.Nil(received.Teaser)
	s.Equal("2026-08-30-1756500000000", received.Episode.ID)
	s.Equal("Big Model Week", received.Episode.Title)
	s.Equal(142, received.Episode.Duration)
	s.Len(received.Episode.Sources, 1)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishTeaser() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-teaser",
		RoutingKey: "test-routing-key-teaser",
		QueueName:  "test-queue-teaser",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	now := time.Now().UTC().Truncate(time.Millisecond)
	result := &domain.GenerationResult{
		Teaser: &domain.Teaser{
			ID:        "2026-08-30-1756500000001",
			Title:     "Quick Hit",
			AudioURL:  "https://bucket.example.com/audio/2026-08-30-teaser-1756500000001.mp3",
			Duration:  5,
			CreatedAt: now,
		},
		Script: "Breaking news in fifteen seconds.",
	}

	err = pub.Publish(s.ctx, result)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	var received ArtifactMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal(domain.ArtifactTeaser, received.Kind)
	s.Require().NotNil(received.Teaser)
	s.Nil(received.Episode)
	s.Equal(5, received.Teaser.Duration)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
