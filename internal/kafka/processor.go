// Package kafka wires the membership workflow to the Kafka event bus.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	membership "github.com/paycheck/paycheck-backend/events/modules/membership"
	"github.com/paycheck/paycheck-backend/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// NewDialer returns the dialer readers use. SASL/PLAIN over TLS is enabled
// when credentials are configured; otherwise it dials a local broker.
func NewDialer(cfg config.KafkaConfig) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cfg.APIKey != "" && cfg.APISecret != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: cfg.APIKey,
			Password: cfg.APISecret,
		}
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return dialer
}

// NewTransport returns the transport writers use, with the same security
// settings as NewDialer. It returns nil for a local broker.
func NewTransport(cfg config.KafkaConfig) kafka.RoundTripper {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil
	}
	return &kafka.Transport{
		SASL: plain.Mechanism{
			Username: cfg.APIKey,
			Password: cfg.APISecret,
		},
		TLS: &tls.Config{MinVersion: tls.VersionTLS12},
	}
}

// NewProducer returns a producer for the events topic.
func NewProducer(cfg config.KafkaConfig) *membership.MembershipProducer {
	return membership.NewMembershipProducer(cfg.Brokers, cfg.EventsTopic, NewTransport(cfg))
}

// RunCommandProcessor checks that the brokers are reachable and then consumes
// the commands topic in the background until ctx is cancelled.
func RunCommandProcessor(ctx context.Context, cfg config.KafkaConfig, service membership.MembershipService, logger *zap.Logger) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	dialer := NewDialer(cfg)

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 2), ctx)
	err := backoff.Retry(func() error {
		attempt++
		logger.Info("Kafka connection attempt", zap.Int("attempt", attempt), zap.String("broker", cfg.Brokers[0]))
		conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}, policy)
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.CommandsTopic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	go func() {
		defer reader.Close()

		logger.Info("Kafka command processor started", zap.String("topic", cfg.CommandsTopic))

		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Info("Kafka command processor stopped")
					return
				}
				logger.Warn("Failed to read command", zap.Error(err))
				continue
			}

			if _, err := membership.HandleMembershipCommand(ctx, msg.Value, service, logger); err != nil {
				logger.Error("Failed to process command",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
			}
		}
	}()

	return nil
}
