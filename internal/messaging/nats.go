package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/logger"
)

// NATSConfig holds the configuration for the NATS JetStream connection
type NATSConfig struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
}

// JetStream is the subset of jetstream.JetStream used by the publisher.
type JetStream interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes receipts to NATS JetStream.
type NATSPublisher struct {
	nc     *nats.Conn
	js     JetStream
	prefix string
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to NATS and ensures the receipt stream exists.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
	}

	return &NATSPublisher{nc: nc, js: js, prefix: cfg.SubjectPrefix}, nil
}

// NewNATSPublisherWithJetStream builds a publisher on an existing JetStream handle.
func NewNATSPublisherWithJetStream(js JetStream, prefix string) *NATSPublisher {
	return &NATSPublisher{js: js, prefix: prefix}
}

// Publish sends r as JSON. The receipt id is the JetStream message id, so the
// server drops a re-published receipt.
func (p *NATSPublisher) Publish(ctx context.Context, r *domain.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	subject := Subject(p.prefix, r)
	logger.Debug("Publishing receipt", zap.String("subject", subject), zap.Uint64("seq", r.Seq))

	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(r.ID)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	p.nc.Close()
}
