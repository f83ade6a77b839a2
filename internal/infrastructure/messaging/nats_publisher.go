package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/logger"

	"go.uber.org/zap"
)

// NATSPublisher emits completed score results on the result subject.
// It shares the consumer's connection so one NATS session serves both
// directions.
type NATSPublisher struct {
	consumer *NATSConsumer
	config   *config.NATSConfig
	logger   *logger.Logger
}

// NewNATSPublisher creates a new NATS publisher over the consumer's
// connection
func NewNATSPublisher(consumer *NATSConsumer, cfg *config.NATSConfig, logger *logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		consumer: consumer,
		config:   cfg,
		logger:   logger.WithComponent("nats-publisher"),
	}
}

// PublishResult publishes a score result. Results are fire-and-forget;
// a publish failure is reported but never fails the scoring run.
func (p *NATSPublisher) PublishResult(ctx context.Context, result *entity.ScoreResult) error {
	if !p.config.Enabled || p.consumer.conn == nil {
		return nil
	}

	subject := fmt.Sprintf("%s.result", p.config.SubjectPrefix)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal score result: %w", err)
	}

	if err := p.consumer.conn.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish score result",
			zap.String("token", result.TokenAddress), zap.Error(err))
		return fmt.Errorf("failed to publish score result: %w", err)
	}

	p.logger.Debug("Published score result",
		zap.String("subject", subject),
		zap.String("token", result.TokenAddress),
		zap.Float64("total_score", result.TotalScore))

	return nil
}
