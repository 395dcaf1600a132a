package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-service/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const TopicSettlementAudit = "wallet.audit.settlements"

// AuditProducer mirrors audit records onto a kafka topic so downstream
// compliance consumers get the same trail the audit_log table holds.
// Best-effort like the redis publisher.
type AuditProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewAuditProducer(brokers []string, logger *zap.Logger) *AuditProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        TopicSettlementAudit,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
	}
	return &AuditProducer{writer: writer, logger: logger}
}

func (p *AuditProducer) Publish(ctx context.Context, rec *domain.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.EntityID),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write audit message: %w", err)
	}

	p.logger.Debug("published audit record",
		zap.String("audit_id", rec.ID),
		zap.String("entity_id", rec.EntityID),
		zap.String("action", rec.Action),
	)

	return nil
}

func (p *AuditProducer) Close() error {
	return p.writer.Close()
}
