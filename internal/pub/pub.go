package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const BalanceEventsChannel = "balance_events"

// BalanceEventPublisher publishes balance-change events to the live
// subscriber channel. Best-effort: a publish failure is logged and never
// surfaced to the ledger path.
type BalanceEventPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewBalanceEventPublisher(rdb *redis.Client, logger *zap.Logger) *BalanceEventPublisher {
	return &BalanceEventPublisher{rdb: rdb, logger: logger}
}

func (p *BalanceEventPublisher) PublishBalanceUpdated(
	ctx context.Context,
	userID int64,
	newBalance decimal.Decimal,
	withdrawalID string,
	withdrawalAmount decimal.Decimal,
) error {
	event := domain.BalanceEvent{
		Event:            domain.EventBalanceUpdated,
		EventID:          uuid.NewString(),
		UserID:           userID,
		NewBalance:       newBalance,
		WithdrawalID:     withdrawalID,
		WithdrawalAmount: withdrawalAmount,
		Timestamp:        time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, BalanceEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published balance event",
		zap.String("event_id", event.EventID),
		zap.Int64("user_id", userID),
		zap.String("withdrawal_id", withdrawalID),
	)

	return nil
}
