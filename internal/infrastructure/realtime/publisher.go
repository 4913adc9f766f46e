package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "autolot:changes"

// Publisher announces row changes. A nil *Publisher (or one without a client) is a no-op.
type Publisher struct {
	Rdb     *redis.Client
	Channel string
}

func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{Rdb: rdb, Channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, ev ChangeEvent) error {
	if p == nil || p.Rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return p.Rdb.Publish(ctx, p.Channel, b).Err()
}

// Emit publishes and logs failures instead of returning them. Notifications
// only shorten convergence; the periodic sweep covers lost ones.
func (p *Publisher) Emit(ctx context.Context, table, op string, lotID uuid.UUID, carID *uuid.UUID) {
	if p == nil || p.Rdb == nil {
		return
	}
	ev := ChangeEvent{Table: table, Op: op, LotID: lotID.String()}
	if carID != nil {
		ev.CarID = carID.String()
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("table", table).Str("lot_id", ev.LotID).Msg("Change notification failed")
	}
}
