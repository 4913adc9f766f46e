package lotevents

import (
	"context"
	"encoding/json"
	"errors"

	"autolot-backend/internal/domain"
	"autolot-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Record appends an audit event. Failures are logged and never returned:
// the audit trail must not fail the operation it describes.
func (s *Service) Record(ctx context.Context, lotID uuid.UUID, eventType string, data map[string]interface{}, actor *uuid.UUID) {
	if s == nil || s.DB == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Str("lot_id", lotID.String()).Str("event_type", eventType).Msg("Unencodable lot event data")
		b = []byte("{}")
	}
	ev := &domain.LotEvent{
		LotID:     lotID,
		EventType: eventType,
		EventData: datatypes.JSON(b),
		ActorID:   actor,
	}
	if err := s.DB.WithContext(ctx).Create(ev).Error; err != nil {
		log.Warn().Err(err).Str("lot_id", lotID.String()).Str("event_type", eventType).Msg("Failed to record lot event")
	}
}

// ForLot lists a lot's events oldest first.
func (s *Service) ForLot(ctx context.Context, lotID uuid.UUID) ([]domain.LotEvent, error) {
	if lotID == uuid.Nil {
		return nil, apperr.InvalidInput("Lot ID is required")
	}
	var lot domain.Lot
	if err := s.DB.WithContext(ctx).Where("lot_id = ?", lotID).Select("lot_id").First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Lot")
		}
		return nil, err
	}

	var events []domain.LotEvent
	if err := s.DB.WithContext(ctx).Where("lot_id = ?", lotID).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
