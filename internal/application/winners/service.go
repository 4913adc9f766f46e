package winners

import (
	"context"
	"errors"
	"fmt"

	"autolot-backend/internal/application/lotevents"
	"autolot-backend/internal/application/ranking"
	"autolot-backend/internal/domain"
	"autolot-backend/internal/infrastructure/realtime"
	"autolot-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service keeps at most one is_winner bid per car. Every marker change runs
// in one transaction, so no 0-or-2-winner state is ever committed.
type Service struct {
	DB        *gorm.DB
	Events    *lotevents.Service
	Publisher *realtime.Publisher
}

// Assignment reports the winner of one car after AssignLotWinners.
type Assignment struct {
	CarID  uuid.UUID  `json:"car_id"`
	BidID  *uuid.UUID `json:"bid_id"`
	Kept   bool       `json:"kept"`
	Reason string     `json:"reason,omitempty"`
}

// SetManualWinner overrides the winner of carID with bidID.
func (s *Service) SetManualWinner(ctx context.Context, carID, bidID uuid.UUID) (*domain.Bid, error) {
	var chosen domain.Bid
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bid_id = ? AND car_id = ?", bidID, carID).First(&chosen).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvalidWinner
			}
			return err
		}
		return markWinner(tx, carID, bidID)
	})
	if err != nil {
		return nil, err
	}
	chosen.IsWinner = true
	s.afterChange(ctx, carID, domain.EventWinnerSet, map[string]interface{}{
		"bid_id": bidID.String(),
		"amount": chosen.Amount.String(),
		"manual": true,
	})
	return &chosen, nil
}

// AssignAutomaticWinner marks the rank-1 effective bid. A car without bids
// has every marker cleared and yields nil.
func (s *Service) AssignAutomaticWinner(ctx context.Context, carID uuid.UUID) (*uuid.UUID, error) {
	var winner *uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Car{}).Where("car_id = ?", carID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("Car")
		}
		var bids []domain.Bid
		if err := tx.Where("car_id = ?", carID).Find(&bids).Error; err != nil {
			return err
		}
		id, ok := ranking.SelectAutomaticWinner(ranking.Rank(bids))
		if !ok {
			return clearWinners(tx, carID)
		}
		winner = &id
		return markWinner(tx, carID, id)
	})
	if err != nil {
		return nil, fmt.Errorf("assign winner for car %s: %w", carID, err)
	}
	if winner != nil {
		s.afterChange(ctx, carID, domain.EventWinnerSet, map[string]interface{}{"bid_id": winner.String(), "manual": false})
	}
	return winner, nil
}

// AssignLotWinners assigns automatic winners to every car of a lot. Cars that
// already have a winner keep it unless overwrite is set.
func (s *Service) AssignLotWinners(ctx context.Context, lotID uuid.UUID, overwrite bool) ([]Assignment, error) {
	var cars []domain.Car
	if err := s.DB.WithContext(ctx).Where("lot_id = ?", lotID).Order("car_id").Find(&cars).Error; err != nil {
		return nil, err
	}

	out := make([]Assignment, 0, len(cars))
	for _, car := range cars {
		if !overwrite {
			current, err := s.Winner(ctx, car.CarID)
			if err == nil {
				id := current.BidID
				out = append(out, Assignment{CarID: car.CarID, BidID: &id, Kept: true})
				continue
			}
			if !errors.Is(err, ErrNoWinner) {
				return out, err
			}
		}
		id, err := s.AssignAutomaticWinner(ctx, car.CarID)
		if err != nil {
			return out, err
		}
		a := Assignment{CarID: car.CarID, BidID: id}
		if id == nil {
			a.Reason = "no bids"
		}
		out = append(out, a)
	}
	log.Info().Str("lot_id", lotID.String()).Int("cars", len(out)).Bool("overwrite", overwrite).Msg("Lot winners assigned")
	return out, nil
}

// ClearWinner revokes the winner of a car.
func (s *Service) ClearWinner(ctx context.Context, carID uuid.UUID) error {
	if err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return clearWinners(tx, carID)
	}); err != nil {
		return err
	}
	s.afterChange(ctx, carID, domain.EventWinnerCleared, nil)
	return nil
}

// ClearLotWinners revokes every winner of a lot in one transaction and
// returns how many markers were cleared.
func (s *Service) ClearLotWinners(ctx context.Context, lotID uuid.UUID) (int64, error) {
	var cleared int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Bid{}).
			Where("is_winner = ? AND car_id IN (?)", true, tx.Model(&domain.Car{}).Select("car_id").Where("lot_id = ?", lotID)).
			Update("is_winner", false)
		cleared = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		s.Events.Record(ctx, lotID, domain.EventWinnerCleared, map[string]interface{}{"cleared": cleared, "reopened": true}, nil)
		s.Publisher.Emit(ctx, "Bids", realtime.OpUpdate, lotID, nil)
	}
	log.Info().Str("lot_id", lotID.String()).Int64("cleared", cleared).Msg("Lot winners cleared")
	return cleared, nil
}

// Winner returns the current winning bid of a car, or ErrNoWinner.
func (s *Service) Winner(ctx context.Context, carID uuid.UUID) (*domain.Bid, error) {
	var bid domain.Bid
	err := s.DB.WithContext(ctx).Where("car_id = ? AND is_winner = ?", carID, true).First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoWinner
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func markWinner(tx *gorm.DB, carID, bidID uuid.UUID) error {
	if err := tx.Model(&domain.Bid{}).
		Where("car_id = ? AND bid_id <> ? AND is_winner = ?", carID, bidID, true).
		Update("is_winner", false).Error; err != nil {
		return err
	}
	return tx.Model(&domain.Bid{}).Where("bid_id = ?", bidID).Update("is_winner", true).Error
}

func clearWinners(tx *gorm.DB, carID uuid.UUID) error {
	return tx.Model(&domain.Bid{}).Where("car_id = ? AND is_winner = ?", carID, true).Update("is_winner", false).Error
}

func (s *Service) afterChange(ctx context.Context, carID uuid.UUID, eventType string, data map[string]interface{}) {
	var car domain.Car
	if err := s.DB.WithContext(ctx).Select("car_id", "lot_id").Where("car_id = ?", carID).First(&car).Error; err != nil {
		log.Debug().Err(err).Str("car_id", carID.String()).Msg("Winner change on unknown car")
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["car_id"] = carID.String()
	s.Events.Record(ctx, car.LotID, eventType, data, nil)
	s.Publisher.Emit(ctx, "Bids", realtime.OpUpdate, car.LotID, &carID)
}
