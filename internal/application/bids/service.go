package bids

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autolot-backend/internal/application/lifecycle"
	"autolot-backend/internal/application/ranking"
	"autolot-backend/internal/domain"
	"autolot-backend/internal/infrastructure/realtime"
	"autolot-backend/internal/pkg/apperr"
	"autolot-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB        *gorm.DB
	Clock     clock.Clock
	Publisher *realtime.Publisher
}

type PlaceBidInput struct {
	CarID  uuid.UUID
	UserID uuid.UUID
	Amount decimal.Decimal
}

type PlaceBidResult struct {
	Bid     domain.Bid `json:"bid"`
	Rank    int        `json:"rank"`
	Bidders int        `json:"bidders"`
}

// MyBid is a bidder's effective bid on one car with its live standing.
type MyBid struct {
	CarID     uuid.UUID        `json:"car_id"`
	LotID     uuid.UUID        `json:"lot_id"`
	BidID     uuid.UUID        `json:"bid_id"`
	Amount    decimal.Decimal  `json:"amount"`
	CreatedAt time.Time        `json:"created_at"`
	Rank      int              `json:"rank"`
	IsWinner  bool             `json:"is_winner"`
	CarStatus domain.CarStatus `json:"car_status"`
}

// CarResult is one row of the lot review/export feed.
type CarResult struct {
	Car         domain.Car          `json:"car"`
	Status      domain.CarStatus    `json:"status"`
	Bids        []ranking.RankedBid `json:"bids"`
	WinnerBidID *uuid.UUID          `json:"winner_bid_id"`
}

type LotResults struct {
	Lot    domain.Lot       `json:"lot"`
	Status domain.LotStatus `json:"status"`
	Cars   []CarResult      `json:"cars"`
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

// PlaceBid records a bid and drops the bidder's older rows on the car.
// The new row is inserted first; if pruning fails the duplicates are reduced
// by ranking and the bidder is never left without a bid.
func (s *Service) PlaceBid(ctx context.Context, in PlaceBidInput) (*PlaceBidResult, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.InvalidInput("Bid amount must be greater than zero")
	}
	if !in.Amount.Equal(in.Amount.Truncate(2)) {
		return nil, apperr.InvalidInput("Bid amount may have at most 2 decimal places")
	}
	db := s.DB.WithContext(ctx)

	var car domain.Car
	if err := db.Where("car_id = ?", in.CarID).First(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Car")
		}
		return nil, err
	}
	var user domain.User
	if err := db.Where("user_id = ?", in.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown bidder", apperr.ErrPermissionDenied)
		}
		return nil, err
	}
	if !user.Approved {
		return nil, fmt.Errorf("%w: bidder is not approved", apperr.ErrPermissionDenied)
	}
	var lot domain.Lot
	if err := db.Where("lot_id = ?", car.LotID).First(&lot).Error; err != nil {
		return nil, fmt.Errorf("load lot of car: %w", err)
	}
	now := s.now()
	if !lifecycle.CanBid(lot, car, now) {
		return nil, apperr.Conflict("Car is not open for bidding")
	}

	bid := domain.Bid{
		CarID:     car.CarID,
		UserID:    user.UserID,
		Amount:    in.Amount,
		CreatedAt: now,
	}
	if err := db.Create(&bid).Error; err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}
	if err := db.Where("car_id = ? AND user_id = ? AND bid_id <> ?", car.CarID, user.UserID, bid.BidID).
		Delete(&domain.Bid{}).Error; err != nil {
		log.Warn().Err(err).Str("car_id", car.CarID.String()).Str("user_id", user.UserID.String()).Msg("Failed to prune older bids")
	}
	s.Publisher.Emit(ctx, "Bids", realtime.OpInsert, car.LotID, &car.CarID)

	ranked, err := s.rankCar(db, car.CarID)
	if err != nil {
		return &PlaceBidResult{Bid: bid}, nil
	}
	return &PlaceBidResult{Bid: bid, Rank: ranking.RankOf(ranked, user.UserID), Bidders: len(ranked)}, nil
}

// RankedBids returns the effective ranking of a car.
func (s *Service) RankedBids(ctx context.Context, carID uuid.UUID) ([]ranking.RankedBid, error) {
	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&domain.Car{}).Where("car_id = ?", carID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("Car")
	}
	return s.rankCar(db, carID)
}

func (s *Service) rankCar(db *gorm.DB, carID uuid.UUID) ([]ranking.RankedBid, error) {
	var rows []domain.Bid
	if err := db.Where("car_id = ?", carID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return ranking.Rank(rows), nil
}

// BidderBids lists the bidder's effective bids with their current rank.
func (s *Service) BidderBids(ctx context.Context, userID uuid.UUID) ([]MyBid, error) {
	db := s.DB.WithContext(ctx)
	var own []domain.Bid
	if err := db.Where("user_id = ?", userID).Find(&own).Error; err != nil {
		return nil, err
	}
	if len(own) == 0 {
		return []MyBid{}, nil
	}
	carIDs := lo.Uniq(lo.Map(own, func(b domain.Bid, _ int) uuid.UUID { return b.CarID }))

	var cars []domain.Car
	if err := db.Where("car_id IN ?", carIDs).Order("car_id").Find(&cars).Error; err != nil {
		return nil, err
	}
	byCar, err := s.bidsByCar(db, carIDs)
	if err != nil {
		return nil, err
	}

	out := make([]MyBid, 0, len(cars))
	for _, car := range cars {
		ranked := ranking.Rank(byCar[car.CarID])
		for _, rb := range ranked {
			if rb.UserID != userID {
				continue
			}
			out = append(out, MyBid{
				CarID:     car.CarID,
				LotID:     car.LotID,
				BidID:     rb.BidID,
				Amount:    rb.Amount,
				CreatedAt: rb.CreatedAt,
				Rank:      rb.Rank,
				IsWinner:  rb.IsWinner,
				CarStatus: car.Status,
			})
		}
	}
	return out, nil
}

// LotResults returns every car of the lot with live status, effective ranking and winner.
func (s *Service) LotResults(ctx context.Context, lotID uuid.UUID) (*LotResults, error) {
	db := s.DB.WithContext(ctx)
	var lot domain.Lot
	if err := db.Where("lot_id = ?", lotID).First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Lot")
		}
		return nil, err
	}
	var cars []domain.Car
	if err := db.Where("lot_id = ?", lotID).Order("car_id").Find(&cars).Error; err != nil {
		return nil, err
	}
	byCar, err := s.bidsByCar(db, lo.Map(cars, func(c domain.Car, _ int) uuid.UUID { return c.CarID }))
	if err != nil {
		return nil, err
	}

	now := s.now()
	lotStatus := lifecycle.ResolveLot(lifecycle.LotInputOf(lot), now)
	out := &LotResults{Lot: lot, Status: lotStatus, Cars: make([]CarResult, 0, len(cars))}
	for _, car := range cars {
		cr := CarResult{
			Car:    car,
			Status: lifecycle.ResolveCar(lotStatus, lifecycle.CarInputOf(car), now),
			Bids:   ranking.Rank(byCar[car.CarID]),
		}
		if w, ok := lo.Find(byCar[car.CarID], func(b domain.Bid) bool { return b.IsWinner }); ok {
			id := w.BidID
			cr.WinnerBidID = &id
		}
		out.Cars = append(out.Cars, cr)
	}
	return out, nil
}

func (s *Service) bidsByCar(db *gorm.DB, carIDs []uuid.UUID) (map[uuid.UUID][]domain.Bid, error) {
	if len(carIDs) == 0 {
		return map[uuid.UUID][]domain.Bid{}, nil
	}
	var rows []domain.Bid
	if err := db.Where("car_id IN ?", carIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return lo.GroupBy(rows, func(b domain.Bid) uuid.UUID { return b.CarID }), nil
}
