// Package cascade writes a resolved lot status to the lot and every one of
// its cars, then corrects stragglers left behind by failed or stale writes.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"autolot-backend/internal/application/lifecycle"
	"autolot-backend/internal/domain"
	"autolot-backend/internal/pkg/apperr"
	"autolot-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Cascader has no mutual exclusion; concurrent runs on one lot converge
// because the plan is a pure function of stored inputs and now.
type Cascader struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// Result describes what one Apply wrote.
type Result struct {
	LotID          uuid.UUID                      `json:"lot_id"`
	PreviousStatus domain.LotStatus               `json:"previous_status"`
	LotStatus      domain.LotStatus               `json:"status"`
	Changed        bool                           `json:"changed"`
	CarStatuses    map[uuid.UUID]domain.CarStatus `json:"car_statuses"`
	CarChanges     []lifecycle.CarChange          `json:"car_changes"`
	Healed         []uuid.UUID                    `json:"healed"`
}

func New(db *gorm.DB, c clock.Clock) *Cascader {
	if c == nil {
		c = clock.System{}
	}
	return &Cascader{DB: db, Clock: c}
}

// Apply resolves the lot at the current instant and persists the result.
// A failure after some writes succeeded returns the Result together with an
// *apperr.PartialCascadeError; the successful writes are kept.
func (c *Cascader) Apply(ctx context.Context, lotID uuid.UUID) (*Result, error) {
	db := c.DB.WithContext(ctx)

	var lot domain.Lot
	if err := db.Where("lot_id = ?", lotID).First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Lot")
		}
		return nil, fmt.Errorf("load lot: %w", err)
	}
	cars, err := c.loadCars(db, lotID)
	if err != nil {
		return nil, err
	}

	plan := lifecycle.Plan(lot, cars, c.Clock.Now())
	res := &Result{
		LotID:          lotID,
		PreviousStatus: plan.From,
		LotStatus:      plan.To,
		Changed:        plan.LotChanged(),
		CarStatuses:    plan.Cars,
		CarChanges:     plan.Changes,
	}

	var firstErr error
	lotWritten := true
	if err := db.Model(&domain.Lot{}).Where("lot_id = ?", lotID).Update("status", plan.To).Error; err != nil {
		lotWritten = false
		firstErr = fmt.Errorf("write lot status: %w", err)
	}

	failed := map[uuid.UUID]bool{}
	for _, g := range plan.Groups() {
		if err := db.Model(&domain.Car{}).Where("car_id IN ?", g.CarIDs).Update("status", g.Status).Error; err != nil {
			for _, id := range g.CarIDs {
				failed[id] = true
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("write car status %q: %w", g.Status, err)
			}
		}
	}

	if plan.To.Terminal() {
		ids, err := c.closeStragglers(db, plan)
		if err != nil {
			for _, id := range ids {
				failed[id] = true
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("corrective close: %w", err)
			}
		} else {
			res.Healed = ids
			for _, id := range ids {
				delete(failed, id)
			}
		}
	}

	if firstErr == nil || (lotWritten && len(failed) == 0) {
		return res, nil
	}
	if !lotWritten && len(failed) == len(cars) {
		return nil, firstErr
	}
	pce := &apperr.PartialCascadeError{LotID: lotID, LotWritten: lotWritten, Err: firstErr}
	for _, car := range cars {
		if failed[car.CarID] {
			pce.FailedCarIDs = append(pce.FailedCarIDs, car.CarID)
		}
	}
	log.Warn().Err(firstErr).Str("lot_id", lotID.String()).Bool("lot_written", lotWritten).
		Int("failed_cars", len(pce.FailedCarIDs)).Msg("Partial cascade")
	return res, pce
}

func (c *Cascader) loadCars(db *gorm.DB, lotID uuid.UUID) ([]domain.Car, error) {
	var cars []domain.Car
	if err := db.Where("lot_id = ?", lotID).Order("car_id").Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("load cars: %w", err)
	}
	return cars, nil
}

// closeStragglers re-reads the cars of a terminal lot and closes any that
// still are not Closed. On a failed write it returns the ids it could not close.
func (c *Cascader) closeStragglers(db *gorm.DB, plan lifecycle.CascadePlan) ([]uuid.UUID, error) {
	current, err := c.loadCars(db, plan.LotID)
	if err != nil {
		return nil, err
	}
	ids := plan.Stragglers(current)
	if len(ids) == 0 {
		return nil, nil
	}
	if err := db.Model(&domain.Car{}).Where("car_id IN ?", ids).Update("status", domain.CarClosed).Error; err != nil {
		return ids, err
	}
	log.Info().Str("lot_id", plan.LotID.String()).Int("cars", len(ids)).Msg("Closed stragglers in terminal lot")
	return ids, nil
}
