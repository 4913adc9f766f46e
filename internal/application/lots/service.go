package lots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autolot-backend/internal/application/cascade"
	"autolot-backend/internal/application/lifecycle"
	"autolot-backend/internal/application/lotevents"
	"autolot-backend/internal/application/winners"
	"autolot-backend/internal/domain"
	"autolot-backend/internal/infrastructure/realtime"
	"autolot-backend/internal/pkg/apperr"
	"autolot-backend/internal/pkg/clock"
	"autolot-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	maxReasonLen   = 500
	refreshTimeout = 30 * time.Second
)

// Service owns every operator action on a lot. Each action that can move a
// lot's status ends with a cascade so the lot and its cars agree.
type Service struct {
	DB        *gorm.DB
	Converter *clock.Converter
	Cascader  *cascade.Cascader
	Winners   *winners.Service
	Events    *lotevents.Service
	Publisher *realtime.Publisher

	refreshes singleflight.Group
}

type CarImport struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	VIN   string `json:"vin"`
}

type CreateLotInput struct {
	LotNumber string
	Cars      []CarImport
	Actor     *uuid.UUID
}

// ScheduleInput is a bidding window in display-time strings.
type ScheduleInput struct {
	Start string `json:"bidding_start"`
	End   string `json:"bidding_end"`
}

// LotView is a lot with its live status and display-time window.
type LotView struct {
	domain.Lot
	LiveStatus        domain.LotStatus `json:"live_status"`
	BiddingStartLocal string           `json:"bidding_start_local"`
	BiddingEndLocal   string           `json:"bidding_end_local"`
}

// RefreshSummary reports one RefreshAll pass.
type RefreshSummary struct {
	Checked int      `json:"checked"`
	Changed int      `json:"changed"`
	Failed  []string `json:"failed"`
}

var reasonPolicy = bluemonday.StrictPolicy()

func (s *Service) now() time.Time {
	return s.Converter.Now()
}

func (s *Service) view(l domain.Lot) LotView {
	return LotView{
		Lot:               l,
		LiveStatus:        lifecycle.ResolveLot(lifecycle.LotInputOf(l), s.now()),
		BiddingStartLocal: s.Converter.ToDisplayPtr(l.BiddingStartDate),
		BiddingEndLocal:   s.Converter.ToDisplayPtr(l.BiddingEndDate),
	}
}

func (s *Service) parseWindow(in ScheduleInput) (time.Time, time.Time, error) {
	start, err := s.Converter.ToStorageInstant(in.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := s.Converter.ToStorageInstant(in.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrWindowOrder
	}
	return start, end, nil
}

func (s *Service) loadLot(ctx context.Context, lotID uuid.UUID) (*domain.Lot, error) {
	var lot domain.Lot
	if err := s.DB.WithContext(ctx).Where("lot_id = ?", lotID).First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Lot")
		}
		return nil, err
	}
	return &lot, nil
}

// CreateLot imports a Pending lot whose cars start Upcoming with bidding enabled.
func (s *Service) CreateLot(ctx context.Context, in CreateLotInput) (*LotView, error) {
	number, err := checkLotNumber(in.LotNumber)
	if err != nil {
		return nil, err
	}
	lot := domain.Lot{LotNumber: number, Status: domain.LotPending}
	for i, c := range in.Cars {
		vin := strings.ToUpper(strings.TrimSpace(c.VIN))
		if !validation.IsValidVIN(vin) {
			return nil, apperr.InvalidInput("cars[%d]: invalid VIN %q", i, c.VIN)
		}
		if !validation.IsValidModelYear(c.Year, s.now()) {
			return nil, apperr.InvalidInput("cars[%d]: invalid model year %d", i, c.Year)
		}
		lot.Cars = append(lot.Cars, domain.Car{
			Make:           strings.TrimSpace(c.Make),
			Model:          strings.TrimSpace(c.Model),
			Year:           c.Year,
			VIN:            vin,
			BiddingEnabled: true,
			Status:         domain.CarUpcoming,
		})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Lot{}).Where("lot_number = ?", number).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrLotNumberTaken
		}
		return tx.Create(&lot).Error
	})
	if err != nil {
		return nil, err
	}

	s.Events.Record(ctx, lot.LotID, domain.EventImported, map[string]interface{}{
		"lot_number": number,
		"cars":       len(lot.Cars),
	}, in.Actor)
	s.Publisher.Emit(ctx, "Lots", realtime.OpInsert, lot.LotID, nil)
	log.Info().Str("lot_id", lot.LotID.String()).Str("lot_number", number).Int("cars", len(lot.Cars)).Msg("Lot imported")
	v := s.view(lot)
	return &v, nil
}

func checkLotNumber(raw string) (string, error) {
	number := strings.TrimSpace(raw)
	if number == "" {
		return "", ErrLotNumberRequired
	}
	if !validation.IsValidLotNumber(number) {
		return "", ErrLotNumberFormat
	}
	return number, nil
}

// ApproveLot sets the bidding window, marks the lot approved and clears any early closure.
func (s *Service) ApproveLot(ctx context.Context, lotID uuid.UUID, in ScheduleInput, actor *uuid.UUID) (*LotView, error) {
	start, end, err := s.parseWindow(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadLot(ctx, lotID); err != nil {
		return nil, err
	}
	if err := s.writeWindow(ctx, lotID, map[string]interface{}{
		"approved":           true,
		"early_closed":       false,
		"early_close_reason": nil,
	}, start, end); err != nil {
		return nil, err
	}
	s.Events.Record(ctx, lotID, domain.EventApproved, map[string]interface{}{
		"bidding_start": start,
		"bidding_end":   end,
	}, actor)
	return s.refreshAndView(ctx, lotID)
}

// RescheduleLot assigns a new window to an approved lot. Early closure is
// cleared when the new window has not started yet or is open now.
func (s *Service) RescheduleLot(ctx context.Context, lotID uuid.UUID, in ScheduleInput, actor *uuid.UUID) (*LotView, error) {
	start, end, err := s.parseWindow(in)
	if err != nil {
		return nil, err
	}
	lot, err := s.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if !lot.Approved {
		return nil, ErrNotApproved
	}

	now := s.now()
	fields := map[string]interface{}{}
	reopened := lot.EarlyClosed && (now.Before(start) || !now.After(end))
	if reopened {
		fields["early_closed"] = false
		fields["early_close_reason"] = nil
	}
	if err := s.writeWindow(ctx, lotID, fields, start, end); err != nil {
		return nil, err
	}
	s.Events.Record(ctx, lotID, domain.EventRescheduled, map[string]interface{}{
		"bidding_start":  start,
		"bidding_end":    end,
		"early_reopened": reopened,
	}, actor)
	return s.refreshAndView(ctx, lotID)
}

// writeWindow stores a window on the lot and mirrors it onto every car.
func (s *Service) writeWindow(ctx context.Context, lotID uuid.UUID, fields map[string]interface{}, start, end time.Time) error {
	fields["bidding_start_date"] = start
	fields["bidding_end_date"] = end
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Lot{}).Where("lot_id = ?", lotID).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Car{}).Where("lot_id = ?", lotID).Updates(map[string]interface{}{
			"bidding_start_date": start,
			"bidding_end_date":   end,
		}).Error
	})
}

// EarlyCloseLot closes bidding now. The window is cut to end before now so
// the closure holds until an operator assigns a new window.
func (s *Service) EarlyCloseLot(ctx context.Context, lotID uuid.UUID, reason string, actor *uuid.UUID) (*LotView, error) {
	lot, err := s.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if !lot.Approved {
		return nil, ErrNotApproved
	}
	now := s.now()
	previous := lifecycle.ResolveLot(lifecycle.LotInputOf(*lot), now)
	if previous.Terminal() {
		return nil, ErrAlreadyClosed
	}

	cutoff := now.Add(-time.Second)
	start := cutoff
	if lot.BiddingStartDate != nil && !lot.BiddingStartDate.After(cutoff) {
		start = *lot.BiddingStartDate
	}
	clean := sanitizeReason(reason)
	fields := map[string]interface{}{"early_closed": true, "early_close_reason": nil}
	if clean != "" {
		fields["early_close_reason"] = clean
	}
	if err := s.writeWindow(ctx, lotID, fields, start, cutoff); err != nil {
		return nil, err
	}
	s.Events.Record(ctx, lotID, domain.EventEarlyClosed, map[string]interface{}{
		"previous_status": previous,
		"closed_at":       cutoff,
		"reason":          clean,
	}, actor)
	log.Info().Str("lot_id", lotID.String()).Str("previous_status", string(previous)).Msg("Lot closed early")
	return s.refreshAndView(ctx, lotID)
}

func sanitizeReason(reason string) string {
	clean := strings.TrimSpace(reasonPolicy.Sanitize(reason))
	if r := []rune(clean); len(r) > maxReasonLen {
		clean = string(r[:maxReasonLen])
	}
	return clean
}

// RenumberLot changes the human lot number of a lot that is not yet approved.
func (s *Service) RenumberLot(ctx context.Context, lotID uuid.UUID, number string, actor *uuid.UUID) (*LotView, error) {
	number, err := checkLotNumber(number)
	if err != nil {
		return nil, err
	}
	var lot domain.Lot
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lot_id = ?", lotID).First(&lot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Lot")
			}
			return err
		}
		if lot.Approved {
			return ErrLotNumberImmutable
		}
		var n int64
		if err := tx.Model(&domain.Lot{}).Where("lot_number = ? AND lot_id <> ?", number, lotID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrLotNumberTaken
		}
		return tx.Model(&domain.Lot{}).Where("lot_id = ?", lotID).Update("lot_number", number).Error
	})
	if err != nil {
		return nil, err
	}
	s.Events.Record(ctx, lotID, domain.EventRenumbered, map[string]interface{}{"from": lot.LotNumber, "to": number}, actor)
	lot.LotNumber = number
	v := s.view(lot)
	return &v, nil
}

// SetCarBidding enables or disables bidding on one car, optionally with its
// own window, then re-cascades the car's lot. A partial cascade returns the
// reloaded car together with the PartialCascadeError.
func (s *Service) SetCarBidding(ctx context.Context, carID uuid.UUID, enabled bool, window *ScheduleInput, actor *uuid.UUID) (*domain.Car, error) {
	var car domain.Car
	if err := s.DB.WithContext(ctx).Where("car_id = ?", carID).First(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Car")
		}
		return nil, err
	}
	fields := map[string]interface{}{"bidding_enabled": enabled}
	data := map[string]interface{}{"car_id": carID.String(), "enabled": enabled}
	if window != nil {
		start, end, err := s.parseWindow(*window)
		if err != nil {
			return nil, err
		}
		fields["bidding_start_date"] = start
		fields["bidding_end_date"] = end
		data["bidding_start"] = start
		data["bidding_end"] = end
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Car{}).Where("car_id = ?", carID).Updates(fields).Error; err != nil {
		return nil, err
	}
	s.Events.Record(ctx, car.LotID, domain.EventCarBidding, data, actor)

	_, refreshErr := s.RefreshLot(ctx, car.LotID)
	if refreshErr != nil {
		if _, partial := apperr.IsPartialCascade(refreshErr); !partial {
			return nil, refreshErr
		}
	}
	if err := s.DB.WithContext(ctx).Where("car_id = ?", carID).First(&car).Error; err != nil {
		return nil, err
	}
	return &car, refreshErr
}

// RefreshLot recomputes and cascades one lot. Concurrent calls for the same
// lot share one run. Entering a terminal status assigns automatic winners;
// leaving one clears them.
func (s *Service) RefreshLot(ctx context.Context, lotID uuid.UUID) (*cascade.Result, error) {
	v, err, _ := s.refreshes.Do(lotID.String(), func() (interface{}, error) {
		// The shared run outlives any single caller's cancellation.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refreshLot(runCtx, lotID)
	})
	res, _ := v.(*cascade.Result)
	return res, err
}

func (s *Service) refreshLot(ctx context.Context, lotID uuid.UUID) (*cascade.Result, error) {
	res, err := s.Cascader.Apply(ctx, lotID)
	if res == nil {
		return nil, err
	}
	if pce, ok := apperr.IsPartialCascade(err); ok {
		failed := make([]string, 0, len(pce.FailedCarIDs))
		for _, id := range pce.FailedCarIDs {
			failed = append(failed, id.String())
		}
		s.Events.Record(ctx, lotID, domain.EventCascadePartial, map[string]interface{}{
			"status":         res.LotStatus,
			"lot_written":    pce.LotWritten,
			"failed_car_ids": failed,
		}, nil)
	}
	if res.Changed {
		s.Events.Record(ctx, lotID, domain.EventStatusChanged, map[string]interface{}{
			"from": res.PreviousStatus,
			"to":   res.LotStatus,
		}, nil)
		s.Publisher.Emit(ctx, "Lots", realtime.OpUpdate, lotID, nil)
		if res.LotStatus.Terminal() && !res.PreviousStatus.Terminal() && s.Winners != nil {
			if _, werr := s.Winners.AssignLotWinners(ctx, lotID, false); werr != nil {
				log.Error().Err(werr).Str("lot_id", lotID.String()).Msg("Automatic winner assignment failed")
			}
		}
		if res.PreviousStatus.Terminal() && !res.LotStatus.Terminal() && s.Winners != nil {
			if _, werr := s.Winners.ClearLotWinners(ctx, lotID); werr != nil {
				log.Error().Err(werr).Str("lot_id", lotID.String()).Msg("Clearing winners of reopened lot failed")
			}
		}
	}
	return res, err
}

// RefreshAll refreshes every lot that can still change plus terminal lots
// with cars that are not Closed.
func (s *Service) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	db := s.DB.WithContext(ctx)
	terminal := []domain.LotStatus{domain.LotClosed, domain.LotEarlyClosed}
	var open []uuid.UUID
	if err := db.Model(&domain.Lot{}).Where("status NOT IN ?", terminal).Pluck("lot_id", &open).Error; err != nil {
		return RefreshSummary{}, fmt.Errorf("list open lots: %w", err)
	}
	var closed []uuid.UUID
	if err := db.Model(&domain.Lot{}).Where("status IN ?", terminal).Pluck("lot_id", &closed).Error; err != nil {
		return RefreshSummary{}, fmt.Errorf("list closed lots: %w", err)
	}
	var stale []uuid.UUID
	if len(closed) > 0 {
		if err := db.Model(&domain.Car{}).Distinct("lot_id").
			Where("lot_id IN ? AND status <> ?", closed, domain.CarClosed).
			Pluck("lot_id", &stale).Error; err != nil {
			return RefreshSummary{}, fmt.Errorf("list stale lots: %w", err)
		}
	}

	seen := map[uuid.UUID]bool{}
	var summary RefreshSummary
	var errs []error
	for _, id := range append(open, stale...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		summary.Checked++
		res, err := s.RefreshLot(ctx, id)
		if err != nil {
			summary.Failed = append(summary.Failed, id.String())
			errs = append(errs, fmt.Errorf("lot %s: %w", id, err))
		}
		if res != nil && (res.Changed || len(res.CarChanges) > 0 || len(res.Healed) > 0) {
			summary.Changed++
		}
	}
	return summary, errors.Join(errs...)
}

// DeleteLot removes the lot with its cars, bids and audit trail in one transaction.
func (s *Service) DeleteLot(ctx context.Context, lotID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lot domain.Lot
		if err := tx.Where("lot_id = ?", lotID).First(&lot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Lot")
			}
			return err
		}
		var carIDs []uuid.UUID
		if err := tx.Model(&domain.Car{}).Where("lot_id = ?", lotID).Pluck("car_id", &carIDs).Error; err != nil {
			return err
		}
		if len(carIDs) > 0 {
			if err := tx.Where("car_id IN ?", carIDs).Delete(&domain.Bid{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("lot_id = ?", lotID).Delete(&domain.Car{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lot_id = ?", lotID).Delete(&domain.LotEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("lot_id = ?", lotID).Delete(&domain.Lot{}).Error
	})
	if err != nil {
		return err
	}
	s.Publisher.Emit(ctx, "Lots", realtime.OpDelete, lotID, nil)
	log.Info().Str("lot_id", lotID.String()).Msg("Lot deleted")
	return nil
}

// GetLot returns a lot with its cars.
func (s *Service) GetLot(ctx context.Context, lotID uuid.UUID) (*LotView, error) {
	var lot domain.Lot
	err := s.DB.WithContext(ctx).Preload("Cars", func(db *gorm.DB) *gorm.DB {
		return db.Order("car_id")
	}).Where("lot_id = ?", lotID).First(&lot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Lot")
		}
		return nil, err
	}
	v := s.view(lot)
	return &v, nil
}

// ListLots lists lots newest first, optionally filtered by stored status label.
func (s *Service) ListLots(ctx context.Context, status string) ([]LotView, error) {
	q := s.DB.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		st := domain.LotStatus(status)
		if !st.Valid() {
			return nil, apperr.InvalidInput("unknown lot status %q", status)
		}
		q = q.Where("status = ?", st)
	}
	var rows []domain.Lot
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]LotView, 0, len(rows))
	for _, l := range rows {
		out = append(out, s.view(l))
	}
	return out, nil
}

// LotEvents returns the audit trail of a lot.
func (s *Service) LotEvents(ctx context.Context, lotID uuid.UUID) ([]domain.LotEvent, error) {
	return s.Events.ForLot(ctx, lotID)
}

func (s *Service) refreshAndView(ctx context.Context, lotID uuid.UUID) (*LotView, error) {
	if _, err := s.RefreshLot(ctx, lotID); err != nil {
		if _, partial := apperr.IsPartialCascade(err); !partial {
			return nil, err
		}
		v, gerr := s.GetLot(ctx, lotID)
		if gerr != nil {
			return nil, err
		}
		return v, err
	}
	return s.GetLot(ctx, lotID)
}
