package lifecycle

import (
	"sort"
	"time"

	"autolot-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CarChange is a car whose stored status differs from its resolved one.
type CarChange struct {
	CarID uuid.UUID        `json:"car_id"`
	From  domain.CarStatus `json:"from"`
	To    domain.CarStatus `json:"to"`
}

// CarGroup is one status write covering several cars.
type CarGroup struct {
	Status domain.CarStatus
	CarIDs []uuid.UUID
}

// CascadePlan is the full set of writes that makes a lot and its cars consistent at one instant.
type CascadePlan struct {
	LotID   uuid.UUID
	From    domain.LotStatus
	To      domain.LotStatus
	Cars    map[uuid.UUID]domain.CarStatus
	Changes []CarChange
}

// LotChanged reports whether the stored lot label is stale.
func (p CascadePlan) LotChanged() bool {
	return p.From != p.To
}

// Groups returns every car of the lot grouped by target status, ordered by
// status label and car id so repeated plans issue identical writes.
func (p CascadePlan) Groups() []CarGroup {
	byStatus := map[domain.CarStatus][]uuid.UUID{}
	for id, st := range p.Cars {
		byStatus[st] = append(byStatus[st], id)
	}
	statuses := lo.Keys(byStatus)
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	groups := make([]CarGroup, 0, len(statuses))
	for _, st := range statuses {
		ids := byStatus[st]
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		groups = append(groups, CarGroup{Status: st, CarIDs: ids})
	}
	return groups
}

// Stragglers lists cars that must be corrected to Closed after the group
// writes when the lot is terminal. Input is the re-read car set.
func (p CascadePlan) Stragglers(current []domain.Car) []uuid.UUID {
	if !p.To.Terminal() {
		return nil
	}
	return lo.FilterMap(current, func(c domain.Car, _ int) (uuid.UUID, bool) {
		return c.CarID, c.Status != domain.CarClosed
	})
}

// Plan resolves the lot and every car at now. Same inputs always produce the same plan.
func Plan(lot domain.Lot, cars []domain.Car, now time.Time) CascadePlan {
	to := ResolveLot(LotInputOf(lot), now)
	plan := CascadePlan{
		LotID: lot.LotID,
		From:  lot.Status,
		To:    to,
		Cars:  make(map[uuid.UUID]domain.CarStatus, len(cars)),
	}
	for _, c := range cars {
		target := ResolveCar(to, CarInputOf(c), now)
		plan.Cars[c.CarID] = target
		if c.Status != target {
			plan.Changes = append(plan.Changes, CarChange{CarID: c.CarID, From: c.Status, To: target})
		}
	}
	sort.Slice(plan.Changes, func(i, j int) bool {
		return plan.Changes[i].CarID.String() < plan.Changes[j].CarID.String()
	})
	return plan
}
