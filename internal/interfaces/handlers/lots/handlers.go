package lots

import (
	bidsvc "autolot-backend/internal/application/bids"
	lotsvc "autolot-backend/internal/application/lots"
	winnersvc "autolot-backend/internal/application/winners"
	"autolot-backend/internal/middleware"
	"autolot-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *lotsvc.Service
	Results *bidsvc.Service
	Winners *winnersvc.Service
}

// scheduleBody accepts either full local timestamps or the split date/time
// form fields.
type scheduleBody struct {
	BiddingStart string `json:"bidding_start"`
	BiddingEnd   string `json:"bidding_end"`
	StartDate    string `json:"start_date"`
	StartTime    string `json:"start_time"`
	EndDate      string `json:"end_date"`
	EndTime      string `json:"end_time"`
}

func (h *Handlers) schedule(c *fiber.Ctx) (lotsvc.ScheduleInput, error) {
	var body scheduleBody
	if err := c.BodyParser(&body); err != nil {
		return lotsvc.ScheduleInput{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	in := lotsvc.ScheduleInput{Start: body.BiddingStart, End: body.BiddingEnd}
	conv := h.Service.Converter
	if in.Start == "" && body.StartDate != "" {
		t, err := conv.FromFields(body.StartDate, body.StartTime)
		if err != nil {
			return in, err
		}
		in.Start = conv.ToDisplay(t)
	}
	if in.End == "" && body.EndDate != "" {
		t, err := conv.FromFields(body.EndDate, body.EndTime)
		if err != nil {
			return in, err
		}
		in.End = conv.ToDisplay(t)
	}
	return in, nil
}

func lotID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("lot_id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid lot_id format")
	}
	return id, nil
}

// POST /api/v1/lots/import
func (h *Handlers) ImportLot(c *fiber.Ctx) error {
	var body struct {
		LotNumber string             `json:"lot_number"`
		Cars      []lotsvc.CarImport `json:"cars"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	lot, err := h.Service.CreateLot(c.UserContext(), lotsvc.CreateLotInput{
		LotNumber: body.LotNumber,
		Cars:      body.Cars,
		Actor:     middleware.ActorID(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Lot imported successfully", lot, nil)
}

// GET /api/v1/lots?status=Active
func (h *Handlers) ListLots(c *fiber.Ctx) error {
	lots, err := h.Service.ListLots(c.UserContext(), c.Query("status"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Lots fetched successfully", lots, fiber.Map{"count": len(lots)})
}

// GET /api/v1/lots/:lot_id
func (h *Handlers) GetLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	lot, err := h.Service.GetLot(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Lot fetched successfully", lot, nil)
}

// GET /api/v1/lots/:lot_id/events
func (h *Handlers) LotEvents(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	events, err := h.Service.LotEvents(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Lot events fetched successfully", events, nil)
}

// POST /api/v1/lots/:lot_id/approve
func (h *Handlers) ApproveLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	in, err := h.schedule(c)
	if err != nil {
		return response.FromError(c, err)
	}
	lot, err := h.Service.ApproveLot(c.UserContext(), id, in, middleware.ActorID(c))
	return response.SuccessOrPartial(c, "Lot approved", lot, err)
}

// PUT /api/v1/lots/:lot_id/schedule
func (h *Handlers) RescheduleLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	in, err := h.schedule(c)
	if err != nil {
		return response.FromError(c, err)
	}
	lot, err := h.Service.RescheduleLot(c.UserContext(), id, in, middleware.ActorID(c))
	return response.SuccessOrPartial(c, "Lot rescheduled", lot, err)
}

// POST /api/v1/lots/:lot_id/early-close
func (h *Handlers) EarlyCloseLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	lot, err := h.Service.EarlyCloseLot(c.UserContext(), id, body.Reason, middleware.ActorID(c))
	return response.SuccessOrPartial(c, "Lot closed early", lot, err)
}

// PATCH /api/v1/lots/:lot_id/number
func (h *Handlers) RenumberLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		LotNumber string `json:"lot_number"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	lot, err := h.Service.RenumberLot(c.UserContext(), id, body.LotNumber, middleware.ActorID(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Lot number updated", lot, nil)
}

// POST /api/v1/lots/:lot_id/refresh
func (h *Handlers) RefreshLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.RefreshLot(c.UserContext(), id)
	return response.SuccessOrPartial(c, "Lot status refreshed", res, err)
}

// DELETE /api/v1/lots/:lot_id
func (h *Handlers) DeleteLot(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.DeleteLot(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Lot deleted", fiber.Map{"lot_id": id}, nil)
}

// GET /api/v1/lots/:lot_id/results
func (h *Handlers) LotResults(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Results.LotResults(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Lot results fetched successfully", res, nil)
}

// POST /api/v1/lots/:lot_id/winners/auto?overwrite=true
func (h *Handlers) AssignLotWinners(c *fiber.Ctx) error {
	id, err := lotID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if _, err := h.Service.GetLot(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Winners.AssignLotWinners(c.UserContext(), id, c.QueryBool("overwrite", false))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Winners assigned", out, nil)
}
