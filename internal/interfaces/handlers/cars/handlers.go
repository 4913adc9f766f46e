package cars

import (
	bidsvc "autolot-backend/internal/application/bids"
	lotsvc "autolot-backend/internal/application/lots"
	winnersvc "autolot-backend/internal/application/winners"
	"autolot-backend/internal/middleware"
	"autolot-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Lots    *lotsvc.Service
	Bids    *bidsvc.Service
	Winners *winnersvc.Service
}

func carID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("car_id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid car_id format")
	}
	return id, nil
}

// PATCH /api/v1/cars/:car_id/bidding
func (h *Handlers) SetBidding(c *fiber.Ctx) error {
	id, err := carID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		Enabled      *bool  `json:"bidding_enabled"`
		BiddingStart string `json:"bidding_start"`
		BiddingEnd   string `json:"bidding_end"`
	}
	if err := c.BodyParser(&body); err != nil || body.Enabled == nil {
		return response.Error(c, "bidding_enabled is required", fiber.StatusBadRequest, nil)
	}
	var window *lotsvc.ScheduleInput
	if body.BiddingStart != "" || body.BiddingEnd != "" {
		window = &lotsvc.ScheduleInput{Start: body.BiddingStart, End: body.BiddingEnd}
	}
	car, err := h.Lots.SetCarBidding(c.UserContext(), id, *body.Enabled, window, middleware.ActorID(c))
	return response.SuccessOrPartial(c, "Car bidding updated", car, err)
}

// GET /api/v1/cars/:car_id/bids
func (h *Handlers) RankedBids(c *fiber.Ctx) error {
	id, err := carID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	ranked, err := h.Bids.RankedBids(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Bids fetched successfully", ranked, fiber.Map{"bidders": len(ranked)})
}

// POST /api/v1/cars/:car_id/bids
func (h *Handlers) PlaceBid(c *fiber.Ctx) error {
	id, err := carID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		Amount decimal.NullDecimal `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || !body.Amount.Valid {
		return response.Error(c, "amount is required", fiber.StatusBadRequest, nil)
	}
	res, err := h.Bids.PlaceBid(c.UserContext(), bidsvc.PlaceBidInput{CarID: id, UserID: userID, Amount: body.Amount.Decimal})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Bid placed successfully", res, nil)
}

// GET /api/v1/bids/mine
func (h *Handlers) MyBids(c *fiber.Ctx) error {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	bids, err := h.Bids.BidderBids(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Bids fetched successfully", bids, nil)
}

// PUT /api/v1/cars/:car_id/winner
func (h *Handlers) SetWinner(c *fiber.Ctx) error {
	id, err := carID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		BidID string `json:"bid_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "bid_id is required", fiber.StatusBadRequest, nil)
	}
	bidID, err := uuid.Parse(body.BidID)
	if err != nil {
		return response.Error(c, "Invalid bid_id format", fiber.StatusBadRequest, nil)
	}
	bid, err := h.Winners.SetManualWinner(c.UserContext(), id, bidID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Winner selected", bid, nil)
}

// DELETE /api/v1/cars/:car_id/winner
func (h *Handlers) ClearWinner(c *fiber.Ctx) error {
	id, err := carID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Winners.ClearWinner(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Winner cleared", fiber.Map{"car_id": id}, nil)
}

// POST /api/v1/cars/:car_id/winner/auto
func (h *Handlers) AutoWinner(c *fiber.Ctx) error {
	id, err := carID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	bidID, err := h.Winners.AssignAutomaticWinner(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	if bidID == nil {
		return response.Success(c, "No bids on this car; winner cleared", fiber.Map{"car_id": id, "bid_id": nil}, nil)
	}
	return response.Success(c, "Winner assigned", fiber.Map{"car_id": id, "bid_id": bidID}, nil)
}
