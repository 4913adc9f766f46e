package servertime

import (
	"time"

	"autolot-backend/internal/pkg/clock"
	"autolot-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the server clock so clients never compute "now" themselves.
type Handlers struct {
	Converter *clock.Converter
}

type instant struct {
	UTC       time.Time `json:"utc"`
	Display   string    `json:"display"`
	UTCOffset string    `json:"utc_offset"`
}

func (h *Handlers) instant(t time.Time) instant {
	return instant{UTC: t.UTC(), Display: h.Converter.ToDisplay(t), UTCOffset: t.In(h.Converter.Zone).Format("-07:00")}
}

// GET /api/v1/time/now
func (h *Handlers) Now(c *fiber.Ctx) error {
	return response.Success(c, "Server time", h.instant(h.Converter.Now()), nil)
}

// POST /api/v1/time/convert with {"local": "2025-06-01T14:30"}, {"date": ..., "time": ...} or {"utc": RFC3339}
func (h *Handlers) Convert(c *fiber.Ctx) error {
	var body struct {
		Local string `json:"local"`
		Date  string `json:"date"`
		Time  string `json:"time"`
		UTC   string `json:"utc"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	var (
		t   time.Time
		err error
	)
	switch {
	case body.Local != "":
		t, err = h.Converter.ToStorageInstant(body.Local)
	case body.Date != "" || body.Time != "":
		t, err = h.Converter.FromFields(body.Date, body.Time)
	case body.UTC != "":
		t, err = time.Parse(time.RFC3339, body.UTC)
		if err != nil {
			return response.Error(c, "utc must be an RFC 3339 timestamp", fiber.StatusBadRequest, nil)
		}
	default:
		return response.Error(c, "one of local, date/time or utc is required", fiber.StatusBadRequest, nil)
	}
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Time converted", h.instant(t), nil)
}
