package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"autolot-backend/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	partial := &apperr.PartialCascadeError{LotID: uuid.New(), LotWritten: true, Err: errors.New("car write failed")}
	cases := []struct {
		err  error
		want int
	}{
		{apperr.InvalidInput("bad date"), 400},
		{apperr.ErrInvalidWinner, 422},
		{fmt.Errorf("set winner: %w", apperr.ErrInvalidWinner), 422},
		{apperr.NotFound("Lot"), 404},
		{apperr.Conflict("Lot is closed"), 409},
		{fmt.Errorf("%w: bidder not approved", apperr.ErrPermissionDenied), 403},
		{partial, 207},
		{context.DeadlineExceeded, 503},
		{&pgconn.PgError{Code: "08006"}, 503},
		{fiber.ErrMethodNotAllowed, 405},
		{errors.New("boom"), 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestFromError_HidesInternalMessage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return FromError(c, errors.New("pq: secret table layout"))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Internal Server Error", body.Error.Message)
}

func TestSuccessOrPartial(t *testing.T) {
	failed := uuid.New()
	pce := &apperr.PartialCascadeError{LotID: uuid.New(), LotWritten: true, FailedCarIDs: []uuid.UUID{failed}, Err: errors.New("timeout")}

	app := fiber.New()
	app.Get("/partial", func(c *fiber.Ctx) error {
		return SuccessOrPartial(c, "Lot refreshed", fiber.Map{"status": "Closed"}, pce)
	})
	app.Get("/ok", func(c *fiber.Ctx) error {
		return SuccessOrPartial(c, "Lot refreshed", fiber.Map{"status": "Closed"}, nil)
	})
	app.Get("/nodata", func(c *fiber.Ctx) error {
		return SuccessOrPartial(c, "Lot refreshed", nil, pce)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/partial", nil))
	require.NoError(t, err)
	assert.Equal(t, 207, resp.StatusCode)
	var body struct {
		Status   string                 `json:"status"`
		Data     map[string]interface{} `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "partial", body.Status)
	assert.Equal(t, "Closed", body.Data["status"])
	assert.Equal(t, []interface{}{failed.String()}, body.Metadata["failed_car_ids"])

	resp, err = app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/nodata", nil))
	require.NoError(t, err)
	assert.Equal(t, 207, resp.StatusCode)
	var eb ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&eb))
	details := eb.Error.Details.(map[string]interface{})
	assert.Equal(t, []interface{}{failed.String()}, details["failed_car_ids"])
}
