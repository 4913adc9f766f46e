package lots

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidsvc "autolot-backend/internal/application/bids"
	"autolot-backend/internal/application/cascade"
	"autolot-backend/internal/application/lotevents"
	lotsvc "autolot-backend/internal/application/lots"
	winnersvc "autolot-backend/internal/application/winners"
	"autolot-backend/internal/domain"
	"autolot-backend/internal/infrastructure/database"
	"autolot-backend/internal/pkg/clock"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLotsHandlers(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	fc := clock.NewFixed(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	events := &lotevents.Service{DB: db}
	winners := &winnersvc.Service{DB: db, Events: events}
	h := &Handlers{
		Service: &lotsvc.Service{
			DB:        db,
			Converter: clock.NewConverter(clock.DefaultOffsetHours, fc),
			Cascader:  cascade.New(db, fc),
			Winners:   winners,
			Events:    events,
		},
		Results: &bidsvc.Service{DB: db, Clock: fc},
		Winners: winners,
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", map[string]interface{}{
			"user_id": "00000000-0000-0000-0000-000000000001",
			"role":    "admin",
		})
		return c.Next()
	})
	app.Post("/lots/import", h.ImportLot)
	app.Get("/lots", h.ListLots)
	app.Get("/lots/:lot_id", h.GetLot)
	app.Get("/lots/:lot_id/events", h.LotEvents)
	app.Post("/lots/:lot_id/approve", h.ApproveLot)
	app.Put("/lots/:lot_id/schedule", h.RescheduleLot)
	app.Post("/lots/:lot_id/early-close", h.EarlyCloseLot)
	app.Patch("/lots/:lot_id/number", h.RenumberLot)
	app.Post("/lots/:lot_id/refresh", h.RefreshLot)
	app.Delete("/lots/:lot_id", h.DeleteLot)
	app.Get("/lots/:lot_id/results", h.LotResults)
	app.Post("/lots/:lot_id/winners/auto", h.AssignLotWinners)
	return app, db
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, envelope) {
	var req = httptest.NewRequest(method, path, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out envelope
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

type lotView struct {
	ID                string `json:"id"`
	LotNumber         string `json:"lot_number"`
	Status            string `json:"status"`
	LiveStatus        string `json:"live_status"`
	EarlyClosed       bool   `json:"early_closed"`
	BiddingStartLocal string `json:"bidding_start_local"`
	BiddingEndLocal   string `json:"bidding_end_local"`
	Cars              []struct {
		Status string `json:"status"`
	} `json:"cars"`
}

func importLot(t *testing.T, app *fiber.App, number string) lotView {
	code, out := call(t, app, "POST", "/lots/import", map[string]interface{}{
		"lot_number": number,
		"cars": []map[string]interface{}{
			{"make": "Nissan", "model": "Patrol", "year": 2021, "vin": "JN1TANY62U0000001"},
			{"make": "Lexus", "model": "LX", "year": 2020},
		},
	})
	require.Equal(t, 201, code)
	var v lotView
	require.NoError(t, json.Unmarshal(out.Data, &v))
	return v
}

func TestImportLot(t *testing.T) {
	app, _ := setupLotsHandlers(t)
	v := importLot(t, app, "A-100")
	assert.Equal(t, "A-100", v.LotNumber)
	assert.Equal(t, "Pending", v.Status)

	code, out := call(t, app, "POST", "/lots/import", map[string]interface{}{"lot_number": "A-100"})
	assert.Equal(t, 409, code)
	assert.Equal(t, "error", out.Status)

	code, _ = call(t, app, "POST", "/lots/import", map[string]interface{}{"lot_number": ""})
	assert.Equal(t, 400, code)
}

func TestLotLifecycleOverHTTP(t *testing.T) {
	app, _ := setupLotsHandlers(t)
	v := importLot(t, app, "A-200")

	code, out := call(t, app, "POST", "/lots/"+v.ID+"/approve", map[string]string{
		"start_date": "2025-01-10", "start_time": "12:00",
		"end_date": "2025-01-10", "end_time": "14:00",
	})
	require.Equal(t, 200, code)
	var approved lotView
	require.NoError(t, json.Unmarshal(out.Data, &approved))
	assert.Equal(t, "Active", approved.Status)
	assert.Equal(t, "2025-01-10T12:00", approved.BiddingStartLocal)
	for _, c := range approved.Cars {
		assert.Equal(t, "Active", c.Status)
	}

	code, out = call(t, app, "POST", "/lots/"+v.ID+"/early-close", map[string]string{"reason": "Seller withdrew"})
	require.Equal(t, 200, code)
	var closed lotView
	require.NoError(t, json.Unmarshal(out.Data, &closed))
	assert.Equal(t, "Early Closed", closed.Status)
	assert.True(t, closed.EarlyClosed)
	for _, c := range closed.Cars {
		assert.Equal(t, "Closed", c.Status)
	}

	code, _ = call(t, app, "POST", "/lots/"+v.ID+"/early-close", nil)
	assert.Equal(t, 409, code)

	code, out = call(t, app, "PUT", "/lots/"+v.ID+"/schedule", map[string]string{
		"bidding_start": "2025-01-12T12:00", "bidding_end": "2025-01-12T14:00",
	})
	require.Equal(t, 200, code)
	var reopened lotView
	require.NoError(t, json.Unmarshal(out.Data, &reopened))
	assert.Equal(t, "Approved", reopened.Status)
	assert.False(t, reopened.EarlyClosed)
	for _, c := range reopened.Cars {
		assert.Equal(t, "Upcoming", c.Status)
	}

	code, _ = call(t, app, "PATCH", "/lots/"+v.ID+"/number", map[string]string{"lot_number": "A-201"})
	assert.Equal(t, 409, code)

	code, out = call(t, app, "GET", "/lots/"+v.ID+"/events", nil)
	assert.Equal(t, 200, code)
	var events []domain.LotEvent
	require.NoError(t, json.Unmarshal(out.Data, &events))
	assert.NotEmpty(t, events)

	code, _ = call(t, app, "POST", "/lots/"+v.ID+"/refresh", nil)
	assert.Equal(t, 200, code)

	code, _ = call(t, app, "GET", "/lots/"+v.ID+"/results", nil)
	assert.Equal(t, 200, code)

	code, out = call(t, app, "POST", "/lots/"+v.ID+"/winners/auto", nil)
	assert.Equal(t, 200, code)
}

func TestApproveLot_BadInput(t *testing.T) {
	app, _ := setupLotsHandlers(t)
	v := importLot(t, app, "A-300")

	code, out := call(t, app, "POST", "/lots/"+v.ID+"/approve", map[string]string{"bidding_start": "soon", "bidding_end": "later"})
	assert.Equal(t, 400, code)
	assert.Contains(t, out.Error.Message, "Invalid input")

	code, _ = call(t, app, "POST", "/lots/not-a-uuid/approve", map[string]string{})
	assert.Equal(t, 400, code)

	code, _ = call(t, app, "POST", "/lots/00000000-0000-0000-0000-00000000abcd/approve", map[string]string{
		"bidding_start": "2025-01-10T12:00", "bidding_end": "2025-01-10T14:00",
	})
	assert.Equal(t, 404, code)
}

func TestListAndDelete(t *testing.T) {
	app, db := setupLotsHandlers(t)
	v := importLot(t, app, "A-400")
	importLot(t, app, "A-401")

	code, out := call(t, app, "GET", "/lots?status=Pending", nil)
	assert.Equal(t, 200, code)
	var list []lotView
	require.NoError(t, json.Unmarshal(out.Data, &list))
	assert.Len(t, list, 2)

	code, _ = call(t, app, "GET", "/lots?status=Open", nil)
	assert.Equal(t, 400, code)

	code, _ = call(t, app, "DELETE", "/lots/"+v.ID, nil)
	assert.Equal(t, 200, code)
	var n int64
	require.NoError(t, db.Model(&domain.Lot{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	code, _ = call(t, app, "GET", "/lots/"+v.ID, nil)
	assert.Equal(t, 404, code)
}
