package lotevents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"autolot-backend/internal/domain"
	"autolot-backend/internal/infrastructure/database"
	"autolot-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupEventsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func TestRecordAndList(t *testing.T) {
	svc, db := setupEventsTest(t)
	ctx := context.Background()
	lot := domain.Lot{LotNumber: "L-1", Status: domain.LotPending}
	require.NoError(t, db.Create(&lot).Error)

	actor := uuid.New()
	svc.Record(ctx, lot.LotID, domain.EventImported, map[string]interface{}{"cars": 3}, &actor)
	svc.Record(ctx, lot.LotID, domain.EventApproved, nil, nil)

	events, err := svc.ForLot(ctx, lot.LotID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventImported, events[0].EventType)
	assert.Equal(t, actor, *events[0].ActorID)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(events[0].EventData, &data))
	assert.Equal(t, float64(3), data["cars"])
	assert.Equal(t, "{}", string(events[1].EventData))
}

func TestForLot_Errors(t *testing.T) {
	svc, _ := setupEventsTest(t)
	_, err := svc.ForLot(context.Background(), uuid.Nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.ForLot(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRecord_NilServiceAndStoreFailure(t *testing.T) {
	var nilSvc *Service
	nilSvc.Record(context.Background(), uuid.New(), domain.EventApproved, nil, nil)

	svc, db := setupEventsTest(t)
	require.NoError(t, db.Migrator().DropTable(&domain.LotEvent{}))
	// Must not panic or return anything.
	svc.Record(context.Background(), uuid.New(), domain.EventApproved, nil, nil)
}
