package database

import (
	"context"
	"testing"

	"autolot-backend/internal/pkg/apperr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDBTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db := setupDBTest(t)
	for _, table := range []string{"Users", "Lots", "Cars", "Bids", "LotEvents"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestProcedures_RejectsUnknownName(t *testing.T) {
	p := &Procedures{DB: setupDBTest(t)}
	err := p.Call(context.Background(), "drop_everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestProcedures_MissingFunctionIsNonFatal(t *testing.T) {
	// sqlite has no such function; the classifier treats it like a missing Postgres procedure.
	p := &Procedures{DB: setupDBTest(t)}
	err := p.Call(context.Background(), ProcRefreshCarStatuses)
	require.Error(t, err)
	assert.Equal(t, apperr.CategoryNotFound, apperr.Classify(err))
	assert.True(t, apperr.IsNonFatal(err))
}
