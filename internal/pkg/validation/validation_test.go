package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidLotNumber(t *testing.T) {
	for _, ok := range []string{"L-1", "A100", "2025/03 B", "lot_7"} {
		assert.True(t, IsValidLotNumber(ok), ok)
	}
	for _, bad := range []string{"", "-L1", "L<1>", "lot;drop"} {
		assert.False(t, IsValidLotNumber(bad), bad)
	}
}

func TestIsValidVIN(t *testing.T) {
	assert.True(t, IsValidVIN(""))
	assert.True(t, IsValidVIN("JN1TANY62U0000001"))
	assert.True(t, IsValidVIN("jn1tany62u0000001"))
	assert.False(t, IsValidVIN("JN1TANY62U000000"))
	assert.False(t, IsValidVIN("JN1TANY62U000000O"))
}

func TestIsValidModelYear(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsValidModelYear(0, now))
	assert.True(t, IsValidModelYear(2026, now))
	assert.False(t, IsValidModelYear(2027, now))
	assert.False(t, IsValidModelYear(1800, now))
}
