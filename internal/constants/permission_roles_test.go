package constants

import (
	"testing"

	roles "autolot-backend/internal/pkg/constants"

	"github.com/stretchr/testify/assert"
)

func TestAllowedRole(t *testing.T) {
	assert.True(t, AllowedRole(PlaceBid, roles.Bidder))
	assert.False(t, AllowedRole(PlaceBid, roles.Admin))
	assert.True(t, AllowedRole(SelectWinner, roles.Business))
	assert.False(t, AllowedRole(DeleteLot, roles.Admin))
	assert.True(t, AllowedRole(DeleteLot, roles.Superadmin))
	assert.False(t, AllowedRole("unknown", roles.Superadmin))
}

func TestEveryRoleIsValid(t *testing.T) {
	for perm, allowed := range PermissionRoles {
		assert.NotEmpty(t, allowed, perm)
		for _, r := range allowed {
			assert.True(t, roles.IsValidRole(r), "%s: %s", perm, r)
		}
	}
}
