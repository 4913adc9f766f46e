package constants

import roles "autolot-backend/internal/pkg/constants"

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewLots:     {roles.Bidder, roles.Business, roles.Admin, roles.Superadmin},
	ImportLot:    {roles.Admin, roles.Superadmin},
	ApproveLot:   {roles.Admin, roles.Superadmin},
	CloseLot:     {roles.Admin, roles.Superadmin},
	EditLot:      {roles.Admin, roles.Superadmin},
	DeleteLot:    {roles.Superadmin},
	PlaceBid:     {roles.Bidder},
	ViewResults:  {roles.Business, roles.Admin, roles.Superadmin},
	SelectWinner: {roles.Business, roles.Admin, roles.Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
