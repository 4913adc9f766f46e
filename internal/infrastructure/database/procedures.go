package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Server-side consistency sweeps. Their bodies live in the database; the
// engine only invokes them.
const (
	ProcRefreshCarStatuses  = "refresh_car_statuses"
	ProcFixCarsInClosedLots = "fix_cars_in_closed_lots"
)

var knownProcedures = map[string]bool{
	ProcRefreshCarStatuses:  true,
	ProcFixCarsInClosedLots: true,
}

// Procedures calls the allow-listed remote procedures.
type Procedures struct {
	DB *gorm.DB
}

// Call runs SELECT name(). Unknown names are rejected without touching the database.
func (p *Procedures) Call(ctx context.Context, name string) error {
	if !knownProcedures[name] {
		return fmt.Errorf("procedure %q is not allowed", name)
	}
	return p.DB.WithContext(ctx).Exec("SELECT " + name + "()").Error
}
