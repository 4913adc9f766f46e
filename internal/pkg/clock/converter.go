package clock

import (
	"fmt"
	"strings"
	"time"

	"autolot-backend/internal/pkg/apperr"
)

// DisplayLayout is the minute-precision local format exchanged with the UI.
const DisplayLayout = "2006-01-02T15:04"

// DefaultOffsetHours is the auction display zone (UTC+4, no daylight rules).
const DefaultOffsetHours = 4

var inputLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Converter translates between display strings and UTC storage instants.
type Converter struct {
	Zone  *time.Location
	Clock Clock
}

// NewConverter builds a converter for a fixed UTC offset. A nil clock uses System.
func NewConverter(offsetHours int, c Clock) *Converter {
	if c == nil {
		c = System{}
	}
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Converter{
		Zone:  time.FixedZone(name, offsetHours*int(time.Hour/time.Second)),
		Clock: c,
	}
}

// Now returns the current storage instant.
func (c *Converter) Now() time.Time {
	return c.Clock.Now().UTC()
}

// ToDisplay renders an instant as local auction time with minute precision.
func (c *Converter) ToDisplay(t time.Time) string {
	return t.In(c.Zone).Format(DisplayLayout)
}

// ToDisplayPtr is ToDisplay for optional instants; nil renders as "".
func (c *Converter) ToDisplayPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return c.ToDisplay(*t)
}

// ToStorageInstant parses a local auction time into a UTC instant.
// Seconds are accepted but truncated to the minute.
func (c *Converter) ToStorageInstant(local string) (time.Time, error) {
	s := strings.TrimSpace(local)
	if s == "" {
		return time.Time{}, apperr.InvalidInput("date/time is required")
	}
	for _, layout := range inputLayouts {
		t, err := time.ParseInLocation(layout, s, c.Zone)
		if err == nil {
			return t.Truncate(time.Minute).UTC(), nil
		}
	}
	return time.Time{}, apperr.InvalidInput("cannot parse %q as local date/time (expected YYYY-MM-DDTHH:MM)", local)
}

// FromFields joins the separate date and time inputs of a form ("2025-06-01", "14:30").
func (c *Converter) FromFields(date, hm string) (time.Time, error) {
	date, hm = strings.TrimSpace(date), strings.TrimSpace(hm)
	if date == "" || hm == "" {
		return time.Time{}, apperr.InvalidInput("both date and time are required")
	}
	return c.ToStorageInstant(date + "T" + hm)
}
