package validation

import (
	"regexp"
	"strings"
	"time"
)

// Lot numbers as printed on auction catalogues: "L-12", "2025/03 A".
var lotNumberRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _/\-]{0,63}$`)

// VIN per ISO 3779: 17 characters, no I, O or Q.
var vinRe = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

const firstModelYear = 1886

func IsValidLotNumber(number string) bool {
	return lotNumberRe.MatchString(number)
}

// IsValidVIN accepts an empty VIN; many imported cars arrive without one.
func IsValidVIN(vin string) bool {
	return vin == "" || vinRe.MatchString(strings.ToUpper(vin))
}

// IsValidModelYear accepts 0 (unknown) or a year up to next year's models.
func IsValidModelYear(year int, now time.Time) bool {
	return year == 0 || (year >= firstModelYear && year <= now.Year()+1)
}
