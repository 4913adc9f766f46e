package winners

import (
	"fmt"

	"autolot-backend/internal/pkg/apperr"
)

var ErrNoWinner = fmt.Errorf("%w: no winner selected for this car", apperr.ErrNotFound)
