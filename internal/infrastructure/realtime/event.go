// Package realtime carries row-change notifications between engine instances
// over Redis pub/sub and turns bursts of them into one refresh per lot.
package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Change operations.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent is one row change on a lot, car or bid.
type ChangeEvent struct {
	Table string    `msgpack:"table"`
	Op    string    `msgpack:"op"`
	LotID string    `msgpack:"lot_id"`
	CarID string    `msgpack:"car_id,omitempty"`
	At    time.Time `msgpack:"at"`
}

// Lot parses LotID.
func (e ChangeEvent) Lot() (uuid.UUID, error) {
	id, err := uuid.Parse(e.LotID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("change event without lot id: %w", err)
	}
	return id, nil
}

func Encode(ev ChangeEvent) ([]byte, error) {
	return msgpack.Marshal(ev)
}

func Decode(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := msgpack.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, err
	}
	return ev, nil
}
