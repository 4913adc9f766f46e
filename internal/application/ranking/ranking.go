// Package ranking reduces the stored bids of one car to one effective bid per
// bidder and orders them.
package ranking

import (
	"bytes"
	"sort"

	"autolot-backend/internal/domain"

	"github.com/google/uuid"
)

// RankedBid is an effective bid with its 1-based position.
type RankedBid struct {
	domain.Bid
	Rank int `json:"rank"`
}

// Effective keeps the highest bid of every bidder. Equal amounts keep the
// latest row; a final tie falls back to bid id so the choice never depends on input order.
func Effective(bids []domain.Bid) []domain.Bid {
	best := make(map[uuid.UUID]domain.Bid, len(bids))
	order := make([]uuid.UUID, 0, len(bids))
	for _, b := range bids {
		cur, seen := best[b.UserID]
		if !seen {
			order = append(order, b.UserID)
			best[b.UserID] = b
			continue
		}
		if outranks(b, cur) {
			best[b.UserID] = b
		}
	}
	out := make([]domain.Bid, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// Rank returns the effective bids ordered by amount desc, then most recent
// first, assigning rank = position. Empty input yields an empty slice.
func Rank(bids []domain.Bid) []RankedBid {
	effective := Effective(bids)
	sort.Slice(effective, func(i, j int) bool {
		a, b := effective[i], effective[j]
		if outranks(a, b) {
			return true
		}
		if outranks(b, a) {
			return false
		}
		return bytes.Compare(a.UserID[:], b.UserID[:]) < 0
	})

	ranked := make([]RankedBid, len(effective))
	for i, b := range effective {
		ranked[i] = RankedBid{Bid: b, Rank: i + 1}
	}
	return ranked
}

// outranks is the strict order between two bids: amount, then created_at, then bid id.
func outranks(a, b domain.Bid) bool {
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.BidID[:], b.BidID[:]) < 0
}

// SelectAutomaticWinner returns the rank-1 bid id, or false when nobody bid.
func SelectAutomaticWinner(ranked []RankedBid) (uuid.UUID, bool) {
	if len(ranked) == 0 {
		return uuid.Nil, false
	}
	return ranked[0].BidID, true
}

// RankOf returns the rank of a bidder, 0 when the bidder has no effective bid.
func RankOf(ranked []RankedBid, userID uuid.UUID) int {
	for _, r := range ranked {
		if r.UserID == userID {
			return r.Rank
		}
	}
	return 0
}
