package ranking

import (
	"math/rand"
	"testing"
	"time"

	"autolot-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

var (
	bidderA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bidderB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	bidderC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	carID   = uuid.MustParse("00000000-0000-0000-0000-0000000000ca")
	t0      = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
)

func bid(user uuid.UUID, amount int64, minute int) domain.Bid {
	return domain.Bid{
		BidID:     uuid.New(),
		CarID:     carID,
		UserID:    user,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func TestRank_EffectiveBidPerBidder(t *testing.T) {
	bids := []domain.Bid{
		bid(bidderA, 100, 1),
		bid(bidderA, 150, 2),
		bid(bidderB, 120, 3),
	}

	ranked := Rank(bids)

	check.Equal(t, 2, len(ranked))
	check.Equal(t, bidderA, ranked[0].UserID)
	check.Equal(t, "150", ranked[0].Amount.String())
	check.Equal(t, 1, ranked[0].Rank)
	check.Equal(t, bids[1].BidID, ranked[0].BidID)
	check.Equal(t, bidderB, ranked[1].UserID)
	check.Equal(t, "120", ranked[1].Amount.String())
	check.Equal(t, 2, ranked[1].Rank)
}

func TestRank_Empty(t *testing.T) {
	ranked := Rank(nil)
	check.NotNil(t, ranked)
	check.Equal(t, 0, len(ranked))

	_, ok := SelectAutomaticWinner(ranked)
	check.False(t, ok)
}

func TestRank_TieOnAmountPrefersMostRecent(t *testing.T) {
	bids := []domain.Bid{
		bid(bidderA, 200, 1),
		bid(bidderB, 200, 5),
		bid(bidderC, 50, 9),
	}
	ranked := Rank(bids)

	check.Equal(t, 3, len(ranked))
	check.Equal(t, bidderB, ranked[0].UserID)
	check.Equal(t, bidderA, ranked[1].UserID)
	check.Equal(t, bidderC, ranked[2].UserID)
}

func TestEffective_SameAmountKeepsLatestRow(t *testing.T) {
	older := bid(bidderA, 300, 1)
	newer := bid(bidderA, 300, 4)
	eff := Effective([]domain.Bid{newer, older})

	check.Equal(t, 1, len(eff))
	check.Equal(t, newer.BidID, eff[0].BidID)
}

func TestRank_DecimalPrecision(t *testing.T) {
	a := bid(bidderA, 0, 1)
	a.Amount = decimal.RequireFromString("100.10")
	b := bid(bidderB, 0, 2)
	b.Amount = decimal.RequireFromString("100.09")

	ranked := Rank([]domain.Bid{b, a})
	check.Equal(t, bidderA, ranked[0].UserID)
}

func TestRank_StableUnderShuffle(t *testing.T) {
	bids := []domain.Bid{
		bid(bidderA, 100, 1),
		bid(bidderA, 150, 2),
		bid(bidderB, 150, 2),
		bid(bidderB, 90, 3),
		bid(bidderC, 150, 2),
		bid(bidderC, 10, 7),
	}
	want := Rank(bids)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.Bid(nil), bids...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := Rank(shuffled)

		check.Equal(t, len(want), len(got))
		for k := range want {
			check.Equal(t, want[k].BidID, got[k].BidID)
			check.Equal(t, want[k].Rank, got[k].Rank)
		}
	}
}

func TestRank_Ordering(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	users := []uuid.UUID{bidderA, bidderB, bidderC, uuid.New(), uuid.New()}
	var bids []domain.Bid
	for i := 0; i < 200; i++ {
		bids = append(bids, bid(users[r.Intn(len(users))], int64(r.Intn(20)*10+10), r.Intn(30)))
	}
	ranked := Rank(bids)

	seen := map[uuid.UUID]bool{}
	for i, rb := range ranked {
		check.False(t, seen[rb.UserID])
		seen[rb.UserID] = true
		check.Equal(t, i+1, rb.Rank)
		if i == 0 {
			continue
		}
		prev := ranked[i-1]
		c := prev.Amount.Cmp(rb.Amount)
		check.True(t, c > 0 || (c == 0 && !prev.CreatedAt.Before(rb.CreatedAt)))
	}
	check.True(t, len(ranked) <= len(users))
}

func TestSelectAutomaticWinner(t *testing.T) {
	ranked := Rank([]domain.Bid{bid(bidderB, 120, 3), bid(bidderA, 150, 2)})
	id, ok := SelectAutomaticWinner(ranked)
	check.True(t, ok)
	check.Equal(t, ranked[0].BidID, id)

	check.Equal(t, 1, RankOf(ranked, bidderA))
	check.Equal(t, 2, RankOf(ranked, bidderB))
	check.Equal(t, 0, RankOf(ranked, bidderC))
}
