package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func reserve(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func newTestAuction(t *testing.T, starting, increment string, reservePrice decimal.NullDecimal) *Auction {
	t.Helper()
	a, err := NewAuction(uuid.New(), NewAuctionParams{
		CarID:         uuid.New(),
		StartingPrice: dec(starting),
		MinIncrement:  dec(increment),
		ReservePrice:  reservePrice,
		EndTime:       testNow.Add(time.Hour),
	}, testNow)
	require.NoError(t, err)
	return a
}

func bidInput(name, phone, amount string) BidInput {
	return BidInput{BidderName: name, PhoneNumber: phone, Amount: dec(amount)}
}

func TestNewAuction(t *testing.T) {
	carID := uuid.New()
	base := NewAuctionParams{
		CarID:         carID,
		StartingPrice: dec("1000"),
		MinIncrement:  dec("50"),
		EndTime:       testNow.Add(time.Hour),
	}

	tests := []struct {
		name      string
		mutate    func(p *NewAuctionParams)
		wantField string
	}{
		{"valid without reserve", func(p *NewAuctionParams) {}, ""},
		{"reserve equal to starting price", func(p *NewAuctionParams) { p.ReservePrice = reserve("1000") }, ""},
		{"reserve above starting price", func(p *NewAuctionParams) { p.ReservePrice = reserve("5000") }, ""},
		{"reserve below starting price", func(p *NewAuctionParams) { p.ReservePrice = reserve("999.99") }, "reserve_price"},
		{"missing car", func(p *NewAuctionParams) { p.CarID = uuid.Nil }, "car_id"},
		{"zero starting price", func(p *NewAuctionParams) { p.StartingPrice = decimal.Zero }, "starting_price"},
		{"negative starting price", func(p *NewAuctionParams) { p.StartingPrice = dec("-1") }, "starting_price"},
		{"zero increment", func(p *NewAuctionParams) { p.MinIncrement = decimal.Zero }, "min_increment"},
		{"starting price with cents", func(p *NewAuctionParams) { p.StartingPrice = dec("1000.25") }, ""},
		{"trailing zeros are fine", func(p *NewAuctionParams) { p.StartingPrice = dec("1000.2500") }, ""},
		{"starting price below a cent", func(p *NewAuctionParams) { p.StartingPrice = dec("1000.004") }, "starting_price"},
		{"increment below a cent", func(p *NewAuctionParams) { p.MinIncrement = dec("0.001") }, "min_increment"},
		{"reserve below a cent", func(p *NewAuctionParams) { p.ReservePrice = reserve("2000.015") }, "reserve_price"},
		{"end time now", func(p *NewAuctionParams) { p.EndTime = testNow }, "end_time"},
		{"end time in the past", func(p *NewAuctionParams) { p.EndTime = testNow.Add(-time.Minute) }, "end_time"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			a, err := NewAuction(uuid.New(), p, testNow)

			if tc.wantField != "" {
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
				assert.Equal(t, tc.wantField, vErr.Field)
				assert.Nil(t, a)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StatusActive, a.Status)
			assert.True(t, a.CurrentPrice.Equal(p.StartingPrice))
			assert.Empty(t, a.Bids)
			assert.Zero(t, a.BidCount)
			assert.Equal(t, testNow, a.CreatedAt)
			assert.Equal(t, testNow, a.UpdatedAt)
			assert.NoError(t, a.CheckInvariants())
		})
	}
}

// 1000/50 walk-through: exact threshold accepted, ties rejected.
func TestPlaceBidScenario(t *testing.T) {
	a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
	at := testNow.Add(time.Minute)

	_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777123456", "1000"), at)
	var tooLow *BidTooLowError
	require.True(t, errors.As(err, &tooLow))
	assert.True(t, tooLow.MinimumRequired.Equal(dec("1050")))
	assert.ErrorIs(t, err, ErrBidTooLow)

	_, err = a.PlaceBid(uuid.New(), bidInput("Ali", "777123456", "1050"), at)
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(dec("1050")))
	assert.Equal(t, 1, a.BidCount)

	_, err = a.PlaceBid(uuid.New(), bidInput("Omar", "777654321", "1050"), at)
	require.True(t, errors.As(err, &tooLow))
	assert.True(t, tooLow.MinimumRequired.Equal(dec("1100")))

	bid, err := a.PlaceBid(uuid.New(), bidInput("Omar", "777654321", "1200"), at)
	require.NoError(t, err)
	assert.True(t, a.CurrentPrice.Equal(dec("1200")))
	assert.Equal(t, 2, a.BidCount)
	assert.True(t, a.Bids[0].Amount.Equal(dec("1200")))
	assert.Equal(t, bid, a.Bids[0])
	assert.Equal(t, "777***321", bid.MaskedPhone)
	assert.NoError(t, a.CheckInvariants())
}

func TestPlaceBidMinimumIncrementBoundary(t *testing.T) {
	a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
	at := testNow.Add(time.Minute)

	_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777123456", "1049.99"), at)
	assert.ErrorIs(t, err, ErrBidTooLow)
	assert.Zero(t, a.BidCount)

	_, err = a.PlaceBid(uuid.New(), bidInput("Ali", "777123456", "1050.00"), at)
	assert.NoError(t, err)
}

func TestPlaceBidMonotonicPriceAndOrdering(t *testing.T) {
	a := newTestAuction(t, "500", "10", decimal.NullDecimal{})
	at := testNow.Add(time.Minute)

	amounts := []string{"510", "525.50", "600", "610", "999.99", "1500"}
	prev := a.CurrentPrice
	for i, amt := range amounts {
		_, err := a.PlaceBid(uuid.New(), bidInput("Bidder", "0501234567", amt), at.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, a.CurrentPrice.GreaterThanOrEqual(prev))
		assert.True(t, a.CurrentPrice.Equal(dec(amt)))
		prev = a.CurrentPrice
		require.NoError(t, a.CheckInvariants())
	}
	assert.Equal(t, len(amounts), a.BidCount)
	assert.True(t, a.Bids[len(a.Bids)-1].Amount.Equal(dec("510")))
}

func TestPlaceBidStampsUpdatedAtAndVersion(t *testing.T) {
	a := newTestAuction(t, "100", "1", decimal.NullDecimal{})
	before := a.Version
	at := testNow.Add(2 * time.Minute)

	bid, err := a.PlaceBid(uuid.New(), bidInput("  Sara  ", "+967 (777) 123-456", "101"), at)
	require.NoError(t, err)
	assert.Equal(t, at, a.UpdatedAt)
	assert.Equal(t, at, bid.CreatedAt)
	assert.Equal(t, before+1, a.Version)
	assert.Equal(t, "Sara", bid.BidderName)
	assert.Equal(t, "967******456", bid.MaskedPhone)
	assert.Equal(t, a.ID, bid.AuctionID)
}

func TestCloseAuction(t *testing.T) {
	closeAt := testNow.Add(2 * time.Hour)

	t.Run("no bids ends unsold", func(t *testing.T) {
		a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
		require.NoError(t, a.Close(closeAt))
		assert.Equal(t, StatusEnded, a.Status)
		assert.Empty(t, a.WinnerPhone)
		assert.Equal(t, closeAt, a.UpdatedAt)
	})

	t.Run("reserve not met ends unsold", func(t *testing.T) {
		a := newTestAuction(t, "1000", "50", reserve("5000"))
		_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777123456", "4000"), testNow)
		require.NoError(t, err)

		require.NoError(t, a.Close(closeAt))
		assert.Equal(t, StatusEnded, a.Status)
		assert.Empty(t, a.WinnerPhone)
		assert.NoError(t, a.CheckInvariants())
	})

	t.Run("reserve met sells to top bidder", func(t *testing.T) {
		a := newTestAuction(t, "1000", "50", reserve("5000"))
		_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777000111", "4000"), testNow)
		require.NoError(t, err)
		_, err = a.PlaceBid(uuid.New(), bidInput("Omar", "777123456", "5200"), testNow)
		require.NoError(t, err)

		require.NoError(t, a.Close(closeAt))
		assert.Equal(t, StatusSold, a.Status)
		assert.Equal(t, MaskPhone("777123456"), a.WinnerPhone)
		assert.Equal(t, "777***456", a.WinnerPhone)
		assert.NoError(t, a.CheckInvariants())
	})

	t.Run("reserve exactly met sells", func(t *testing.T) {
		a := newTestAuction(t, "1000", "50", reserve("5000"))
		_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777000111", "5000"), testNow)
		require.NoError(t, err)
		require.NoError(t, a.Close(closeAt))
		assert.Equal(t, StatusSold, a.Status)
	})

	t.Run("without reserve any bid sells", func(t *testing.T) {
		a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
		_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777000111", "1050"), testNow)
		require.NoError(t, err)
		require.NoError(t, a.Close(closeAt))
		assert.Equal(t, StatusSold, a.Status)
		assert.Equal(t, "777***111", a.WinnerPhone)
	})
}

func TestTerminalImmutability(t *testing.T) {
	terminals := map[Status]func(a *Auction) error{
		StatusSold: func(a *Auction) error {
			if _, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777000111", "1050"), testNow); err != nil {
				return err
			}
			return a.Close(testNow.Add(time.Minute))
		},
		StatusEnded:     func(a *Auction) error { return a.Close(testNow.Add(time.Minute)) },
		StatusCancelled: func(a *Auction) error { return a.Cancel(testNow.Add(time.Minute)) },
	}

	for status, drive := range terminals {
		t.Run(string(status), func(t *testing.T) {
			a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
			require.NoError(t, drive(a))
			require.Equal(t, status, a.Status)

			snapshot := a.Clone()
			later := testNow.Add(2 * time.Minute)

			_, err := a.PlaceBid(uuid.New(), bidInput("Late", "777999888", "99999"), later)
			assert.ErrorIs(t, err, ErrAuctionNotActive)

			assert.ErrorIs(t, a.Close(later), ErrAlreadyClosed)

			var trErr *InvalidTransitionError
			require.True(t, errors.As(a.Cancel(later), &trErr))
			assert.Equal(t, status, trErr.From)
			assert.Equal(t, StatusCancelled, trErr.To)

			assert.Equal(t, snapshot, a)
		})
	}
}

func TestCancelOnlyFromActive(t *testing.T) {
	a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
	at := testNow.Add(time.Minute)
	require.NoError(t, a.Cancel(at))
	assert.Equal(t, StatusCancelled, a.Status)
	assert.Equal(t, at, a.UpdatedAt)

	// repeated calls keep failing cleanly
	for i := 0; i < 3; i++ {
		var trErr *InvalidTransitionError
		assert.True(t, errors.As(a.Cancel(at), &trErr))
	}
	assert.Equal(t, StatusCancelled, a.Status)
}

func TestCloneIsDeep(t *testing.T) {
	a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
	_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777000111", "1050"), testNow)
	require.NoError(t, err)

	c := a.Clone()
	c.Bids[0].BidderName = "changed"
	c.Bids = append(c.Bids, &Bid{})

	assert.Equal(t, "Ali", a.Bids[0].BidderName)
	assert.Len(t, a.Bids, 1)
}

func TestCheckInvariantsDetectsCorruption(t *testing.T) {
	a := newTestAuction(t, "1000", "50", decimal.NullDecimal{})
	_, err := a.PlaceBid(uuid.New(), bidInput("Ali", "777000111", "1050"), testNow)
	require.NoError(t, err)

	broken := a.Clone()
	broken.BidCount = 5
	assert.Error(t, broken.CheckInvariants())

	broken = a.Clone()
	broken.CurrentPrice = dec("900")
	assert.Error(t, broken.CheckInvariants())

	broken = a.Clone()
	broken.Bids[0].Amount = dec("2000")
	assert.Error(t, broken.CheckInvariants())
}
