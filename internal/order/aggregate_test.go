package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/sky-takeout/internal/cart"
)

func cartLine(dishID int64, price string, qty int) cart.Line {
	l := cart.Line{DishID: dishID, Name: "dish", UnitPrice: decimal.RequireFromString(price)}
	l.SetQuantity(qty)
	return l
}

func TestSnapshot_ExactDecimalTotal(t *testing.T) {
	t.Parallel()
	// 0.1 × 3 + 0.2 drifts in float64
	lines, total, err := Snapshot([]cart.Line{cartLine(1, "0.1", 3), cartLine(2, "0.2", 1)})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "0.5", total.String())
	assert.Equal(t, "0.3", lines[0].Amount.String())
	assert.Zero(t, lines[0].OrderID)
}

func TestSnapshot_CopiesPricingAndFlavor(t *testing.T) {
	t.Parallel()
	flavor := "no ice"
	l := cartLine(4, "12.00", 2)
	l.Flavor = &flavor
	l.Image = "tea.png"

	lines, _, err := Snapshot([]cart.Line{l})
	require.NoError(t, err)
	assert.Equal(t, int64(4), lines[0].DishID)
	assert.Equal(t, "tea.png", lines[0].Image)
	assert.Equal(t, &flavor, lines[0].Flavor)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("12")))
}

func TestSnapshot_Rejects(t *testing.T) {
	t.Parallel()
	_, _, err := Snapshot(nil)
	assert.ErrorIs(t, err, ErrCartEmpty)

	bad := cartLine(1, "5", 1)
	bad.Quantity = 0
	_, _, err = Snapshot([]cart.Line{cartLine(2, "1", 1), bad})
	assert.ErrorIs(t, err, ErrInvalidLine)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatus_UserCancellable(t *testing.T) {
	t.Parallel()
	for s := PendingPayment; s <= Cancelled; s++ {
		assert.Equal(t, s <= ToBeConfirmed, s.UserCancellable(), s.String())
	}
	assert.Equal(t, "unknown", Status(42).String())
}
