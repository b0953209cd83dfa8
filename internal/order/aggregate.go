package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/cart"
)

// Snapshot prices cart lines into order lines and returns their exact total.
// OrderID is left for the caller to set once the order row exists.
func Snapshot(lines []cart.Line) ([]Line, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, ErrCartEmpty
	}
	out := make([]Line, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: dish %d", ErrInvalidLine, l.DishID)
		}
		amount := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out = append(out, Line{
			DishID:    l.DishID,
			Name:      l.Name,
			Image:     l.Image,
			Flavor:    l.Flavor,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Amount:    amount,
		})
		total = total.Add(amount)
	}
	return out, total, nil
}

// toCart projects order lines back into fresh cart lines for userID.
func toCart(lines []Line, userID int64, now func() time.Time) []cart.Line {
	out := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		c := cart.Line{
			UserID:    userID,
			DishID:    l.DishID,
			Name:      l.Name,
			Image:     l.Image,
			Flavor:    l.Flavor,
			UnitPrice: l.UnitPrice,
			CreatedAt: now(),
		}
		c.SetQuantity(l.Quantity)
		out = append(out, c)
	}
	return out
}
