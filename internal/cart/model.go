package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one row of a user's cart. Amount is always UnitPrice × Quantity.
type Line struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	DishID    int64           `json:"dish_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Flavor    *string         `json:"dish_flavor"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"number"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"create_time"`
}

func (l *Line) SetQuantity(q int) {
	l.Quantity = q
	l.Amount = l.UnitPrice.Mul(decimal.NewFromInt(int64(q)))
}

// AddRequest identifies a dish and flavor choice to add or remove.
type AddRequest struct {
	DishID int64  `json:"dish_id"`
	Flavor string `json:"dish_flavor"`
}
