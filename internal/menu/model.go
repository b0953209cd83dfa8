package menu

import (
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/db"
)

// Sale status of a dish.
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

type Dish struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID int64  `json:"category_id"`
	// NUMERIC in Postgres; decimal keeps cart and order totals exact
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description,omitempty"`
	Status      int             `json:"status"`
	Flavors     []Flavor        `json:"flavors"`
	db.Audit
}

// Flavor is one selectable option group, e.g. Name "spice" with
// Value `["mild","hot"]`.
type Flavor struct {
	ID     int64  `json:"id"`
	DishID int64  `json:"dish_id"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

type Query struct {
	Name       string
	CategoryID int64
	Status     *int
	Limit      int
	Offset     int
}

// DishRequest is the admin payload for create and update.
type DishRequest struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	CategoryID  int64    `json:"category_id"`
	Price       string   `json:"price"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Status      int      `json:"status"`
	Flavors     []Flavor `json:"flavors"`
}
