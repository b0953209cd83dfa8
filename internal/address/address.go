// Package address reads the customer's address book.
package address

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/sky-takeout/internal/db"
)

var (
	ErrNotFound = errors.New("address not found")
)

type Address struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Consignee    string `json:"consignee"`
	Phone        string `json:"phone"`
	ProvinceName string `json:"province_name"`
	CityName     string `json:"city_name"`
	DistrictName string `json:"district_name"`
	Detail       string `json:"detail"`
}

// Full joins the address parts into the single line stored on an order.
func (a Address) Full() string {
	return strings.Join([]string{a.ProvinceName, a.CityName, a.DistrictName, a.Detail}, "")
}

type Repository interface {
	// GetByIDAndOwner only resolves addresses that belong to userID.
	GetByIDAndOwner(ctx context.Context, id, userID int64) (*Address, error)
}

type PGRepo struct {
	db      db.DBTX
	timeout time.Duration
}

func NewPGRepo(conn db.DBTX, timeout time.Duration) *PGRepo {
	return &PGRepo{db: conn, timeout: timeout}
}

func (r *PGRepo) GetByIDAndOwner(ctx context.Context, id, userID int64) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var a Address
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, consignee, phone, province_name, city_name, district_name, detail
		FROM address_book WHERE id=$1 AND user_id=$2
	`, id, userID).Scan(&a.ID, &a.UserID, &a.Consignee, &a.Phone,
		&a.ProvinceName, &a.CityName, &a.DistrictName, &a.Detail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
