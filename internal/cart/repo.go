// Package cart stores the staging lines a user collects before placing an order.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/db"
)

var (
	ErrNotFound = errors.New("cart line not found")
)

type Repository interface {
	ListByOwner(ctx context.Context, userID int64) ([]Line, error)
	// Find returns the line for a dish with exactly this flavor choice.
	Find(ctx context.Context, userID, dishID int64, flavor *string) (*Line, error)
	Insert(ctx context.Context, l *Line) error
	InsertBatch(ctx context.Context, lines []Line) error
	UpdateQuantity(ctx context.Context, id int64, quantity int, amount decimal.Decimal) error
	Delete(ctx context.Context, id int64) error
	DeleteByOwner(ctx context.Context, userID int64) (int64, error)
}

type PGRepo struct {
	db      db.DBTX
	timeout time.Duration
}

// NewPGRepo accepts a pool or a transaction.
func NewPGRepo(conn db.DBTX, timeout time.Duration) *PGRepo {
	return &PGRepo{db: conn, timeout: timeout}
}

const lineColumns = `id, user_id, dish_id, name, image, dish_flavor, unit_price, number, amount, create_time`

func scanLine(row pgx.Row, l *Line) error {
	return row.Scan(&l.ID, &l.UserID, &l.DishID, &l.Name, &l.Image, &l.Flavor,
		&l.UnitPrice, &l.Quantity, &l.Amount, &l.CreatedAt)
}

func (r *PGRepo) ListByOwner(ctx context.Context, userID int64) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+lineColumns+`
		FROM shopping_cart WHERE user_id=$1
		ORDER BY create_time, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := scanLine(rows, &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) Find(ctx context.Context, userID, dishID int64, flavor *string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var l Line
	err := scanLine(r.db.QueryRow(ctx, `
		SELECT `+lineColumns+`
		FROM shopping_cart
		WHERE user_id=$1 AND dish_id=$2 AND dish_flavor IS NOT DISTINCT FROM $3
		LIMIT 1
	`, userID, dishID, flavor), &l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PGRepo) Insert(ctx context.Context, l *Line) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO shopping_cart (user_id, dish_id, name, image, dish_flavor, unit_price, number, amount, create_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, l.UserID, l.DishID, l.Name, l.Image, l.Flavor, l.UnitPrice, l.Quantity, l.Amount, l.CreatedAt).Scan(&l.ID)
}

// InsertBatch pipelines all inserts in one round trip.
func (r *PGRepo) InsertBatch(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO shopping_cart (user_id, dish_id, name, image, dish_flavor, unit_price, number, amount, create_time)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, l.UserID, l.DishID, l.Name, l.Image, l.Flavor, l.UnitPrice, l.Quantity, l.Amount, l.CreatedAt)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

func (r *PGRepo) UpdateQuantity(ctx context.Context, id int64, quantity int, amount decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE shopping_cart SET number=$2, amount=$3 WHERE id=$1`, id, quantity, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM shopping_cart WHERE id=$1`, id)
	return err
}

func (r *PGRepo) DeleteByOwner(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM shopping_cart WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
