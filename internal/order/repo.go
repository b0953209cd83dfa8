package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/cart"
	"github.com/MikeMC777/sky-takeout/internal/db"
)

// uniqueViolation is the Postgres SQLSTATE for a broken UNIQUE constraint.
const uniqueViolation = "23505"

type Repository interface {
	// Insert assigns o.ID. A number already taken gives ErrDuplicateNumber.
	Insert(ctx context.Context, o *Order) error
	InsertLines(ctx context.Context, lines []Line) error
	// Update applies p and reports whether a row was written.
	Update(ctx context.Context, p Patch) (bool, error)
	GetByNumberAndOwner(ctx context.Context, number string, userID int64) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	Lines(ctx context.Context, orderID int64) ([]Line, error)
	// ListByStatusBefore returns orders in status placed strictly before t.
	ListByStatusBefore(ctx context.Context, status Status, t time.Time) ([]Order, error)
	ListByOwner(ctx context.Context, userID int64, status Status, limit, offset int) ([]Order, int, error)
	Count(ctx context.Context, f Filter) (int, error)
	SumAmount(ctx context.Context, f Filter) (decimal.Decimal, error)
}

// Tx runs fn against repositories bound to one transaction. Nothing fn
// writes is visible unless it returns nil.
type Tx interface {
	InTx(ctx context.Context, fn func(orders Repository, carts cart.Repository) error) error
}

type PGRepo struct {
	db      db.DBTX
	timeout time.Duration
}

// NewPGRepo accepts a pool or a transaction.
func NewPGRepo(conn db.DBTX, timeout time.Duration) *PGRepo {
	return &PGRepo{db: conn, timeout: timeout}
}

type PGTx struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPGTx(pool *pgxpool.Pool, timeout time.Duration) *PGTx {
	return &PGTx{pool: pool, timeout: timeout}
}

func (t *PGTx) InTx(ctx context.Context, fn func(orders Repository, carts cart.Repository) error) error {
	return db.InTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(NewPGRepo(tx, t.timeout), cart.NewPGRepo(tx, t.timeout))
	})
}

const orderColumns = `id, number, user_id, address_book_id, status, pay_status, pay_method, amount, remark,
	consignee, phone, address, order_time, checkout_time, cancel_reason, cancel_time`

func scanOrder(row pgx.Row, o *Order) error {
	var reason *string
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.AddressBookID, &o.Status, &o.PayStatus, &o.PayMethod,
		&o.Amount, &o.Remark, &o.Consignee, &o.Phone, &o.Address,
		&o.OrderTime, &o.CheckoutTime, &reason, &o.CancelTime)
	if reason != nil {
		o.CancelReason = *reason
	}
	return err
}

func (r *PGRepo) Insert(ctx context.Context, o *Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (number, user_id, address_book_id, status, pay_status, pay_method, amount, remark,
		                    consignee, phone, address, order_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, o.Number, o.UserID, o.AddressBookID, o.Status, o.PayStatus, o.PayMethod, o.Amount, o.Remark,
		o.Consignee, o.Phone, o.Address, o.OrderTime).Scan(&o.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_number_key" {
		return ErrDuplicateNumber
	}
	return err
}

func (r *PGRepo) InsertLines(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`
			INSERT INTO order_detail (order_id, dish_id, name, image, dish_flavor, unit_price, number, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, l.OrderID, l.DishID, l.Name, l.Image, l.Flavor, l.UnitPrice, l.Quantity, l.Amount)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

func nullStatus(s Status) *int {
	if s == 0 {
		return nil
	}
	v := int(s)
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *PGRepo) Update(ctx context.Context, p Patch) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status        = COALESCE($2::int, status),
		    pay_status    = COALESCE($3::int, pay_status),
		    checkout_time = COALESCE($4::timestamptz, checkout_time),
		    cancel_reason = CASE WHEN $8::bool THEN NULL ELSE COALESCE($5::text, cancel_reason) END,
		    cancel_time   = CASE WHEN $8::bool THEN NULL ELSE COALESCE($6::timestamptz, cancel_time) END
		WHERE id = $1
		  AND ($7::int IS NULL OR status = $7)
	`, p.ID, nullStatus(p.Status), p.PayStatus, p.CheckoutTime, nullString(p.CancelReason), p.CancelTime,
		nullStatus(p.WhenStatus), p.ClearCancel)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepo) GetByNumberAndOwner(ctx context.Context, number string, userID int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE number=$1 AND user_id=$2
	`, number, userID), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) Lines(ctx context.Context, orderID int64) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, dish_id, name, image, dish_flavor, unit_price, number, amount
		FROM order_detail
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.DishID, &l.Name, &l.Image, &l.Flavor,
			&l.UnitPrice, &l.Quantity, &l.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PGRepo) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListByStatusBefore(ctx context.Context, status Status, t time.Time) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND order_time < $2
		ORDER BY order_time
	`, status, t)
}

func (r *PGRepo) ListByOwner(ctx context.Context, userID int64, status Status, limit, offset int) ([]Order, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id=$1 AND ($2::int IS NULL OR status = $2)
	`, userID, nullStatus(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	out, err := r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 AND ($2::int IS NULL OR status = $2)
		ORDER BY order_time DESC
		LIMIT $3 OFFSET $4
	`, userID, nullStatus(status), limit, offset)
	return out, total, err
}

const filterWhere = `
	WHERE ($1::int IS NULL OR status = $1)
	  AND ($2::bigint IS NULL OR user_id = $2)
	  AND ($3::timestamptz IS NULL OR order_time >= $3)
	  AND ($4::timestamptz IS NULL OR order_time < $4)`

func filterArgs(f Filter) []any {
	var user *int64
	if f.UserID != 0 {
		user = &f.UserID
	}
	return []any{nullStatus(f.Status), user, nullTime(f.Begin), nullTime(f.End)}
}

func (r *PGRepo) Count(ctx context.Context, f Filter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+filterWhere, filterArgs(f)...).Scan(&n)
	return n, err
}

func (r *PGRepo) SumAmount(ctx context.Context, f Filter) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM orders`+filterWhere, filterArgs(f)...).Scan(&sum)
	return sum, err
}
