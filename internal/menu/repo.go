// Package menu provides the dish repository and the cached menu reads built on it.
package menu

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/sky-takeout/internal/db"
)

var (
	ErrNotFound   = errors.New("dish not found")
	ErrDishOnSale = errors.New("dish is on sale and cannot be deleted")
)

type Repository interface {
	Create(ctx context.Context, d *Dish, actorID int64) error
	GetByID(ctx context.Context, id int64) (*Dish, error)
	ListByCategoryAndStatus(ctx context.Context, categoryID int64, status int) ([]Dish, error)
	List(ctx context.Context, q Query) ([]Dish, error)
	// Update rewrites the dish and replaces its flavors.
	Update(ctx context.Context, d *Dish, actorID int64) error
	// SetStatus changes the sale status and returns the dish's category.
	SetStatus(ctx context.Context, id int64, status int, actorID int64) (int64, error)
	DeleteBatch(ctx context.Context, ids []int64) error
}

type PGRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

func NewPGRepo(pool *pgxpool.Pool, timeout time.Duration) *PGRepo {
	return &PGRepo{db: pool, timeout: timeout, now: time.Now}
}

func (r *PGRepo) Create(ctx context.Context, d *Dish, actorID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	d.Stamp(db.Insert, actorID, r.now())
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO dish (name, category_id, price, image, description, status,
			                  create_time, update_time, create_user, update_user)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id
		`, d.Name, d.CategoryID, d.Price, d.Image, d.Description, d.Status,
			d.CreatedAt, d.UpdatedAt, d.CreatedBy, d.UpdatedBy).Scan(&d.ID); err != nil {
			return err
		}
		return insertFlavors(ctx, tx, d.ID, d.Flavors)
	})
}

func insertFlavors(ctx context.Context, tx pgx.Tx, dishID int64, flavors []Flavor) error {
	if len(flavors) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range flavors {
		flavors[i].DishID = dishID
		batch.Queue(`INSERT INTO dish_flavor (dish_id, name, value) VALUES ($1,$2,$3)`,
			dishID, flavors[i].Name, flavors[i].Value)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Dish, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var d Dish
	err := r.db.QueryRow(ctx, `
		SELECT id, name, category_id, price, image, description, status,
		       create_time, update_time, create_user, update_user
		FROM dish WHERE id=$1
	`, id).Scan(&d.ID, &d.Name, &d.CategoryID, &d.Price, &d.Image, &d.Description, &d.Status,
		&d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dishes := []Dish{d}
	if err := r.attachFlavors(ctx, dishes); err != nil {
		return nil, err
	}
	return &dishes[0], nil
}

func (r *PGRepo) ListByCategoryAndStatus(ctx context.Context, categoryID int64, status int) ([]Dish, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, name, category_id, price, image, description, status,
		       create_time, update_time, create_user, update_user
		FROM dish WHERE category_id=$1 AND status=$2
		ORDER BY create_time DESC
	`, categoryID, status)
	if err != nil {
		return nil, err
	}
	out, err := scanDishes(rows)
	if err != nil {
		return nil, err
	}
	return out, r.attachFlavors(ctx, out)
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Dish, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, name, category_id, price, image, description, status,
		       create_time, update_time, create_user, update_user
		FROM dish
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%')
		  AND ($2 = 0 OR category_id = $2)
		  AND ($3::int IS NULL OR status = $3)
		ORDER BY create_time DESC
		LIMIT $4 OFFSET $5
	`, strings.TrimSpace(q.Name), q.CategoryID, q.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanDishes(rows)
}

func scanDishes(rows pgx.Rows) ([]Dish, error) {
	defer rows.Close()
	var out []Dish
	for rows.Next() {
		var d Dish
		if err := rows.Scan(&d.ID, &d.Name, &d.CategoryID, &d.Price, &d.Image, &d.Description, &d.Status,
			&d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PGRepo) attachFlavors(ctx context.Context, dishes []Dish) error {
	if len(dishes) == 0 {
		return nil
	}
	ids := make([]int64, len(dishes))
	idx := make(map[int64]int, len(dishes))
	for i, d := range dishes {
		ids[i] = d.ID
		idx[d.ID] = i
		dishes[i].Flavors = []Flavor{}
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, dish_id, name, value FROM dish_flavor WHERE dish_id = ANY($1) ORDER BY id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f Flavor
		if err := rows.Scan(&f.ID, &f.DishID, &f.Name, &f.Value); err != nil {
			return err
		}
		i := idx[f.DishID]
		dishes[i].Flavors = append(dishes[i].Flavors, f)
	}
	return rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, d *Dish, actorID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	d.Stamp(db.Update, actorID, r.now())
	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE dish
			SET name = COALESCE(NULLIF($2,''), name),
			    category_id = CASE WHEN $3 = 0 THEN category_id ELSE $3 END,
			    price = $4,
			    image = COALESCE(NULLIF($5,''), image),
			    description = $6,
			    update_time = $7,
			    update_user = $8
			WHERE id = $1
		`, d.ID, d.Name, d.CategoryID, d.Price, d.Image, d.Description, d.UpdatedAt, d.UpdatedBy)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dish_flavor WHERE dish_id=$1`, d.ID); err != nil {
			return err
		}
		return insertFlavors(ctx, tx, d.ID, d.Flavors)
	})
}

func (r *PGRepo) SetStatus(ctx context.Context, id int64, status int, actorID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var a db.Audit
	a.Stamp(db.Update, actorID, r.now())
	var categoryID int64
	err := r.db.QueryRow(ctx, `
		UPDATE dish SET status=$2, update_time=$3, update_user=$4
		WHERE id=$1
		RETURNING category_id
	`, id, status, a.UpdatedAt, a.UpdatedBy).Scan(&categoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return categoryID, err
}

func (r *PGRepo) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return db.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var onSale int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM dish WHERE id = ANY($1) AND status = $2
		`, ids, StatusEnabled).Scan(&onSale); err != nil {
			return err
		}
		if onSale > 0 {
			return ErrDishOnSale
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dish_flavor WHERE dish_id = ANY($1)`, ids); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM dish WHERE id = ANY($1)`, ids)
		return err
	})
}
