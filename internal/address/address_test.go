package address

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// bookDB answers the address lookup from an in-memory table and keeps the
// last query it saw.
type bookDB struct {
	rows    []Address
	down    error
	lastSQL string
}

func (b *bookDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

func (b *bookDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (b *bookDB) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	return nil
}

func (b *bookDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	b.lastSQL = sql
	if b.down != nil {
		return errRow{b.down}
	}
	id, userID := args[0].(int64), args[1].(int64)
	for _, a := range b.rows {
		if a.ID == id && a.UserID == userID {
			return addressRow{a}
		}
	}
	return errRow{pgx.ErrNoRows}
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type addressRow struct{ a Address }

func (r addressRow) Scan(dest ...any) error {
	vals := []any{r.a.ID, r.a.UserID, r.a.Consignee, r.a.Phone,
		r.a.ProvinceName, r.a.CityName, r.a.DistrictName, r.a.Detail}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = vals[i].(int64)
		case *string:
			*p = vals[i].(string)
		}
	}
	return nil
}

func newRepo(db *bookDB) *PGRepo {
	return NewPGRepo(db, time.Second)
}

var home = Address{
	ID: 3, UserID: 7, Consignee: "Li Lei", Phone: "13800000000",
	ProvinceName: "Zhejiang", CityName: "Hangzhou", DistrictName: "Xihu", Detail: "No. 1 Road",
}

func TestGetByIDAndOwner_Owner(t *testing.T) {
	db := &bookDB{rows: []Address{home}}

	a, err := newRepo(db).GetByIDAndOwner(context.Background(), 3, 7)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if *a != home {
		t.Fatalf("got %+v, want %+v", *a, home)
	}
	if !strings.Contains(db.lastSQL, "user_id=$2") {
		t.Fatalf("query is not scoped to the owner: %s", db.lastSQL)
	}
}

func TestGetByIDAndOwner_OtherUserSeesNothing(t *testing.T) {
	db := &bookDB{rows: []Address{home}}

	_, err := newRepo(db).GetByIDAndOwner(context.Background(), 3, 8)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	_, err = newRepo(db).GetByIDAndOwner(context.Background(), 99, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestGetByIDAndOwner_DatastoreDown(t *testing.T) {
	down := errors.New("connection refused")
	_, err := newRepo(&bookDB{down: down}).GetByIDAndOwner(context.Background(), 3, 7)
	if !errors.Is(err, down) || errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want the datastore error", err)
	}
}

func TestFull(t *testing.T) {
	if got := home.Full(); got != "ZhejiangHangzhouXihuNo. 1 Road" {
		t.Fatalf("Full()=%q", got)
	}
}
