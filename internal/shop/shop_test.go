package shop

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/MikeMC777/sky-takeout/internal/cache"
)

func TestService_SetThenGet(t *testing.T) {
	svc := NewService(cache.NewMemory())
	ctx := context.Background()

	st, err := svc.Get(ctx)
	if err != nil || st != Closed {
		t.Fatalf("unset shop: status=%v err=%v, want closed", st, err)
	}

	if err := svc.Set(ctx, Open); err != nil {
		t.Fatalf("set open: %v", err)
	}
	if st, _ := svc.Get(ctx); st != Open {
		t.Fatalf("status=%v, want open", st)
	}

	if err := svc.Set(ctx, Closed); err != nil {
		t.Fatalf("set closed: %v", err)
	}
	if st, _ := svc.Get(ctx); st != Closed {
		t.Fatalf("status=%v, want closed", st)
	}
}

func TestService_RejectsUnknownStatus(t *testing.T) {
	svc := NewService(cache.NewMemory())
	if err := svc.Set(context.Background(), Status(5)); err != ErrInvalidStatus {
		t.Fatalf("err=%v, want ErrInvalidStatus", err)
	}
}

func init() {
	log.SetOutput(io.Discard)
}
