package config

import (
	"io"
	"log"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("USER_HEADER", "")
	t.Setenv("EMPLOYEE_HEADER", "")
	t.Setenv("PAYMENT_TIMEOUT", "")
	t.Setenv("DELIVERY_SWEEP_EVERY", "")

	cfg := Load()
	if cfg.PaymentTimeout != 15*time.Minute {
		t.Fatalf("payment timeout=%s, want 15m", cfg.PaymentTimeout)
	}
	if cfg.DeliveryTimeout != time.Hour {
		t.Fatalf("delivery timeout=%s, want 1h", cfg.DeliveryTimeout)
	}
	if cfg.DeliverySweepEvery != 24*time.Hour {
		t.Fatalf("delivery sweep=%s, want 24h", cfg.DeliverySweepEvery)
	}
	if cfg.CallTimeout != 5*time.Second {
		t.Fatalf("call timeout=%s, want 5s", cfg.CallTimeout)
	}
	if cfg.UserHeader == cfg.EmployeeHeader {
		t.Fatalf("user and employee share header %s", cfg.UserHeader)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PAYMENT_TIMEOUT", "30m")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MENU_CACHE_TTL", "-5s") // rejected, default kept

	cfg := Load()
	if cfg.PaymentTimeout != 30*time.Minute {
		t.Fatalf("payment timeout=%s, want 30m", cfg.PaymentTimeout)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("redis db=%d, want 3", cfg.RedisDB)
	}
	if cfg.MenuCacheTTL != 24*time.Hour {
		t.Fatalf("menu ttl=%s, want 24h", cfg.MenuCacheTTL)
	}
}

func init() {
	log.SetOutput(io.Discard)
}
