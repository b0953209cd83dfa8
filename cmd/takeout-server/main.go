package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/sky-takeout/internal/actor"
	"github.com/MikeMC777/sky-takeout/internal/address"
	"github.com/MikeMC777/sky-takeout/internal/cache"
	"github.com/MikeMC777/sky-takeout/internal/cart"
	"github.com/MikeMC777/sky-takeout/internal/config"
	"github.com/MikeMC777/sky-takeout/internal/db"
	"github.com/MikeMC777/sky-takeout/internal/health"
	"github.com/MikeMC777/sky-takeout/internal/httpx"
	"github.com/MikeMC777/sky-takeout/internal/menu"
	"github.com/MikeMC777/sky-takeout/internal/notify"
	"github.com/MikeMC777/sky-takeout/internal/order"
	"github.com/MikeMC777/sky-takeout/internal/payment"
	"github.com/MikeMC777/sky-takeout/internal/shop"
	"github.com/MikeMC777/sky-takeout/internal/task"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	defer pool.Close()

	redis := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CallTimeout)
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		// menu reads fall through to postgres until redis is back
		log.Printf("[main] warning: redis unavailable: %v", err)
	}

	var events notify.Publisher = notify.Nop{}
	if mq, err := notify.NewRabbitMQ(cfg.AMQPURL); err != nil {
		log.Printf("[main] warning: order events disabled: %v", err)
	} else {
		defer mq.Close()
		events = mq
	}

	menuRepo := menu.NewPGRepo(pool, cfg.CallTimeout)
	cartRepo := cart.NewPGRepo(pool, cfg.CallTimeout)
	orderRepo := order.NewPGRepo(pool, cfg.CallTimeout)

	menuSvc := menu.NewService(menuRepo, redis, cfg.MenuCacheTTL)
	a := app{
		menu:  menuSvc,
		shop:  shop.NewService(redis),
		carts: cart.NewService(cartRepo, menuRepo),
		orders: order.NewService(order.Deps{
			Orders:    orderRepo,
			Carts:     cartRepo,
			Addresses: address.NewPGRepo(pool, cfg.CallTimeout),
			Tx:        order.NewPGTx(pool, cfg.CallTimeout),
			Payments:  payment.NewHTTPGateway(cfg.PaymentBaseURL, cfg.CallTimeout),
			Events:    events,
		}),
		users:     actor.NewHeaderResolver(cfg.UserHeader),
		employees: actor.NewHeaderResolver(cfg.EmployeeHeader),
	}

	reconciler := task.NewReconciler(orderRepo, events, task.Config{
		PaymentTimeout:     cfg.PaymentTimeout,
		DeliveryTimeout:    cfg.DeliveryTimeout,
		PaymentSweepEvery:  cfg.PaymentSweepEvery,
		DeliverySweepEvery: cfg.DeliverySweepEvery,
	})
	go func() {
		if err := reconciler.Run(ctx); err != nil {
			log.Printf("[main] reconciler stopped: %v", err)
		}
	}()

	probes := health.NewServer(map[string]health.Check{
		"postgres": pool.Ping,
		"redis":    redis.Ping,
	})
	go probes.Watch(ctx, 10*time.Second, cfg.CallTimeout)
	hl, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		log.Fatalf("[main] health listen: %v", err)
	}
	go func() {
		log.Printf("[main] grpc health listening on %s", cfg.HealthAddr)
		if err := probes.Serve(hl); err != nil {
			log.Printf("[main] grpc health stopped: %v", err)
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger())
	routes(r, a)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		probes.Stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[main] takeout-server listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[main] %v", err)
	}
}
