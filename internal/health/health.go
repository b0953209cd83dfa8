// Package health exposes the standard gRPC health service and keeps it in
// step with the server's dependencies.
package health

import (
	"context"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name probes ask about; "" covers the whole server.
const Service = "takeout"

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	checks map[string]Check
}

func NewServer(checks map[string]Check) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		checks: checks,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.set(false)
	return s
}

func (s *Server) set(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(Service, st)
}

// Probe runs every check once and publishes the combined result.
func (s *Server) Probe(ctx context.Context, timeout time.Duration) bool {
	ok := true
	for name, check := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := check(cctx)
		cancel()
		if err != nil {
			log.Printf("[health] %s unhealthy: %v", name, err)
			ok = false
		}
	}
	s.set(ok)
	return ok
}

// Watch probes on every tick until ctx is done.
func (s *Server) Watch(ctx context.Context, every, timeout time.Duration) {
	s.Probe(ctx, timeout)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Probe(ctx, timeout)
		}
	}
}

func (s *Server) Serve(l net.Listener) error {
	return s.grpc.Serve(l)
}

// Stop marks the server as going away and stops accepting RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
