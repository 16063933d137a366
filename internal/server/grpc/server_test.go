package grpc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/broker"
)

type fakeBroker struct {
	state atomic.Int32
}

func (f *fakeBroker) State() broker.State { return broker.State(f.state.Load()) }

func (f *fakeBroker) set(s broker.State) { f.state.Store(int32(s)) }

func check(t *testing.T, s *HealthServer, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_NotServingUntilReady(t *testing.T) {
	s := NewHealthServer("127.0.0.1:0", logging.Nop(), &fakeBroker{}, nil)

	if got := check(t, s, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("overall = %v, want NOT_SERVING", got)
	}

	s.SetReady()

	if got := check(t, s, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall = %v, want SERVING", got)
	}
}

func TestWatchBroker_MirrorsState(t *testing.T) {
	b := &fakeBroker{}
	var flips atomic.Int32
	s := NewHealthServer("127.0.0.1:0", logging.Nop(), b, func(bool) { flips.Add(1) })
	s.pollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.watchBroker(ctx)

	waitFor := func(want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if check(t, s, ServiceBroker) == want {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("broker status never became %v", want)
	}

	for deadline := time.Now().Add(2 * time.Second); flips.Load() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("watcher never published the initial status")
		}
		time.Sleep(time.Millisecond)
	}
	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)
	b.set(broker.Connected)
	waitFor(healthpb.HealthCheckResponse_SERVING)
	b.set(broker.Connecting)
	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)

	if n := flips.Load(); n != 3 {
		t.Fatalf("onBroker called %d times, want 3", n)
	}
}

func TestServe_AnswersOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := NewHealthServer("bufnet", logging.Nop(), &fakeBroker{}, nil)
	s.SetReady()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()
	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.GetStatus())
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	s := NewHealthServer("127.0.0.1:99999", logging.Nop(), &fakeBroker{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
