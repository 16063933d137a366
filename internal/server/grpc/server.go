// Package grpc serves the standard gRPC health service so orchestrators can
// tell whether the auth server is ready and whether its broker link is up.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/broker"
)

// ServiceBroker is the health service name mirroring the event publisher.
const ServiceBroker = "broker"

const defaultPollInterval = time.Second

// BrokerState reports the publisher's connection state.
type BrokerState interface {
	State() broker.State
}

type HealthServer struct {
	address      string
	logger       logging.Logger
	health       *health.Server
	broker       BrokerState
	pollInterval time.Duration
	onBroker     func(connected bool)
}

// NewHealthServer starts with every service NOT_SERVING. onBroker, if not
// nil, is called whenever the broker status flips.
func NewHealthServer(address string, l logging.Logger, b BrokerState, onBroker func(connected bool)) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceBroker, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		address:      address,
		logger:       l.With("module", "grpc_health"),
		health:       h,
		broker:       b,
		pollInterval: defaultPollInterval,
		onBroker:     onBroker,
	}
}

// SetReady flips the overall status to SERVING once startup checks pass.
func (s *HealthServer) SetReady() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs the health service on lis until ctx is done.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go s.watchBroker(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}

func (s *HealthServer) watchBroker(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	known := false
	first := true
	for {
		connected := s.broker.State() == broker.Connected
		if first || connected != known {
			status := healthpb.HealthCheckResponse_NOT_SERVING
			if connected {
				status = healthpb.HealthCheckResponse_SERVING
			}
			s.health.SetServingStatus(ServiceBroker, status)
			if s.onBroker != nil {
				s.onBroker(connected)
			}
			known, first = connected, false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
