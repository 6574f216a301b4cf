package grpcserver

import (
	"net"

	jww "github.com/spf13/jwalterweatherman"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chat-hub/internal/observability"
)

// ServiceName is the health-check service name reported for the hub.
const ServiceName = "chat.hub"

// Server exposes grpc.health.v1 for the hub process.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New builds an instrumented gRPC server that starts NOT_SERVING.
func New() *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{grpc: srv, health: hs}
}

// SetServing flips the reported status of the hub.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	jww.INFO.Printf("grpc health listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop marks the hub as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
