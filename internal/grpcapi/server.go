package grpcapi

import (
	"github.com/jmerrifield20/postledger/internal/identity"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewServer builds a gRPC server exposing svc, the standard health service
// and server reflection. Caller tokens are checked by tokens.
func NewServer(svc PostLedgerServer, tokens *identity.CallerTokenIssuer, logger *zap.Logger) *grpc.Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			identity.UnaryCallerInterceptor(tokens),
		),
	)
	Register(gs, svc)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// for grpcurl
	reflection.Register(gs)
	return gs
}
