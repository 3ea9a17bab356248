package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/micromeda/micromeda-server/api"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/global"
	"github.com/micromeda/micromeda-server/logging"
)

// CreateHttpServer creates an HTTP server listening on the specified address.
func CreateHttpServer(ctx context.Context, address string) *http.Server {
	return &http.Server{
		Addr:    address,
		Handler: api.GetRouter(),
	}
}

// CreateGrpcServer creates a gRPC server with panic recovery and the
// listener it should serve on.
func CreateGrpcServer(ctx context.Context, address string) (*grpc.Server, net.Listener) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		logging.Critical(ctx, "failed to listen grpc on %s: %v", address, err)
		panic(err)
	}

	server := grpc.NewServer(
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_recovery.StreamServerInterceptor(recoveryOption()),
		)),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_recovery.UnaryServerInterceptor(recoveryOption()),
		)),
	)
	reflection.Register(server)

	logging.Info(ctx, "listening grpc on: %s", address)
	return server, listener
}

func recoveryOption() grpc_recovery.Option {
	return grpc_recovery.WithRecoveryHandlerContext(
		func(ctx context.Context, p interface{}) error {
			logging.Error(ctx, "[PANIC] %s\n\n%s", p, string(debug.Stack()))
			return status.Errorf(codes.Internal, "%s", p)
		},
	)
}

// InstallShutdownHandler registers a shutdown handler for graceful shutdown.
// The gRPC server may be nil.
func InstallShutdownHandler(ctx context.Context, httpServer *http.Server, grpcServer *grpc.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		signal.Stop(sigChan)
		logging.Warn(ctx, "Received signal: %s.", sig.String())

		logging.Warn(ctx, "Initiating graceful shutdown...")
		global.Ready = false
		global.Alive = false

		timeoutCtx, cancel := context.WithTimeout(ctx,
			config.GetMilliseconds("SERVER_SHUTDOWN_GRACE_PERIOD_MS"))
		defer cancel()

		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if err := httpServer.Shutdown(timeoutCtx); err != nil {
			logging.Error(ctx, "Failed to shutdown: %s", err.Error())
		}
	}()
}
