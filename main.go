package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/micromeda/micromeda-server/cache"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/cronjob"
	"github.com/micromeda/micromeda-server/database"
	"github.com/micromeda/micromeda-server/global"
	"github.com/micromeda/micromeda-server/logging"
	"github.com/micromeda/micromeda-server/server"
	"github.com/micromeda/micromeda-server/service"
	"github.com/micromeda/micromeda-server/service/micromeda"

	"google.golang.org/grpc"
)

func main() {

	// We're running, turn on the liveness indication flag.
	global.Alive = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	global.Initialize()

	// Setup logging module.
	// NOTE: This should always be first.
	logging.Initialize(ctx)
	defer logging.Finalize()

	cache.Initialize(ctx)
	defer cache.Finalize()

	database.Initialize(ctx)
	defer database.Finalize()

	// Parses the genome properties and loads the default results.
	service.Initialize(ctx)
	defer service.Finalize(ctx)

	var grpcServer *grpc.Server
	if config.GetBool("GRPC_ENABLED") {
		grpcAddress := fmt.Sprintf("%s:%s",
			config.GetString("GRPC_SERVER_LISTEN_ADDRESS"),
			config.GetString("GRPC_SERVER_LISTEN_PORT"))
		var listener net.Listener
		grpcServer, listener = server.CreateGrpcServer(ctx, grpcAddress)
		micromeda.RegisterGenomePropertiesServer(grpcServer,
			micromeda.NewGrpcServer(service.Impl.MicromedaIntf))

		go func() {
			logging.Info(ctx, "grpc serving")
			if err := grpcServer.Serve(listener); err != nil {
				logging.Error(ctx, "grpc serve: %v", err)
			}
		}()
	}

	address := fmt.Sprintf("%s:%s",
		config.GetString("SERVER_LISTEN_ADDRESS"),
		config.GetString("SERVER_LISTEN_PORT"))
	httpServer := server.CreateHttpServer(ctx, address)
	server.InstallShutdownHandler(ctx, httpServer, grpcServer)

	scheduler := cronjob.Cron(ctx)
	defer scheduler.Stop()

	// Now that we finished initializing all necessary modules,
	// let's turn on the readiness indication flag.
	global.Ready = true

	logging.Info(ctx, "Initialization complete, listening on %s...", address)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error(ctx, err.Error())
	}
}
