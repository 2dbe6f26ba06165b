// Package server wires every component together and owns the process
// lifecycle: load configuration, initialize the subgraph registry, start
// the HTTP server, and shut it down gracefully on signal.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/n9te9/subgraph-proxy/gateway"
	"github.com/n9te9/subgraph-proxy/internal/apollo"
	"github.com/n9te9/subgraph-proxy/internal/config"
	"github.com/n9te9/subgraph-proxy/internal/health"
	"github.com/n9te9/subgraph-proxy/internal/httpapi"
	"github.com/n9te9/subgraph-proxy/internal/mockengine"
	"github.com/n9te9/subgraph-proxy/internal/passthrough"
	"github.com/n9te9/subgraph-proxy/internal/registry"
	"github.com/n9te9/subgraph-proxy/internal/router"
	"github.com/n9te9/subgraph-proxy/internal/schemacache"
	"github.com/n9te9/subgraph-proxy/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceVersion             = "v0.1.0"
	defaultServiceName         = "subgraph-proxy"
	enableOpentelemetryTracing = false
)

// Run loads configuration, wires every component, and serves until an
// interrupt/SIGTERM, then drains connections within the configured grace
// window before exiting.
func Run() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to load environment config: %v", err)
	}

	localFile, err := config.LoadSubgraphsFile(env.SubgraphConfigFile, env.EnablePassthrough)
	if err != nil {
		log.Fatalf("failed to load subgraph config file: %v", err)
	}

	resolvers := mockengine.NewFileResolverSourceLoader(env.MockResolversFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer cancel()

	sharedClient := gateway.NewHTTPClient(env.SubgraphHealthTimeout, enableOpentelemetryTracing)

	apolloClient := apollo.New("", env.ApolloKey, env.ApolloGraphID, env.ApolloGraphVariant, sharedClient)
	monitor := health.NewMonitor(sharedClient, logger)
	schemas := schemacache.New(4096, env.SchemaCacheTTL, env.SchemaFileDir, apolloClient, logger)

	summary, err := registry.Init(ctx, apolloClient, localFile, monitor, schemas, int(env.SubgraphCheckInterval/time.Millisecond), logger)
	if err != nil {
		log.Fatalf("failed to initialize subgraph registry: %v", err)
	}
	logger.Info("subgraph registry ready",
		"totalSubgraphs", summary.TotalSubgraphs,
		"fromApollo", summary.FromApollo,
		"localOverrides", summary.LocalOverrides)

	schemas.StartPeriodicRefresh()
	defer schemas.StopPeriodicRefresh()

	mock := mockengine.New(resolvers, logger)
	pt := passthrough.New(0, schemas, logger)
	r := router.New(monitor, schemas, mock, pt, env.EnablePassthrough, env.MockOnError, env.SubgraphHealthTimeout, logger)

	handler := httpapi.New(httpapi.Info{ServiceName: defaultServiceName, Version: serviceVersion}, r, monitor, schemas, logger)

	var rootHandler http.Handler = handler
	if enableOpentelemetryTracing {
		rootHandler = otelhttp.NewHandler(handler, defaultServiceName)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", env.Port),
		Handler: rootHandler,
	}

	var shutdownTracer func(context.Context) error
	if enableOpentelemetryTracing {
		shutdownTracer, err = telemetry.InitTracer(ctx, defaultServiceName, serviceVersion)
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
	}

	go func() {
		logger.Info("starting gateway server", "port", env.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway server failed: %v", err)
		}
	}()

	<-ctx.Done()

	handler.StartShutdown()
	monitor.Shutdown()

	timeoutCtx, cancelShutdown := context.WithTimeout(context.Background(), env.ShutdownGrace)
	defer cancelShutdown()

	logger.Info("shutting down gateway server")
	if err := srv.Shutdown(timeoutCtx); err != nil {
		log.Fatalf("failed to shutdown gateway server: %v", err)
	}

	if shutdownTracer != nil {
		if err := shutdownTracer(timeoutCtx); err != nil {
			log.Fatalf("failed to shutdown tracer: %v", err)
		}
	}

	logger.Info("gateway server stopped")
}
