/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ponyo877/roomcast/pb"
	"github.com/ponyo877/roomcast/server/adaptor"
	"github.com/ponyo877/roomcast/server/config"
	"github.com/ponyo877/roomcast/server/domain"
	"github.com/ponyo877/roomcast/server/logging"
	"github.com/ponyo877/roomcast/server/metrics"
	"github.com/ponyo877/roomcast/server/repository"
	"github.com/ponyo877/roomcast/server/telemetry"
	"github.com/ponyo877/roomcast/server/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat server",
	Long: `Run the chat server. The websocket endpoint and query API listen on
--http-address, the gRPC ChatService on --grpc-address.

Every flag can also be set in roomcast.yaml or as a ROOMCAST_* environment
variable, e.g. ROOMCAST_STORE_DRIVER=sqlite.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("http-address", ":5000", "listen address for websocket and HTTP")
	flags.String("grpc-address", ":50051", "listen address for gRPC")
	flags.String("store-driver", "memory", "message store: memory or sqlite")
	flags.String("store-dsn", ":memory:", "sqlite data source name")
	flags.Int("retention", 100, "messages kept per room and globally")
	flags.String("typing-scope", "room", "typing list recipients: room or global")
	flags.String("read-scope", "room", "read receipt recipients: room or global")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "text", "text or json")

	viper.BindPFlag("http.address", flags.Lookup("http-address"))
	viper.BindPFlag("grpc.address", flags.Lookup("grpc-address"))
	viper.BindPFlag("store.driver", flags.Lookup("store-driver"))
	viper.BindPFlag("store.dsn", flags.Lookup("store-dsn"))
	viper.BindPFlag("store.retention", flags.Lookup("retention"))
	viper.BindPFlag("broadcast.typingScope", flags.Lookup("typing-scope"))
	viper.BindPFlag("broadcast.readScope", flags.Lookup("read-scope"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(slog.New(slog.NewTextHandler(os.Stderr, nil)), viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", slog.Any("error", err))
		}
	}()

	ids := domain.NewIDSequence(nil)
	store, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, ids, cfg.Store.Retention)
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	policy, _ := cfg.BroadcastPolicy()
	hub := usecase.NewStreamUsecase(logger, store, ids,
		usecase.WithMetrics(metrics.New(reg)),
		usecase.WithBroadcastPolicy(policy),
		usecase.WithInboxSize(cfg.Hub.InboxSize),
	)

	transport := adaptor.TransportOptions{
		SendBuffer:   cfg.Transport.SendBuffer,
		ReadTimeout:  cfg.Transport.ReadTimeout,
		WriteTimeout: cfg.Transport.WriteTimeout,
	}
	query := adaptor.QueryOptions{DefaultLimit: cfg.Query.DefaultLimit, MaxLimit: cfg.Store.Retention}

	ws := adaptor.NewWebSocketHandler(hub, logger, cfg.HTTP.AllowedOrigins, transport)
	httpServer := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: adaptor.NewRouter(hub, ws, reg, logger, adaptor.RouterOptions{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Query:          query,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(append(adaptor.ServerOptions(), grpc.StatsHandler(otelgrpc.NewServerHandler()))...)
	pb.RegisterChatServiceServer(grpcServer, adaptor.NewAdaptor(hub, logger, transport, query))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(pb.ChatService_ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// The hub outlives the listeners so in-flight requests drain first.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(hubCtx)
	})
	g.Go(func() error {
		logger.Info("HTTP server is running", slog.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server is running", slog.String("address", cfg.GRPC.Address))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		stopHub()
		<-hub.Done()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", slog.Any("error", err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
