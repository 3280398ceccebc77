package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"batchauction/api/grpcserver"
	"batchauction/config"
	"batchauction/infra/kafka"
	"batchauction/infra/ledger"
	"batchauction/infra/log"
	entrywal "batchauction/infra/wal/entry"
	exitwal "batchauction/infra/wal/exit"
	"batchauction/jobs/broadcaster"
	"batchauction/service"
	"batchauction/snapshot"
)

func ServeCommand(conf *config.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Recover the house and serve the gRPC API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, conf, *logger)
		},
	}
}

func serve(ctx context.Context, conf *config.Config, logger log.Logger) error {
	// ---------------- Entry WAL ----------------

	walDir := conf.Path(conf.WAL.Dir)
	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             walDir,
		SegmentSize:     conf.WAL.SegmentSize,
		SegmentDuration: conf.WAL.SegmentDuration,
		SyncWrites:      conf.WAL.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("entry WAL init failed: %w", err)
	}
	defer entryWAL.Close()

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(conf.Path(conf.Outbox.Dir))
	if err != nil {
		return fmt.Errorf("exit WAL init failed: %w", err)
	}
	defer exitWAL.Close()

	// ---------------- House ----------------

	metrics := service.NopMetrics()
	if conf.Instrumentation.Prometheus {
		metrics = service.PrometheusMetrics(conf.Instrumentation.Namespace)
	}

	house, err := service.New(
		service.Config{
			Owner:        conf.Engine.Owner,
			Fees:         conf.Engine.FeeSchedule(),
			MaxScanSteps: conf.Engine.MaxScanSteps,
		},
		ledger.NewMemory(),
		entryWAL,
		exitWAL,
		service.WithLogger(logger),
		service.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	// ---------------- Recovery ----------------

	snapDir := conf.Path(conf.Snapshot.Dir)
	seq, err := house.Recover(ctx, snapDir, walDir)
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}
	logger.Info("house recovered", "seq", seq, "auctions", len(house.AuctionIDs()))

	// ---------------- Background Jobs ----------------

	if conf.Snapshot.Interval > 0 {
		house.StartSnapshotJob(ctx, &snapshot.Writer{Dir: snapDir}, conf.Snapshot.Interval)
	}

	if conf.Kafka.Enabled {
		pub, err := newPublisher(conf.Kafka)
		if err != nil {
			return fmt.Errorf("kafka publisher init failed: %w", err)
		}
		bc := broadcaster.New(exitWAL, pub, broadcaster.Config{
			Interval:   conf.Kafka.Interval,
			MaxRetries: conf.Kafka.MaxRetries,
		}, logger)
		defer bc.Close()
		go bc.Run(ctx)
	}

	if conf.Instrumentation.Prometheus {
		srv := &http.Server{
			Addr:              conf.Instrumentation.PrometheusListenAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", "err", err)
			}
		}()
		defer srv.Close()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", conf.GRPC.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen failed: %w", err)
	}

	grpcSrv := grpc.NewServer(
		grpc.ForceServerCodec(grpcserver.Codec),
		grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(logger)),
	)
	grpcserver.Register(grpcSrv, grpcserver.NewServer(house))

	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()

	logger.Info("auction house running", "addr", lis.Addr().String())
	if err := grpcSrv.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server exited: %w", err)
	}

	// one last snapshot so the next start replays less
	if _, err := house.WriteSnapshot(&snapshot.Writer{Dir: snapDir}); err != nil {
		logger.Error("final snapshot failed", "err", err)
	}
	return nil
}

func newPublisher(conf *config.KafkaConfig) (broadcaster.Publisher, error) {
	switch conf.Client {
	case config.KafkaClientKafkaGo:
		return kafka.NewProducer(conf.Brokers, conf.Topic), nil
	default:
		return broadcaster.NewSaramaPublisher(conf.Brokers, conf.Topic)
	}
}
