package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/otherjamesbrown/penf-ner/pkg/buildinfo"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/protocol"
)

const shutdownTimeout = 5 * time.Second

// daemonOptions holds the daemon command flags.
type daemonOptions struct {
	metricsAddr string
	healthAddr  string
	language    string
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	opts := &daemonOptions{}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Serve the line protocol on stdin and stdout",
		Long: `Load the knowledge base once and annotate documents streamed on stdin.

Lines are accumulated until a token line arrives. The document is then
annotated, its result lines are written followed by the token, and output
is flushed:

  NER_NEW_FILE         default mode, keep serving
  NER_NEW_FILE_ALL     every candidate
  NER_NEW_FILE_SCORE   every candidate with scores
  NER_NEW_FILE_NAMES   also report unknown names
  NER_END[_ALL|_SCORE|_NAMES]  same, then exit

With --metrics-addr, /metrics and /version are served over HTTP. With
--health-addr, the gRPC health service reports SERVING while the session runs.`,
		Example: `  penf-ner daemon < batch.txt
  penf-ner daemon --metrics-addr :9464 --health-addr :50061`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), deps, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /version on this address")
	cmd.Flags().StringVar(&opts.healthAddr, "health-addr", "", "Serve the gRPC health service on this address")
	cmd.Flags().StringVar(&opts.language, "lang", "", "Text language")

	return cmd
}

func runDaemon(ctx context.Context, deps *CommandDeps, cmd *cobra.Command, opts *daemonOptions) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.healthAddr != "" {
		cfg.HealthAddr = opts.healthAddr
	}
	if opts.language != "" {
		cfg.Language = opts.language
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := deps.logger()
	rt, err := deps.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing recognizer: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to release knowledge base", logging.Err(err))
		}
	}()

	if cfg.MetricsAddr != "" {
		stop, err := startMetricsServer(cfg.MetricsAddr, rt, logger)
		if err != nil {
			return err
		}
		defer stop()
	}
	if cfg.HealthAddr != "" {
		hs, stop, err := startHealthServer(cfg.HealthAddr, logger)
		if err != nil {
			return err
		}
		defer stop()
		hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
		defer hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	logger.Info("Daemon ready",
		logging.F("kb_version", rt.Handle.Version()),
		logging.F("kb_handle", rt.Handle.Name),
		logging.F("language", cfg.Language))

	return protocol.NewSession(rt.Recognizer, logger).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

// metricsMux serves the runtime registry and build information.
func metricsMux(rt *Runtime) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{Registry: rt.Registry}))
	mux.Handle("/version", buildinfo.Handler(ServiceName, rt.Handle.Version()))
	return mux
}

func startMetricsServer(addr string, rt *Runtime, logger logging.Logger) (func(), error) {
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: metricsMux(rt), ReadHeaderTimeout: shutdownTimeout}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logging.Err(err))
		}
	}()
	logger.Info("Metrics server listening", logging.F("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown", logging.Err(err))
		}
	}, nil
}

func startHealthServer(addr string, logger logging.Logger) (*health.Server, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("Health server failed", logging.Err(err))
		}
	}()
	logger.Info("Health server listening", logging.F("addr", ln.Addr().String()))

	return hs, func() {
		hs.Shutdown()
		srv.GracefulStop()
	}, nil
}
