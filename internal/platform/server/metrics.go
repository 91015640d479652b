package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics は gRPC リクエストと階層操作の拒否件数を集計します。
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rejections *prometheus.CounterVec
}

// NewMetrics は専用レジストリに登録されたメトリクスを生成します。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgchart",
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total number of gRPC requests broken down by method and status code.",
		}, []string{"method", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orgchart",
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for gRPC requests.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"method"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orgchart",
			Subsystem: "hierarchy",
			Name:      "rejections_total",
			Help:      "Hierarchy operations rejected by integrity checks, by reason.",
		}, []string{"reason"}),
	}
}

// Registry はメトリクスのレジストリを返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用の HTTP ハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observe(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) reject(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// MetricsServer は Prometheus のスクレイプ用 HTTP サーバーです。
type MetricsServer struct {
	listenAddr string
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewMetricsServer は MetricsServer を生成します。
func NewMetricsServer(listenAddr string, metrics *Metrics, logger zerolog.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	return &MetricsServer{
		listenAddr: listenAddr,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run は HTTP サーバーを起動し、コンテキストがキャンセルされると停止します。
func (s *MetricsServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は指定されたリスナーで待ち受けます。
func (s *MetricsServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("metrics server shutdown")
		}
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("metrics server listening")
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
