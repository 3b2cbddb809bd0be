package obs

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const ServiceName = "product-studio-server"

type Shutdown func(ctx context.Context) error

// Init - app info 등록, OTLP endpoint가 있으면 tracing 시작
func Init(otlpEndpoint, version string) Shutdown {
	SetAppInfo(ServiceName, version)

	shutdown, err := initTracing(strings.TrimSpace(otlpEndpoint))
	if err != nil {
		log.Error().Err(err).Msg("❌ [Obs] Tracing init failed")
	}
	if shutdown == nil {
		return func(context.Context) error { return nil }
	}
	log.Info().Str("endpoint", otlpEndpoint).Msg("✅ [Obs] OTLP tracing enabled")
	return shutdown
}

func initTracing(endpoint string) (Shutdown, error) {
	// endpoint가 없으면 global no-op tracer 유지
	if endpoint == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// WrapHTTP - 서버 전체 otelhttp span (Prometheus는 router 미들웨어)
func WrapHTTP(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, ServiceName)
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(ServiceName + "/" + name)
}
