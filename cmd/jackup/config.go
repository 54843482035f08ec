// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/z5labs/jack/pkg/app"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config is everything jackup serve can be configured with. Values are
// layered from defaults, the config file, JACK_ prefixed environment
// variables and, lastly, command line flags.
type Config struct {
	App string `config:"app"`

	Host   string `config:"host"`
	Port   string `config:"port"`
	Socket string `config:"socket"`

	// HTTPS, ServerName and ServerPort override what apps are told
	// about the server, e.g. when running behind a proxy.
	HTTPS      bool   `config:"https"`
	ServerName string `config:"server_name"`
	ServerPort string `config:"server_port"`

	TLS struct {
		KeyFile  string `config:"key_file"`
		CertFile string `config:"cert_file"`
	} `config:"tls"`

	ShutdownTimeout time.Duration `config:"shutdown_timeout"`

	// HealthPath is answered with 503 once shutdown begins. Empty
	// disables it.
	HealthPath string `config:"health_path"`

	Log struct {
		Level  slog.Level `config:"level"`
		Format string     `config:"format"`
	} `config:"log"`

	OTel struct {
		ServiceName string `config:"service_name"`

		// Exporter is one of "none", "stdout" or "otlp".
		Exporter string `config:"exporter"`

		// Endpoint of the OTLP collector, only used by the "otlp" exporter.
		Endpoint string `config:"endpoint"`
	} `config:"otel"`

	// otlpConn is shared by every OTLP exporter, see [withOTLPConn].
	otlpConn *grpc.ClientConn
}

var defaultConfig = map[string]any{
	"app":              "hello",
	"shutdown_timeout": "10s",
	"health_path":      "/healthz",
	"log": map[string]any{
		"level":  "info",
		"format": "text",
	},
	"otel": map[string]any{
		"service_name": "jackup",
		"exporter":     "none",
		"endpoint":     "localhost:4317",
	},
}

// UnknownExporterError is returned for an unsupported otel.exporter value.
type UnknownExporterError struct {
	Exporter string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown otel exporter: %s", e.Exporter)
}

func (cfg Config) resource(ctx context.Context) (*resource.Resource, error) {
	return resource.New(
		ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.OTel.ServiceName)),
	)
}

// errNoOTLPConn is returned when an OTLP exporter is initialized from a
// config which was not built through [withOTLPConn].
var errNoOTLPConn = errors.New("otlp exporter has no grpc connection")

func (cfg Config) grpcConn() (*grpc.ClientConn, error) {
	if cfg.otlpConn == nil {
		return nil, errNoOTLPConn
	}
	return cfg.otlpConn, nil
}

// withOTLPConn opens the one gRPC connection the OTLP exporters share
// and closes it once the built runtime returns. When builder wraps
// [appbuilder.OTel], that is after the providers have been shut down.
func withOTLPConn(builder app.Builder[Config]) app.Builder[Config] {
	return app.BuilderFunc[Config](func(ctx context.Context, cfg Config) (app.Runtime, error) {
		if cfg.OTel.Exporter != "otlp" {
			return builder.Build(ctx, cfg)
		}

		conn, err := grpc.NewClient(
			cfg.OTel.Endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, err
		}
		cfg.otlpConn = conn

		rt, err := builder.Build(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, conn.Close())
		}

		return app.WithLifecycleHooks(rt, app.Lifecycle{
			PostRun: app.LifecycleHookFunc(func(context.Context) error {
				return conn.Close()
			}),
		}), nil
	})
}

// InitTextMapPropagator implements the [appbuilder.TextMapPropagatorInitializer] interface.
func (cfg Config) InitTextMapPropagator(ctx context.Context) (propagation.TextMapPropagator, error) {
	tmp := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	return tmp, nil
}

// InitTracerProvider implements the [appbuilder.TracerProviderInitializer] interface.
func (cfg Config) InitTracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	var exp sdktrace.SpanExporter
	var err error
	switch cfg.OTel.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	case "otlp":
		var conn *grpc.ClientConn
		conn, err = cfg.grpcConn()
		if err != nil {
			return nil, err
		}
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	default:
		return nil, UnknownExporterError{Exporter: cfg.OTel.Exporter}
	}
	if err != nil {
		return nil, err
	}

	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	return tp, nil
}

// InitMeterProvider implements the [appbuilder.MeterProviderInitializer] interface.
func (cfg Config) InitMeterProvider(ctx context.Context) (metric.MeterProvider, error) {
	var exp sdkmetric.Exporter
	var err error
	switch cfg.OTel.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	case "otlp":
		var conn *grpc.ClientConn
		conn, err = cfg.grpcConn()
		if err != nil {
			return nil, err
		}
		exp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	default:
		return nil, UnknownExporterError{Exporter: cfg.OTel.Exporter}
	}
	if err != nil {
		return nil, err
	}

	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
	)
	return mp, nil
}

// InitLoggerProvider implements the [appbuilder.LoggerProviderInitializer] interface.
func (cfg Config) InitLoggerProvider(ctx context.Context) (log.LoggerProvider, error) {
	var exp sdklog.Exporter
	var err error
	switch cfg.OTel.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err = stdoutlog.New(stdoutlog.WithWriter(os.Stdout))
	case "otlp":
		var conn *grpc.ClientConn
		conn, err = cfg.grpcConn()
		if err != nil {
			return nil, err
		}
		exp, err = otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
	default:
		return nil, UnknownExporterError{Exporter: cfg.OTel.Exporter}
	}
	if err != nil {
		return nil, err
	}

	res, err := cfg.resource(ctx)
	if err != nil {
		return nil, err
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
	)
	return lp, nil
}
