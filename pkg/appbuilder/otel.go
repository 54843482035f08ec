// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"errors"

	"github.com/z5labs/jack/pkg/app"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TextMapPropagatorInitializer
type TextMapPropagatorInitializer interface {
	InitTextMapPropagator(context.Context) (propagation.TextMapPropagator, error)
}

// TracerProviderInitializer
type TracerProviderInitializer interface {
	InitTracerProvider(context.Context) (trace.TracerProvider, error)
}

// MeterProviderInitializer
type MeterProviderInitializer interface {
	InitMeterProvider(context.Context) (metric.MeterProvider, error)
}

// LoggerProviderInitializer
type LoggerProviderInitializer interface {
	InitLoggerProvider(context.Context) (log.LoggerProvider, error)
}

// OTelInitializer is implemented by configs which know how to set up
// OpenTelemetry. A nil provider leaves the current global as is.
type OTelInitializer interface {
	TextMapPropagatorInitializer
	TracerProviderInitializer
	MeterProviderInitializer
	LoggerProviderInitializer
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// OTel installs the propagator and providers cfg initializes as the
// OpenTelemetry globals before building. Providers which can be shut
// down are, once the built runtime returns.
func OTel[T OTelInitializer](builder app.Builder[T]) app.Builder[T] {
	return app.BuilderFunc[T](func(ctx context.Context, cfg T) (_ app.Runtime, err error) {
		var shutdowns []shutdowner
		track := func(v any) {
			if sd, ok := v.(shutdowner); ok {
				shutdowns = append(shutdowns, sd)
			}
		}
		shutdown := func(ctx context.Context) error {
			errs := make([]error, 0, len(shutdowns))
			for _, sd := range shutdowns {
				errs = append(errs, sd.Shutdown(ctx))
			}
			return errors.Join(errs...)
		}

		fs := []func(context.Context) error{
			func(ctx context.Context) error {
				tmp, err := cfg.InitTextMapPropagator(ctx)
				if err != nil || tmp == nil {
					return err
				}
				otel.SetTextMapPropagator(tmp)
				return nil
			},
			func(ctx context.Context) error {
				tp, err := cfg.InitTracerProvider(ctx)
				if err != nil || tp == nil {
					return err
				}
				track(tp)
				otel.SetTracerProvider(tp)
				return nil
			},
			func(ctx context.Context) error {
				mp, err := cfg.InitMeterProvider(ctx)
				if err != nil || mp == nil {
					return err
				}
				track(mp)
				otel.SetMeterProvider(mp)
				return nil
			},
			func(ctx context.Context) error {
				lp, err := cfg.InitLoggerProvider(ctx)
				if err != nil || lp == nil {
					return err
				}
				track(lp)
				global.SetLoggerProvider(lp)
				return nil
			},
		}

		for _, f := range fs {
			err := f(ctx)
			if err != nil {
				return nil, errors.Join(err, shutdown(ctx))
			}
		}

		rt, err := builder.Build(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx))
		}

		return app.WithLifecycleHooks(rt, app.Lifecycle{
			PostRun: app.LifecycleHookFunc(shutdown),
		}), nil
	})
}
