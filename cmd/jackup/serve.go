// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/z5labs/jack"
	"github.com/z5labs/jack/internal/bootstrap"
	"github.com/z5labs/jack/pkg/app"
	"github.com/z5labs/jack/pkg/appbuilder"
	"github.com/z5labs/jack/pkg/config"
	"github.com/z5labs/jack/pkg/config/configtmpl"
	"github.com/z5labs/jack/pkg/config/key"
	"github.com/z5labs/jack/pkg/health"
	"github.com/z5labs/jack/pkg/registry"
	"github.com/z5labs/jack/pkg/slogfield"
	"github.com/z5labs/jack/server"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps each serve flag to where it lands in [Config].
var flagKeys = map[string]key.Keyer{
	"app":    key.Name("app"),
	"host":   key.Name("host"),
	"port":   key.Name("port"),
	"socket": key.Name("socket"),
	"key":    key.Chain{key.Name("tls"), key.Name("key_file")},
	"cert":   key.Chain{key.Name("tls"), key.Name("cert_file")},
}

func newServeCmd(apps *registry.Registry[jack.App]) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an app over HTTP",
		Long: `Serve an app over HTTP.

Config is layered from defaults, the --config file, JACK_ prefixed
environment variables and, lastly, flags. Nested keys are separated
by "__" in variable names, e.g. JACK_LOG__LEVEL=debug.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs := []config.Source{config.Map(defaultConfig)}
			if configPath != "" {
				srcs = append(srcs, fileSource(configPath))
			}
			srcs = append(
				srcs,
				config.FromEnv(config.EnvPrefix("JACK_")),
				flagSource(cmd.Flags()),
			)

			builder := appbuilder.Recover(
				withOTLPConn(
					appbuilder.OTel[Config](
						app.BuilderFunc[Config](func(ctx context.Context, cfg Config) (app.Runtime, error) {
							return buildRuntime(ctx, cfg, apps, cmd.ErrOrStderr())
						}),
					),
				),
			)
			return bootstrap.Run(cmd.Context(), builder, srcs...)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML or JSON config file, rendered as a template first")
	flags.String("app", "", "name of the app to serve (default \"hello\")")
	flags.String("host", "", "host to listen on")
	flags.String("port", "", "port to listen on (default \""+server.DefaultPort+"\")")
	flags.String("socket", "", "unix socket to listen on instead of host and port")
	flags.String("key", "", "PEM encoded TLS key file")
	flags.String("cert", "", "PEM encoded TLS certificate file")

	return cmd
}

// fileSource renders the file at path as a text template before
// parsing it as JSON or, for any other extension, YAML.
func fileSource(path string) config.Source {
	f := config.NewFileReader(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	r := config.RenderTextTemplate(f, configtmpl.Funcs()...)

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.FromJson(r)
	}
	return config.FromYaml(r)
}

func flagSource(flags *pflag.FlagSet) config.Source {
	return config.SourceFunc(func(store config.Store) error {
		var err error
		flags.Visit(func(f *pflag.Flag) {
			k, ok := flagKeys[f.Name]
			if !ok || err != nil {
				return
			}
			err = store.Set(k, f.Value.String())
		})
		return err
	})
}

func buildRuntime(ctx context.Context, cfg Config, apps *registry.Registry[jack.App], logOut io.Writer) (app.Runtime, error) {
	logHandler, err := newLogHandler(cfg, logOut)
	if err != nil {
		return nil, err
	}
	log := slog.New(logHandler)

	a, err := apps.Get(ctx, cfg.App)
	if err != nil {
		return nil, err
	}

	var serving health.Binary
	if cfg.HealthPath != "" {
		a = jack.Chain(a, health.Endpoint(cfg.HealthPath, &serving))
	}

	opts := server.RunOptions{
		Host:   cfg.Host,
		Port:   cfg.Port,
		Socket: cfg.Socket,
	}
	if cfg.TLS.KeyFile != "" {
		opts.Key, err = os.ReadFile(cfg.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
	}
	if cfg.TLS.CertFile != "" {
		opts.Cert, err = os.ReadFile(cfg.TLS.CertFile)
		if err != nil {
			return nil, err
		}
	}

	srvOpts := []server.Option{
		server.ForceHTTPS(cfg.HTTPS),
		server.ServerName(cfg.ServerName),
		server.ServerPort(cfg.ServerPort),
		server.LogHandler(logHandler),
		server.ShutdownTimeout(cfg.ShutdownTimeout),
	}

	rt := app.RuntimeFunc(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			serving.Toggle()
		}()

		return server.Run(ctx, a, opts, func(addr net.Addr) {
			log.InfoContext(
				ctx,
				"serving app",
				slogfield.String("app", cfg.App),
				slogfield.String("network", addr.Network()),
				slogfield.String("addr", addr.String()),
			)
		}, srvOpts...)
	})
	return app.Recover(app.WithSignalNotifications(rt, os.Interrupt, syscall.SIGTERM)), nil
}
