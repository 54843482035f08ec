// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/z5labs/jack"
)

// DefaultPort is the TCP port used when none is configured.
const DefaultPort = "1982"

// RunOptions describe where a server listens.
type RunOptions struct {
	// Host to bind. Empty binds all interfaces.
	Host string `config:"host"`

	// Port to bind. Empty uses [DefaultPort] and "0" picks any free port.
	Port string `config:"port"`

	// Socket is a unix socket path. When set, Host and Port are ignored.
	Socket string `config:"socket"`

	// Key and Cert are a PEM encoded key pair. TLS is only enabled
	// when both are given.
	Key  []byte `config:"-"`
	Cert []byte `config:"-"`
}

// Listen binds the listener described by opts.
func Listen(opts RunOptions) (net.Listener, error) {
	ln, err := listen(opts)
	if err != nil {
		return nil, err
	}
	if len(opts.Key) == 0 || len(opts.Cert) == 0 {
		return ln, nil
	}

	cert, err := tls.X509KeyPair(opts.Cert, opts.Key)
	if err != nil {
		ln.Close()
		return nil, &jack.ConfigurationError{
			Field:  "Key",
			Reason: err.Error(),
		}
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}
	return tls.NewListener(ln, cfg), nil
}

func listen(opts RunOptions) (net.Listener, error) {
	if opts.Socket != "" {
		return net.Listen("unix", opts.Socket)
	}

	port := opts.Port
	if port == "" {
		port = DefaultPort
	}
	return net.Listen("tcp", net.JoinHostPort(opts.Host, port))
}

// Run serves app on the listener described by opts until ctx is
// cancelled. If given, onListen is called with the bound address once
// connections are being accepted.
func Run(ctx context.Context, app any, opts RunOptions, onListen func(net.Addr), srvOpts ...Option) error {
	s, err := New(app, srvOpts...)
	if err != nil {
		return err
	}

	ln, err := Listen(opts)
	if err != nil {
		return err
	}
	if onListen != nil {
		onListen(ln.Addr())
	}
	return s.Run(ctx, ln)
}
