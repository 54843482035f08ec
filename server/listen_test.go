// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/z5labs/jack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestKeyPair generates a PEM encoded self-signed key pair.
func createTestKeyPair(t *testing.T) (key, cert []byte) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)

	key = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	cert = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	return key, cert
}

// envApp responds with the protocol and server port it observed.
var envApp = jack.AppFunc(func(ctx context.Context, env jack.Env, respond jack.Respond) {
	respond(jack.Response{
		Status:  http.StatusOK,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    env.Protocol() + env.ServerPort(),
	})
})

// startServer runs app in the background and returns the bound address
// once it is accepting connections. The server is stopped at the end of
// the test and must shut down cleanly.
func startServer(t *testing.T, app any, opts RunOptions) net.Addr {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan net.Addr, 1)
	errs := make(chan error, 1)
	go func() {
		errs <- Run(ctx, app, opts, func(addr net.Addr) {
			addrs <- addr
		})
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errs:
			assert.Nil(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	select {
	case addr := <-addrs:
		return addr
	case err := <-errs:
		t.Fatal(err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never started listening")
	}
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRun(t *testing.T) {
	t.Run("will serve over tcp", func(t *testing.T) {
		addr := startServer(t, envApp, RunOptions{
			Host: "127.0.0.1",
			Port: "0",
		})

		resp, err := http.Get("http://" + addr.String() + "/")
		if !assert.Nil(t, err) {
			return
		}

		_, port, _ := net.SplitHostPort(addr.String())
		if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
			return
		}
		if !assert.Equal(t, jack.ProtocolHTTP+port, readBody(t, resp)) {
			return
		}
	})

	t.Run("will serve over tls", func(t *testing.T) {
		t.Run("if both a key and cert are given", func(t *testing.T) {
			key, cert := createTestKeyPair(t)
			addr := startServer(t, envApp, RunOptions{
				Host: "127.0.0.1",
				Port: "0",
				Key:  key,
				Cert: cert,
			})

			client := &http.Client{
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				},
			}
			resp, err := client.Get("https://" + addr.String() + "/")
			if !assert.Nil(t, err) {
				return
			}

			_, port, _ := net.SplitHostPort(addr.String())
			if !assert.Equal(t, jack.ProtocolHTTPS+port, readBody(t, resp)) {
				return
			}
		})
	})

	t.Run("will serve plain http", func(t *testing.T) {
		t.Run("if only a key is given", func(t *testing.T) {
			key, _ := createTestKeyPair(t)
			addr := startServer(t, envApp, RunOptions{
				Host: "127.0.0.1",
				Port: "0",
				Key:  key,
			})

			resp, err := http.Get("http://" + addr.String() + "/")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will echo a large request body", func(t *testing.T) {
		t.Run("if the app streams its input back", func(t *testing.T) {
			addr := startServer(t, echoApp, RunOptions{
				Host: "127.0.0.1",
				Port: "0",
			})

			sent := bytes.Repeat([]byte("0123456789"), 60*1024)
			resp, err := http.Post("http://"+addr.String()+"/echo", "application/octet-stream", bytes.NewReader(sent))
			if !assert.Nil(t, err) {
				return
			}

			echoed := readBody(t, resp)
			if !assert.Equal(t, len(sent), len(echoed)) {
				return
			}
			if !assert.Equal(t, string(sent), echoed) {
				return
			}
		})
	})

	t.Run("will serve over a unix socket", func(t *testing.T) {
		t.Run("if a socket path is given", func(t *testing.T) {
			socket := filepath.Join(t.TempDir(), "jack.sock")
			addr := startServer(t, envApp, RunOptions{
				Port:   "8080",
				Socket: socket,
			})
			if !assert.Equal(t, "unix", addr.Network()) {
				return
			}

			client := &http.Client{
				Transport: &http.Transport{
					DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
						var d net.Dialer
						return d.DialContext(ctx, "unix", socket)
					},
				},
			}
			resp, err := client.Get("http://jack/")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, jack.ProtocolHTTP+"80", readBody(t, resp)) {
				return
			}
		})
	})

	t.Run("will return a configuration error", func(t *testing.T) {
		t.Run("if the app is not invocable", func(t *testing.T) {
			err := Run(context.Background(), "not an app", RunOptions{Port: "0"}, nil)
			if !assert.ErrorIs(t, err, jack.ErrConfiguration) {
				return
			}
		})
	})
}

func TestListen(t *testing.T) {
	t.Run("will default to port 1982", func(t *testing.T) {
		t.Run("if no port is given", func(t *testing.T) {
			ln, err := Listen(RunOptions{Host: "127.0.0.1"})
			if err != nil {
				t.Skipf("port %s is unavailable: %v", DefaultPort, err)
			}
			defer ln.Close()

			_, port, err := net.SplitHostPort(ln.Addr().String())
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, DefaultPort, port) {
				return
			}
		})
	})

	t.Run("will return a configuration error", func(t *testing.T) {
		t.Run("if the key pair is invalid", func(t *testing.T) {
			_, err := Listen(RunOptions{
				Host: "127.0.0.1",
				Port: "0",
				Key:  []byte("not a key"),
				Cert: []byte("not a cert"),
			})
			if !assert.ErrorIs(t, err, jack.ErrConfiguration) {
				return
			}
		})
	})
}
