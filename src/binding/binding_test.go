// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package binding_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/mtls-binding/src/binding"
	"github.com/H0llyW00dzZ/mtls-binding/src/config"
	"github.com/H0llyW00dzZ/mtls-binding/src/internal/store"
	x509certs "github.com/H0llyW00dzZ/mtls-binding/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/mtls-binding/src/version"
)

// origin is an HTTPS server that requires and verifies client certificates.
type origin struct {
	*httptest.Server
	roots *x509.CertPool
}

func newOrigin(t *testing.T, clientCA *x509certs.KeyPair) *origin {
	t.Helper()

	clientCAs := x509.NewCertPool()
	clientCAs.AddCert(clientCA.Leaf())

	mux := http.NewServeMux()
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.TLS.PeerCertificates[0].Subject.CommonName)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-User-Agent", r.UserAgent())
		w.Header().Set("X-Custom", r.Header.Get("X-Custom"))
		w.Write(body)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/whoami", http.StatusFound)
	})
	mux.HandleFunc("/redirect-proxied", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://www.proxied.example/", http.StatusFound)
	})
	mux.HandleFunc("/redirect-http", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+r.Host+"/whoami", http.StatusFound)
	})

	srv := httptest.NewUnstartedServer(mux)
	srv.TLS = &tls.Config{
		ClientAuth: tls.RequireAndVerifyClientCert,
		ClientCAs:  clientCAs,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())

	return &origin{Server: srv, roots: roots}
}

type fixture struct {
	ca     *x509certs.KeyPair
	store  *store.Store
	certID string
	origin *origin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ca, err := x509certs.Generate(x509certs.GenerateOptions{CommonName: "Binding Test CA", IsCA: true})
	require.NoError(t, err)
	client, err := x509certs.Generate(x509certs.GenerateOptions{CommonName: "worker-client", Parent: ca})
	require.NoError(t, err)

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	rec, err := s.UploadKeyPair(context.Background(), "worker-client", client)
	require.NoError(t, err)

	return &fixture{ca: ca, store: s, certID: rec.ID, origin: newOrigin(t, ca)}
}

func newConfig(t *testing.T, doc string) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte(doc), config.FormatTOML)
	require.NoError(t, err)
	return cfg
}

func (fx *fixture) env(t *testing.T, opts ...binding.Option) *binding.Env {
	t.Helper()

	cfg := newConfig(t, fmt.Sprintf(`
proxied_zones = ["proxied.example"]
mtls_certificates = [
  { binding = "MY_CERT", certificate_id = %q },
  { binding = "MISSING_CERT", certificate_id = "does-not-exist" },
]
`, fx.certID))

	env, err := binding.NewEnv(cfg, fx.store, append([]binding.Option{binding.WithRootCAs(fx.origin.roots)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestFetch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		testFunc func(t *testing.T, cert *binding.MtlsCertificate)
	}{
		{
			name: "Presents client certificate",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				resp, err := cert.Fetch(ctx, fx.origin.URL+"/whoami", nil)
				require.NoError(t, err)

				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, "worker-client", readBody(t, resp))
			},
		},
		{
			name: "Method header and body",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				resp, err := cert.Fetch(ctx, fx.origin.URL+"/echo", &binding.RequestInit{
					Method: "post",
					Header: http.Header{"X-Custom": {"yes"}},
					Body:   strings.NewReader("payload"),
				})
				require.NoError(t, err)

				assert.Equal(t, http.MethodPost, resp.Header.Get("X-Method"))
				assert.Equal(t, "yes", resp.Header.Get("X-Custom"))
				assert.Equal(t, binding.DefaultUserAgent(version.Version), resp.Header.Get("X-User-Agent"))
				assert.Equal(t, "payload", readBody(t, resp))
			},
		},
		{
			name: "Caller User-Agent wins",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				resp, err := cert.Fetch(ctx, fx.origin.URL+"/echo", &binding.RequestInit{
					Header: http.Header{"User-Agent": {"custom/1.0"}},
				})
				require.NoError(t, err)
				defer resp.Body.Close()

				assert.Equal(t, "custom/1.0", resp.Header.Get("X-User-Agent"))
			},
		},
		{
			name: "Follows redirects by default",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				resp, err := cert.Fetch(ctx, fx.origin.URL+"/redirect", nil)
				require.NoError(t, err)

				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, "worker-client", readBody(t, resp))
			},
		},
		{
			name: "Manual redirect returns the redirect",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				resp, err := cert.Fetch(ctx, fx.origin.URL+"/redirect", &binding.RequestInit{Redirect: binding.RedirectManual})
				require.NoError(t, err)
				defer resp.Body.Close()

				assert.Equal(t, http.StatusFound, resp.StatusCode)
				assert.Equal(t, "/whoami", resp.Header.Get("Location"))
			},
		},
		{
			name: "Error redirect fails",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				_, err := cert.Fetch(ctx, fx.origin.URL+"/redirect", &binding.RequestInit{Redirect: binding.RedirectError})
				assert.ErrorIs(t, err, binding.ErrRedirect)
			},
		},
		{
			name: "Invalid redirect mode",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				_, err := cert.Fetch(ctx, fx.origin.URL+"/whoami", &binding.RequestInit{Redirect: "sometimes"})
				assert.ErrorIs(t, err, binding.ErrInvalidRedirectMode)
			},
		},
		{
			name: "Rejects plain http",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				_, err := cert.Fetch(ctx, "http://127.0.0.1/whoami", nil)
				assert.ErrorIs(t, err, binding.ErrInsecureScheme)
			},
		},
		{
			name: "Rejects redirect to plain http",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				_, err := cert.Fetch(ctx, fx.origin.URL+"/redirect-http", nil)
				assert.ErrorIs(t, err, binding.ErrInsecureScheme)
			},
		},
		{
			name: "Redirect into proxied zone yields 520",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				resp, err := cert.Fetch(ctx, fx.origin.URL+"/redirect-proxied", nil)
				require.NoError(t, err)

				assert.Equal(t, binding.StatusProxiedZone, resp.StatusCode)
				assert.Equal(t, "error code: 520", readBody(t, resp))
			},
		},
		{
			name: "FetchRequest",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, fx.origin.URL+"/whoami", nil)
				require.NoError(t, err)

				resp, err := cert.FetchRequest(req)
				require.NoError(t, err)

				assert.Equal(t, "worker-client", readBody(t, resp))
				assert.Empty(t, req.Header.Get("User-Agent"), "caller request must not be mutated")
			},
		},
		{
			name: "FetchRequest without headers",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				u, err := url.Parse(fx.origin.URL + "/echo")
				require.NoError(t, err)

				req := &http.Request{Method: http.MethodGet, URL: u}

				var resp *http.Response
				require.NotPanics(t, func() {
					resp, err = cert.FetchRequest(req)
				})
				require.NoError(t, err)
				defer resp.Body.Close()

				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, binding.DefaultUserAgent(version.Version), resp.Header.Get("X-User-Agent"))
				assert.Nil(t, req.Header, "caller request must not be mutated")
			},
		},
		{
			name: "Canceled context",
			testFunc: func(t *testing.T, cert *binding.MtlsCertificate) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()

				_, err := cert.Fetch(cctx, fx.origin.URL+"/whoami", nil)
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
	}

	env := fx.env(t)
	cert, err := env.Get("MY_CERT")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, cert)
		})
	}
}

func TestOrigin_RejectsMissingClientCertificate(t *testing.T) {
	fx := newFixture(t)

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: fx.origin.roots},
	}}

	resp, err := client.Get(fx.origin.URL + "/whoami")
	if err == nil {
		// TLS 1.3 reports the rejected handshake on first read.
		_, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestFetch_ProxiedZoneDoesNotDial(t *testing.T) {
	fx := newFixture(t)

	var dialled atomic.Bool
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialled.Store(true)
			return nil, errors.New("unexpected dial")
		},
	}

	env := fx.env(t, binding.WithTransport(transport), binding.WithProxiedZones("Example.COM."))
	cert, err := env.Get("MY_CERT")
	require.NoError(t, err)

	for _, target := range []string{
		"https://proxied.example/",
		"https://api.proxied.example/endpoint",
		"https://api.example.com/endpoint",
		"https://EXAMPLE.com./",
	} {
		t.Run(target, func(t *testing.T) {
			resp, err := cert.Fetch(context.Background(), target, &binding.RequestInit{Body: strings.NewReader("ignored")})
			require.NoError(t, err)

			assert.Equal(t, binding.StatusProxiedZone, resp.StatusCode)
			assert.Equal(t, "error code: 520", readBody(t, resp))
		})
	}

	assert.False(t, dialled.Load())

	_, err = cert.Fetch(context.Background(), "https://notproxied.example/", nil)
	assert.Error(t, err)
	assert.True(t, dialled.Load())
}

func TestEnv_Get(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name     string
		testFunc func(t *testing.T, env *binding.Env)
	}{
		{
			name: "Unknown binding",
			testFunc: func(t *testing.T, env *binding.Env) {
				_, err := env.Get("OTHER_CERT")
				assert.ErrorIs(t, err, binding.ErrBindingNotFound)
				assert.Contains(t, err.Error(), "OTHER_CERT")
			},
		},
		{
			name: "Unknown certificate",
			testFunc: func(t *testing.T, env *binding.Env) {
				_, err := env.Get("MISSING_CERT")
				assert.ErrorIs(t, err, store.ErrNotFound)

				_, err = env.Get("MISSING_CERT")
				assert.ErrorIs(t, err, store.ErrNotFound, "failures are not cached")
			},
		},
		{
			name: "Cached per binding",
			testFunc: func(t *testing.T, env *binding.Env) {
				a, err := env.Get("MY_CERT")
				require.NoError(t, err)
				b, err := env.Get("MY_CERT")
				require.NoError(t, err)

				assert.Same(t, a, b)
				assert.Equal(t, "MY_CERT", a.Name())
				assert.Equal(t, fx.certID, a.CertificateID())
				assert.Equal(t, "worker-client", a.Leaf().Subject.CommonName)
			},
		},
		{
			name: "Names",
			testFunc: func(t *testing.T, env *binding.Env) {
				assert.Equal(t, []string{"MY_CERT", "MISSING_CERT"}, env.Names())
			},
		},
		{
			name: "Concurrent Get",
			testFunc: func(t *testing.T, env *binding.Env) {
				var wg sync.WaitGroup
				results := make([]*binding.MtlsCertificate, 16)
				for i := range results {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						results[i], _ = env.Get("MY_CERT")
					}(i)
				}
				wg.Wait()

				for _, r := range results {
					assert.Same(t, results[0], r)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, fx.env(t))
		})
	}
}

func TestNewEnv_CACertificateID(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ca, err := fx.store.UploadCA(ctx, "origin-ca", x509certs.New().EncodePEM(fx.origin.Certificate()))
	require.NoError(t, err)

	cfg := newConfig(t, fmt.Sprintf(`
mtls_certificates = [{ binding = "MY_CERT", certificate_id = %q }]

[fetch]
ca_certificate_id = %q
user_agent = "worker/2.0"
`, fx.certID, ca.ID))

	env, err := binding.NewEnv(cfg, fx.store)
	require.NoError(t, err)
	defer env.Close()

	cert, err := env.Get("MY_CERT")
	require.NoError(t, err)

	resp, err := cert.Fetch(ctx, fx.origin.URL+"/echo", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "worker/2.0", resp.Header.Get("X-User-Agent"))

	t.Run("Client certificate as CA bundle", func(t *testing.T) {
		cfg := newConfig(t, fmt.Sprintf("[fetch]\nca_certificate_id = %q\n", fx.certID))
		_, err := binding.NewEnv(cfg, fx.store)
		assert.ErrorIs(t, err, store.ErrNotCABundle)
	})

	t.Run("Source without CA bundles", func(t *testing.T) {
		cfg := newConfig(t, fmt.Sprintf("[fetch]\nca_certificate_id = %q\n", ca.ID))
		_, err := binding.NewEnv(cfg, keyPairOnly{fx.store})
		assert.ErrorIs(t, err, binding.ErrNoCAPoolSource)
	})
}

type keyPairOnly struct{ s *store.Store }

func (k keyPairOnly) KeyPair(id string) (tls.Certificate, error) { return k.s.KeyPair(id) }

func TestInProxiedZone(t *testing.T) {
	zones := []string{"example.com", "Proxied.Example."}

	tests := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"api.example.com", true},
		{"deep.api.example.com", true},
		{"API.EXAMPLE.COM.", true},
		{"proxied.example", true},
		{"notexample.com", false},
		{"example.com.evil", false},
		{"127.0.0.1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, binding.InProxiedZone(tt.host, zones))
		})
	}
}
