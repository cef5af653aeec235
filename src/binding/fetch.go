// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package binding

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/H0llyW00dzZ/mtls-binding/src/config"
)

var (
	// ErrInsecureScheme indicates a fetch to a URL other than https.
	// The client certificate is only usable within TLS negotiation.
	ErrInsecureScheme = errors.New("binding: only https URLs can be fetched through an mTLS binding")

	// ErrRedirect is returned when the origin redirects and the request was
	// made with [RedirectError].
	ErrRedirect = errors.New("binding: unexpected redirect")

	// ErrInvalidRedirectMode indicates an unknown [RedirectMode].
	ErrInvalidRedirectMode = errors.New("binding: invalid redirect mode")
)

// RedirectMode controls how a fetch handles redirect responses.
type RedirectMode string

const (
	// RedirectFollow follows up to ten redirects. It is the default.
	RedirectFollow RedirectMode = "follow"
	// RedirectManual returns the redirect response to the caller.
	RedirectManual RedirectMode = "manual"
	// RedirectError fails the fetch with [ErrRedirect].
	RedirectError RedirectMode = "error"
)

// RequestInit holds the optional parameters of [MtlsCertificate.Fetch].
type RequestInit struct {
	// Method defaults to GET.
	Method string
	Header http.Header
	Body   io.Reader
	// Redirect defaults to [RedirectFollow].
	Redirect RedirectMode
}

// MtlsCertificate is a resolved binding. It owns a dedicated transport whose
// TLS configuration presents the bound certificate to every origin that
// requests one.
//
// MtlsCertificate is safe for concurrent use by multiple goroutines.
type MtlsCertificate struct {
	name          string
	certificateID string
	leaf          *x509.Certificate
	transport     *http.Transport
	client        *http.Client
	userAgent     string
}

func newMtlsCertificate(e *Env, decl config.MtlsCertificate, cert tls.Certificate) *MtlsCertificate {
	transport := e.baseTransport.Clone()

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if transport.TLSClientConfig != nil {
		tlsConfig = transport.TLSClientConfig.Clone()
		if tlsConfig.MinVersion < tls.VersionTLS12 {
			tlsConfig.MinVersion = tls.VersionTLS12
		}
	}
	if e.rootCAs != nil {
		tlsConfig.RootCAs = e.rootCAs
	}
	// Always answer a certificate request with the bound identity, even when
	// the server's acceptable CA list does not name its issuer.
	tlsConfig.Certificates = nil
	tlsConfig.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
		return &cert, nil
	}
	transport.TLSClientConfig = tlsConfig

	return &MtlsCertificate{
		name:          decl.Binding,
		certificateID: decl.CertificateID,
		leaf:          cert.Leaf,
		transport:     transport,
		client: &http.Client{
			Transport: &zoneGuard{next: transport, zones: e.zones},
			Timeout:   e.timeout,
		},
		userAgent: e.userAgent,
	}
}

// Name returns the binding name, e.g. MY_CERT.
func (m *MtlsCertificate) Name() string { return m.name }

// CertificateID returns the identifier of the bound certificate.
func (m *MtlsCertificate) CertificateID() string { return m.certificateID }

// Leaf returns the bound leaf certificate.
func (m *MtlsCertificate) Leaf() *x509.Certificate { return m.leaf }

// Fetch requests rawURL, presenting the bound client certificate if the
// origin asks for one. init may be nil.
//
// The caller must close the response body.
func (m *MtlsCertificate) Fetch(ctx context.Context, rawURL string, init *RequestInit) (*http.Response, error) {
	if init == nil {
		init = &RequestInit{}
	}

	method := init.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), rawURL, init.Body)
	if err != nil {
		return nil, fmt.Errorf("binding: %w", err)
	}
	if init.Header != nil {
		req.Header = init.Header.Clone()
	}

	return m.do(req, init.Redirect)
}

// FetchRequest sends a prepared request through the binding, following
// redirects. The request context governs cancellation.
func (m *MtlsCertificate) FetchRequest(req *http.Request) (*http.Response, error) {
	return m.do(req, RedirectFollow)
}

func (m *MtlsCertificate) do(req *http.Request, mode RedirectMode) (*http.Response, error) {
	if err := checkScheme(req.URL); err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" {
		// Clone so the caller's request is never mutated.
		req = req.Clone(req.Context())
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		req.Header.Set("User-Agent", m.userAgent)
	}

	client := m.client
	switch mode {
	case "", RedirectFollow:
	case RedirectManual:
		c := *m.client
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		client = &c
	case RedirectError:
		c := *m.client
		c.CheckRedirect = func(r *http.Request, _ []*http.Request) error {
			return fmt.Errorf("%w to %s", ErrRedirect, r.URL.Redacted())
		}
		client = &c
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRedirectMode, mode)
	}

	return client.Do(req)
}

func checkScheme(u *url.URL) error {
	if u == nil || !strings.EqualFold(u.Scheme, "https") {
		return ErrInsecureScheme
	}
	return nil
}
