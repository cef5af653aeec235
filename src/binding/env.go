// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package binding

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/mtls-binding/src/config"
	"github.com/H0llyW00dzZ/mtls-binding/src/logger"
	"github.com/H0llyW00dzZ/mtls-binding/src/version"
)

var (
	// ErrBindingNotFound indicates that no binding with the requested name is configured.
	ErrBindingNotFound = errors.New("binding: no such binding")

	// ErrNoCAPoolSource indicates that a CA bundle was configured but the
	// certificate source cannot provide one.
	ErrNoCAPoolSource = errors.New("binding: certificate source cannot provide CA bundles")
)

// CertificateSource resolves certificate identifiers to client identities.
// [store.Store] satisfies it.
type CertificateSource interface {
	KeyPair(id string) (tls.Certificate, error)
}

// CAPoolSource resolves an identifier to a pool of trusted CA certificates.
// It is consulted when the configuration names fetch.ca_certificate_id.
type CAPoolSource interface {
	CertPool(id string) (*x509.CertPool, error)
}

// Option configures an [Env].
type Option func(*Env)

// WithRootCAs sets the pool used to verify origin certificates.
// It takes precedence over fetch.ca_certificate_id.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(e *Env) { e.rootCAs = pool }
}

// WithLogger sets the logger used to report binding resolution.
func WithLogger(l logger.Logger) Option {
	return func(e *Env) { e.log = l }
}

// WithTransport sets the transport that every binding clones before
// installing its client certificate.
func WithTransport(t *http.Transport) Option {
	return func(e *Env) { e.baseTransport = t }
}

// WithProxiedZones adds proxied zones to those from the configuration.
func WithProxiedZones(zones ...string) Option {
	return func(e *Env) { e.zones = append(e.zones, zones...) }
}

// WithUserAgent overrides the User-Agent sent when a request has none.
func WithUserAgent(ua string) Option {
	return func(e *Env) { e.userAgent = ua }
}

// Env hands out the bindings declared in a configuration.
//
// Env is safe for concurrent use by multiple goroutines.
type Env struct {
	cfg           *config.Config
	src           CertificateSource
	rootCAs       *x509.CertPool
	log           logger.Logger
	baseTransport *http.Transport
	zones         []string
	userAgent     string
	timeout       time.Duration

	mu       sync.Mutex
	bindings map[string]*MtlsCertificate
}

// NewEnv creates an Env for cfg backed by src.
func NewEnv(cfg *config.Config, src CertificateSource, opts ...Option) (*Env, error) {
	e := &Env{
		cfg:      cfg,
		src:      src,
		zones:    slices.Clone(cfg.ProxiedZones),
		timeout:  cfg.Timeout(),
		bindings: make(map[string]*MtlsCertificate),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		e.log = logger.NewJSONLogger(nil, true)
	}
	if e.baseTransport == nil {
		e.baseTransport = http.DefaultTransport.(*http.Transport)
	}
	if e.userAgent == "" {
		e.userAgent = cfg.Fetch.UserAgent
	}
	if e.userAgent == "" {
		e.userAgent = DefaultUserAgent(version.Version)
	}

	if e.rootCAs == nil && cfg.Fetch.CACertificateID != "" {
		pools, ok := src.(CAPoolSource)
		if !ok {
			return nil, ErrNoCAPoolSource
		}
		pool, err := pools.CertPool(cfg.Fetch.CACertificateID)
		if err != nil {
			return nil, fmt.Errorf("binding: fetch.ca_certificate_id: %w", err)
		}
		e.rootCAs = pool
	}

	return e, nil
}

// DefaultUserAgent returns the User-Agent sent by bindings when none is configured.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("mTLS-Certificate-Binding/%s (+https://github.com/H0llyW00dzZ/mtls-binding)", version)
}

// Names returns the configured binding names in declaration order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.cfg.MtlsCertificates))
	for _, b := range e.cfg.MtlsCertificates {
		names = append(names, b.Binding)
	}
	return names
}

// Get returns the binding called name.
//
// The certificate is resolved on first use and the binding is cached, so
// every caller shares one connection pool per binding. A failed resolution is
// not cached.
func (e *Env) Get(name string) (*MtlsCertificate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.bindings[name]; ok {
		return b, nil
	}

	decl, ok := e.cfg.Binding(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBindingNotFound, name)
	}

	cert, err := e.src.KeyPair(decl.CertificateID)
	if err != nil {
		return nil, fmt.Errorf("binding %q: %w", name, err)
	}

	b := newMtlsCertificate(e, decl, cert)
	e.bindings[name] = b

	subject := "unknown"
	if cert.Leaf != nil {
		subject = cert.Leaf.Subject.CommonName
	}
	e.log.Printf("binding %s resolved to certificate %s (CN=%s)", name, decl.CertificateID, subject)

	return b, nil
}

// Close releases idle connections held by every resolved binding.
func (e *Env) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, b := range e.bindings {
		b.transport.CloseIdleConnections()
	}
}
