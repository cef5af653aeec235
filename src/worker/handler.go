// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package worker

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/H0llyW00dzZ/mtls-binding/src/binding"
	"github.com/H0llyW00dzZ/mtls-binding/src/logger"
)

const (
	// DefaultBinding is the binding name the handler uses when none is set.
	DefaultBinding = "MY_CERT"

	// DefaultUpstream is fetched when no upstream is configured.
	DefaultUpstream = "https://api.example.com/endpoint"
)

// Bindings looks up mTLS certificate bindings by name. [binding.Env]
// satisfies it.
type Bindings interface {
	Get(name string) (*binding.MtlsCertificate, error)
}

// Options configures a [Handler]. Zero values select the defaults.
type Options struct {
	Binding  string
	Upstream string
	Logger   logger.Logger
	// Metrics, when set, records every fetch.
	Metrics *Collector
}

// Handler is an [http.Handler] that answers every request with the upstream
// response fetched through an mTLS binding.
type Handler struct {
	bindings Bindings
	binding  string
	upstream string
	log      logger.Logger
	metrics  *Collector
}

// NewHandler returns a Handler that resolves its binding from b.
func NewHandler(b Bindings, opts Options) *Handler {
	h := &Handler{
		bindings: b,
		binding:  opts.Binding,
		upstream: opts.Upstream,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if h.binding == "" {
		h.binding = DefaultBinding
	}
	if h.upstream == "" {
		h.upstream = DefaultUpstream
	}
	if h.log == nil {
		h.log = logger.NewJSONLogger(nil, true)
	}
	return h
}

// hop-by-hop headers are connection specific and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Printf("Handling request: %s", r.URL.Path)

	start := time.Now()

	cert, err := h.bindings.Get(h.binding)
	if err != nil {
		h.metrics.observe(h.binding, outcomeUnbound, 0)
		http.Error(w, fmt.Sprintf(
			"Failed to get mTLS certificate binding: %v. Make sure '%s' is configured in wrangler.toml",
			err, h.binding), http.StatusInternalServerError)
		return
	}

	h.log.Printf("Making authenticated request to: %s", h.upstream)

	resp, err := cert.Fetch(r.Context(), h.upstream, nil)
	if err != nil {
		h.metrics.observe(h.binding, outcomeError, time.Since(start))
		http.Error(w, fmt.Sprintf("Request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	h.metrics.observe(h.binding, statusOutcome(resp.StatusCode), time.Since(start))
	h.log.Printf("Received response with status: %d", resp.StatusCode)

	if err := writeResponse(w, resp); err != nil && r.Context().Err() == nil {
		h.log.Printf("Failed to relay upstream body: %v", err)
	}
}

func writeResponse(w http.ResponseWriter, resp *http.Response) error {
	dst := w.Header()
	for k, vv := range resp.Header {
		dst[k] = append([]string(nil), vv...)
	}
	for _, k := range hopHeaders {
		dst.Del(k)
	}

	w.WriteHeader(resp.StatusCode)

	_, err := io.Copy(w, resp.Body)
	return err
}
