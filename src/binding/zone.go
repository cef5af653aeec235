// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package binding

import (
	"io"
	"net/http"
	"strings"
)

// StatusProxiedZone is the status returned for fetches to hosts inside a
// proxied zone.
const StatusProxiedZone = 520

const proxiedZoneBody = "error code: 520"

// zoneGuard short-circuits requests whose host lies in a proxied zone and
// refuses plain http, including on redirects.
type zoneGuard struct {
	next  http.RoundTripper
	zones []string
}

func (g *zoneGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := checkScheme(req.URL); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	if InProxiedZone(req.URL.Hostname(), g.zones) {
		if req.Body != nil {
			req.Body.Close()
		}
		return proxiedZoneResponse(req), nil
	}
	return g.next.RoundTrip(req)
}

// InProxiedZone reports whether host equals one of zones or is a subdomain
// of one. Matching is case-insensitive and ignores a trailing dot.
func InProxiedZone(host string, zones []string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, zone := range zones {
		zone = strings.TrimSuffix(strings.ToLower(zone), ".")
		if zone == "" {
			continue
		}
		if host == zone || strings.HasSuffix(host, "."+zone) {
			return true
		}
	}
	return false
}

func proxiedZoneResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:     "520 Unknown Error",
		StatusCode: StatusProxiedZone,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Content-Type": {"text/plain; charset=UTF-8"},
		},
		Body:          io.NopCloser(strings.NewReader(proxiedZoneBody)),
		ContentLength: int64(len(proxiedZoneBody)),
		Request:       req,
	}
}
