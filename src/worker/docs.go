// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package worker provides the example request handler that fetches an
// upstream through an mTLS certificate binding, together with a small local
// server to run it.
//
// For every incoming request the handler logs the path, looks up the
// configured binding, and proxies the upstream response back:
//
//   - a missing binding answers 500 with a hint to declare it in wrangler.toml;
//   - a failed fetch answers 502;
//   - anything else, including the 520 produced for proxied zones, is passed
//     through unchanged.
package worker
