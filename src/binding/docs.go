// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package binding implements mTLS certificate bindings.
//
// A binding is a named handle through which code fetches HTTPS resources while
// presenting a stored client certificate during the TLS handshake. The
// certificate itself never leaves the binding: callers only see
// [MtlsCertificate.Fetch] and [MtlsCertificate.FetchRequest].
//
// Bindings are obtained from an [Env], which is built from the declarative
// configuration and a certificate source such as the local store:
//
//	env, err := binding.NewEnv(cfg, certStore)
//	if err != nil {
//		return err
//	}
//	cert, err := env.Get("MY_CERT")
//	if err != nil {
//		return err
//	}
//	resp, err := cert.Fetch(ctx, "https://api.example.com/endpoint", nil)
//
// Endpoints inside a proxied zone cannot negotiate mTLS through the reverse
// proxy. Fetches to such hosts are not dialled; they answer with a synthetic
// HTTP 520 response instead.
package binding
