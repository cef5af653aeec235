// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// mtls-binding uploads client certificates, binds them by name, and fetches
// HTTPS resources that present the bound certificate during the TLS handshake.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/mtls-binding/cmd/mtls-binding@latest
//
// # Setup
//
// Upload your certificate and private key. The command prints the
// certificate ID:
//
//	mtls-binding certificate upload --cert cert.pem --key key.pem
//
// Declare the binding in wrangler.toml:
//
//	upstream = "https://api.example.com/endpoint"
//
//	mtls_certificates = [
//	  { binding = "MY_CERT", certificate_id = "<CERTIFICATE_ID>" }
//	]
//
// # Usage
//
// Fetch through the binding:
//
//	mtls-binding fetch https://api.example.com/endpoint
//
// Run the example handler, which relays the upstream response for every
// request it receives:
//
//	mtls-binding serve --listen 127.0.0.1:8787
//
// Check that every binding resolves to a stored certificate:
//
//	mtls-binding validate
//
// # Limitations
//
// mTLS cannot be negotiated through the platform's own reverse proxy. Hosts
// listed under proxied_zones, and their subdomains, are never dialled and
// answer with HTTP 520.
package main
