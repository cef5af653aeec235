// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package config loads the declarative binding configuration.
//
// The configuration maps binding names to stored certificate identifiers in
// the same shape the edge platform uses in wrangler.toml:
//
//	mtls_certificates = [
//	  { binding = "MY_CERT", certificate_id = "<CERTIFICATE_ID>" }
//	]
//
// TOML is the primary format; YAML and JSON are accepted as well and selected
// by file extension. Every document is checked against an embedded JSON Schema
// before it is decoded, and then validated semantically.
package config
