// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package store keeps uploaded mTLS client certificates on local disk.
//
// Each upload is validated, assigned an opaque identifier and written as one
// YAML record per certificate. Bindings refer to certificates only by that
// identifier, so the store is the single place where private keys live. The
// store also holds CA bundles that a binding may use to verify the origin it
// connects to.
package store
