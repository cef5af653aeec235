// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the command-line interface for mTLS certificate bindings.
//
// It implements a Cobra command tree that uploads client certificates to the
// local store, lists and deletes them, issues development certificates,
// validates binding configuration, fetches URLs through a binding, and runs
// the example handler as a local server. Results go to standard output and
// log lines to standard error, so command output can be piped.
package cli
