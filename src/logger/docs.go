// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package logger provides abstraction and implementation for logging operations.
// It defines the Logger interface and provides two implementations: CLILogger for
// human-readable command-line output and JSONLogger for structured line-delimited
// JSON logging when the binding runs as a long-lived dev server. Both
// implementations are thread-safe; JSONLogger uses buffer pooling to keep
// allocations low under concurrent request handling.
package logger
