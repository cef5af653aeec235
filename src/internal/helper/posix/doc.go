// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package posix provides [POSIX]-compliant helper functions for cross-platform compatibility.
//
// Key functions:
//   - GetExecutableName: Returns the executable name without extension for CLI usage
//   - ExecutableNameFrom: The same transformation applied to an arbitrary argv[0]
//
// The command tree uses the executable name in its Use and Example strings, so
// that "mtls-binding certificate upload" reads correctly whether the binary was
// installed as mtls-binding, renamed, or invoked as mtls-binding.exe on Windows:
//
//   - Linux/macOS: "/usr/local/bin/mtls-binding" → "mtls-binding"
//   - Windows: "C:\bin\mtls-binding.exe" → "mtls-binding"
//   - Fallback: Empty args → "mtls-binding"
//
// [POSIX]: https://grokipedia.com/page/POSIX
package posix
