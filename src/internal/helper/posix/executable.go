// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultName is returned when no usable argv[0] is available.
const DefaultName = "mtls-binding"

// GetExecutableName returns the executable name without extension, cross-platform compatible.
// It extracts the base name from os.Args[0]; see [ExecutableNameFrom].
func GetExecutableName() string {
	if len(os.Args) == 0 {
		return DefaultName
	}
	return ExecutableNameFrom(os.Args[0])
}

// ExecutableNameFrom strips directories and a trailing .exe from arg0.
// Both slash and backslash are treated as separators so that a Windows path
// seen on a Unix host still yields the bare name.
func ExecutableNameFrom(arg0 string) string {
	if arg0 == "" {
		return DefaultName
	}

	name := filepath.Base(arg0)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	name = strings.TrimSuffix(name, ".exe")
	if name == "" || name == "." {
		return DefaultName
	}

	return name
}
