// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// storage keys, runtime filesystem mounts, or subprocess working
// directories. Using these validators prevents path traversal and key
// injection.
package validation

import (
	"fmt"
	"strings"
)

// MaxPathLength bounds a project-relative file path. Badger keys embed the
// path, so unbounded paths would mean unbounded keys.
const MaxPathLength = 512

// ValidateNodePath validates a project-relative file path before it is
// used as a storage key or mounted into the execution runtime.
//
// Valid paths:
//   - relative, "/"-separated, no leading or trailing slash
//   - no empty, ".", or ".." segments
//   - no NUL bytes or newline characters
//
// Example:
//
//	if err := validation.ValidateNodePath(req.Path); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateNodePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("path exceeds %d characters", MaxPathLength)
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return fmt.Errorf("path contains control characters")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must be relative: %q", path)
	}
	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("path must not end with a slash: %q", path)
	}
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "":
			return fmt.Errorf("path contains an empty segment: %q", path)
		case ".", "..":
			return fmt.Errorf("path contains a traversal segment: %q", path)
		}
	}
	return nil
}

// SanitizeNodePath normalizes and validates a path in one step. Windows
// separators are folded to "/" and surrounding whitespace is trimmed.
func SanitizeNodePath(path string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	if err := ValidateNodePath(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
