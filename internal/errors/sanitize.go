// Package errors keeps internal details such as upload paths out of error
// messages returned to clients.
package errors

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Absolute paths with at least two segments (Linux and Windows)
	filePathPattern = regexp.MustCompile(`(?:/[a-zA-Z0-9_\-.]+){2,}/?|[A-Z]:\\[a-zA-Z0-9_\-\\.]+`)

	// Pattern to match IP addresses
	ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	// Secrets that must never be echoed
	secretPattern = regexp.MustCompile(`(?i)(password|secret|token|api[_-]?key)=\S+`)
)

// ProductionMode determines whether to use sanitized errors.
var ProductionMode = false

// SetProductionMode sets the production mode flag.
// Should be called during application initialization.
func SetProductionMode(production bool) {
	ProductionMode = production
}

// IsProduction returns true if running in production mode.
func IsProduction() bool {
	return ProductionMode
}

// SanitizeError removes sensitive information from error messages before
// returning them to users. Outside production mode err is returned unchanged.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	if !ProductionMode {
		return err
	}
	return errors.New(SanitizeString(err.Error()))
}

// SanitizeString removes sensitive information from a string.
func SanitizeString(s string) string {
	if !ProductionMode {
		return s
	}

	// Keep only the file name of absolute paths
	s = filePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		return baseName(match)
	})

	// Mask IP addresses (keep first two octets for debugging context)
	s = ipPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		return fmt.Sprintf("%s.%s.x.x", parts[0], parts[1])
	})

	s = secretPattern.ReplaceAllString(s, "$1=[REDACTED]")

	// Replace long stack traces with generic message
	if strings.Contains(s, "goroutine ") || strings.Count(s, "\n") > 3 {
		s = "internal server error - operation failed"
	}

	return s
}

// SafeErrorMessage returns a message for err that is safe to show a client.
func SafeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeError(err).Error()
}

// baseName returns the last element of a slash or backslash separated path.
func baseName(path string) string {
	path = strings.TrimRight(path, `/\`)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
