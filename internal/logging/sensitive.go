// Package logging builds the service logger and keeps secrets found in
// ingested log records out of it.
package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"logsentry/internal/schema"
)

// SensitiveFields contains field names whose values are never logged.
var SensitiveFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
	"client_secret": true,
	"credentials":   true,
	"authorization": true,
	"bearer":        true,
	"jwt":           true,
	"session_id":    true,
	"cookie":        true,
	"x-api-key":     true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// MaskSensitiveValue masks a value if the field name is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(fieldName) {
		return MaskedValue
	}
	return value
}

// IsSensitiveField checks if a field name is, or contains, a sensitive name.
func IsSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)

	if SensitiveFields[lowerField] {
		return true
	}

	for sensitive := range SensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}

	return false
}

// SensitivePatterns matches secrets embedded in free text such as log messages.
var SensitivePatterns = []*regexp.Regexp{
	// key=value and key: value secrets
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd)['":\s]*[=:]\s*['"]?([a-zA-Z0-9_\-\.]+)['"]?`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`),
	// Basic auth
	regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/=]{8,}`),
	// AWS access keys
	regexp.MustCompile(`(AKIA|ASIA)[A-Z0-9]{16}`),
}

// MaskSensitivePatterns masks sensitive patterns in a raw string.
func MaskSensitivePatterns(s string) string {
	result := s
	for _, pattern := range SensitivePatterns {
		result = pattern.ReplaceAllString(result, MaskedValue)
	}
	return result
}

// RecordAttrs converts a record into a slog group attribute. Values of
// sensitive fields are replaced and string values are scrubbed of embedded
// secrets.
func RecordAttrs(key string, r schema.Record) slog.Attr {
	fields := r.Fields()
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.String(f.Name, safeValue(f.Name, f.Value)))
	}
	return slog.Group(key, attrs...)
}

func safeValue(name string, v schema.Value) string {
	if v.IsNull() {
		return v.String()
	}
	s := MaskSensitiveValue(name, v.String())
	if _, ok := v.Str(); ok && s != MaskedValue {
		return MaskSensitivePatterns(s)
	}
	return s
}
