package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

var reportIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateReportID accepts uuids and ObjectID hex strings
func ValidateReportID(id string) error {
	if id == "" {
		return fmt.Errorf("report ID cannot be empty")
	}
	if !reportIDPattern.MatchString(id) {
		return fmt.Errorf("invalid report ID format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeHeader strips line breaks so the value is safe in a mail header
func SanitizeHeader(input string) string {
	input = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(input)
	return SanitizeString(input)
}
