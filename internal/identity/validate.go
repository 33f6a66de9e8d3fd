package identity

import (
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	stripPattern    = regexp.MustCompile(`[<>'"&]`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	digitPattern    = regexp.MustCompile(`[0-9]`)
	specialPattern  = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// SanitizeInput strips markup-significant characters, trims whitespace and
// caps the length at 255.
func SanitizeInput(input string) string {
	s := stripPattern.ReplaceAllString(input, "")
	s = strings.TrimSpace(s)
	if len(s) > 255 {
		s = s[:255]
	}
	return s
}

// ValidateUsername returns a human-readable problem description, or "" if the
// username is acceptable.
func ValidateUsername(username string) string {
	sanitized := SanitizeInput(username)
	if sanitized == "" {
		return "Username is required"
	}
	if len(sanitized) < 3 {
		return "Username must be at least 3 characters"
	}
	if len(sanitized) > 50 {
		return "Username must be less than 50 characters"
	}
	if !usernamePattern.MatchString(sanitized) {
		return "Username can only contain letters, numbers, _ and -"
	}
	return ""
}

// ValidateEmail returns a problem description, or "" if the email is acceptable.
func ValidateEmail(email string) string {
	sanitized := SanitizeInput(email)
	if sanitized == "" {
		return "Email is required"
	}
	if !emailPattern.MatchString(sanitized) {
		return "Invalid email"
	}
	if len(sanitized) > 100 {
		return "Email must be less than 100 characters"
	}
	return ""
}

// ValidatePassword returns a problem description, or "" if the password meets
// the provider's policy. The password itself is never sanitized.
func ValidatePassword(password string) string {
	if password == "" {
		return "Password is required"
	}
	if len(password) < 8 {
		return "Password must be at least 8 characters"
	}
	if !upperPattern.MatchString(password) {
		return "Password must have an uppercase letter"
	}
	if !lowerPattern.MatchString(password) {
		return "Password must have a lowercase letter"
	}
	if !digitPattern.MatchString(password) {
		return "Password must have a number"
	}
	if !specialPattern.MatchString(password) {
		return "Password must have a special character"
	}
	return ""
}
