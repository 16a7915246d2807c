package guard

import "strings"

// SanitizeRedirectPath validates a post-login redirect target, allowing
// only local absolute paths. Anything else falls back to the dashboard.
func SanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/dashboard"
}

func isLocalPath(path string) bool {
	if path == "" || path[0] != '/' {
		return false
	}
	// Protocol-relative URLs ("//evil.example") and backslash tricks.
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return false
	}
	return true
}
