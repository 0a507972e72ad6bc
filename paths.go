package sessgate

import "strings"

// DefaultProxyPrefix is prepended to bare paths so they route through the
// site's API proxy.
const DefaultProxyPrefix = "/api/"

// NormalizePath resolves a caller-supplied path to the literal request
// destination. Absolute URLs and site-rooted paths pass through unchanged;
// anything else is routed through prefix. Pure and deterministic.
func NormalizePath(path, prefix string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return path
	}
	return prefix + path
}

func isMutating(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}
