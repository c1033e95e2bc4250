package utils

import (
	"net"
	"net/url"
	"strings"
)

// IsLocalhost reports whether serverURL points at this machine: "localhost",
// any loopback address, or the unspecified address a dev server binds to.
func IsLocalhost(serverURL string) bool {
	u, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// Locality labels serverURL for the status bar.
func Locality(serverURL string) string {
	if IsLocalhost(serverURL) {
		return "local"
	}
	return "remote"
}
