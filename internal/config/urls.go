package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// portCheckTimeout is the default timeout for checking if a port is open.
const portCheckTimeout = 500 * time.Millisecond

// NormalizeBaseURL trims whitespace and trailing slashes. A bare host:port
// gets the http scheme.
//
// Parameters:
//   - raw: The configured base URL
//
// Returns:
//   - string: The normalized base URL
func NormalizeBaseURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/")
}

// ValidateBaseURL checks that raw is an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", KeyBaseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", KeyBaseURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", KeyBaseURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", KeyBaseURL, raw)
	}
	return nil
}

// IsReachable reports whether the host of baseURL accepts TCP connections.
//
// Parameters:
//   - baseURL: The backend base URL
//   - timeout: Dial timeout; zero uses a short default
//
// Returns:
//   - bool: True if the port is open and accepting connections
func IsReachable(baseURL string, timeout time.Duration) bool {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return isPortOpen(u.Hostname(), port, timeout)
}

// isPortOpen checks if a TCP port is open on the given host.
func isPortOpen(host, port string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = portCheckTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
