package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is the registered Modbus/TCP port.
const DefaultPort = 502

// ParseURI turns a device URI into a dialable host:port.
// Supported formats:
//   - "tcp://host:port"
//   - "tcp://host" -> port 502
//   - "host:port" or "host" (bare)
func ParseURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("empty device URI")
	}
	if !strings.Contains(uri, "://") {
		return hostPort(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse URI: %w", err)
	}
	switch u.Scheme {
	case "tcp", "modbus", "modbus+tcp":
	default:
		return "", fmt.Errorf("unsupported transport scheme: %s", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("device host is required in %q", uri)
	}
	port := DefaultPort
	if p := u.Port(); p != "" {
		if port, err = parsePort(p); err != nil {
			return "", err
		}
	}
	return net.JoinHostPort(u.Hostname(), strconv.Itoa(port)), nil
}

// hostPort parses a bare host or host:port, including bracketed IPv6.
func hostPort(addr string) (string, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		// No port: the whole addr is the host.
		host = strings.Trim(addr, "[]")
		return net.JoinHostPort(host, strconv.Itoa(DefaultPort)), nil
	}
	if host == "" {
		return "", fmt.Errorf("device host is required in %q", addr)
	}
	port, err := parsePort(p)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func parsePort(p string) (int, error) {
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port: %q", p)
	}
	return port, nil
}
