// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// privateIPRanges defines CIDR blocks for private/reserved networks.
var privateIPRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // link-local, includes cloud metadata
	"0.0.0.0/8",
	"100.64.0.0/10",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
	"::/128",
}

var parsedPrivateRanges []*net.IPNet

func init() {
	for _, cidr := range privateIPRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR in privateIPRanges: " + cidr)
		}
		parsedPrivateRanges = append(parsedPrivateRanges, network)
	}
}

// ValidateEndpoint checks that a webhook endpoint is an absolute http(s)
// URL. Unless allowPrivate is set, endpoints that are or resolve to
// loopback, private or link-local addresses are rejected.
func ValidateEndpoint(rawURL string, allowPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("URL is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("only http and https URLs are allowed")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if allowPrivate {
		return nil
	}

	if strings.EqualFold(hostname, "localhost") {
		return fmt.Errorf("localhost URLs are not allowed")
	}

	ips, err := net.LookupHost(hostname)
	if err != nil {
		return fmt.Errorf("cannot resolve hostname %q: %w", hostname, err)
	}
	for _, ipStr := range ips {
		if ip := net.ParseIP(ipStr); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private/reserved IP address (%s)", ipStr)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range parsedPrivateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
