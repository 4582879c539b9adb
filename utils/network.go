package utils

import (
	"net"
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
)

// TrustProxyHeaders gates whether forwarded-for style headers are believed.
// It must stay off unless the deployment sits behind a proxy the operator
// controls, otherwise rate limiting keys off attacker-chosen addresses.
var TrustProxyHeaders atomic.Bool

var privateNets []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		if _, block, err := net.ParseCIDR(cidr); err == nil {
			privateNets = append(privateNets, block)
		}
	}
}

// ClientIP resolves the caller's address for rate limiting and audit rows.
// With proxy trust disabled it is simply the socket peer; with it enabled
// the usual proxy headers are consulted in order of reliability.
func ClientIP(c *fiber.Ctx) string {
	if !TrustProxyHeaders.Load() {
		return c.IP()
	}

	if ip := headerIP(c, "CF-Connecting-IP"); ip != "" {
		return ip
	}

	// X-Forwarded-For may hold a chain; prefer the first public hop.
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		var firstValid string
		for _, part := range strings.Split(forwarded, ",") {
			candidate := strings.TrimSpace(part)
			if candidate == "" || strings.EqualFold(candidate, "unknown") {
				continue
			}
			parsed := net.ParseIP(candidate)
			if parsed == nil {
				continue
			}
			if IsPublicIP(parsed) {
				return candidate
			}
			if firstValid == "" {
				firstValid = candidate
			}
		}
		if firstValid != "" {
			return firstValid
		}
	}

	if ip := headerIP(c, "X-Real-IP"); ip != "" {
		return ip
	}
	if ip := headerIP(c, "X-Client-IP"); ip != "" {
		return ip
	}
	return c.IP()
}

func headerIP(c *fiber.Ctx, name string) string {
	value := strings.TrimSpace(c.Get(name))
	if value == "" || net.ParseIP(value) == nil {
		return ""
	}
	return value
}

// IsPublicIP reports whether ip is routable outside RFC1918/loopback ranges.
func IsPublicIP(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	for _, block := range privateNets {
		if block.Contains(ip) {
			return false
		}
	}
	return true
}
