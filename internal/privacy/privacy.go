// Package privacy scrubs credentials out of strings before they reach logs,
// telemetry or chat. Notification targets and broker URLs carry webhook
// tokens and passwords in the URL itself.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// scheme://anything up to whitespace; covers shoutrrr service URLs such
	// as discord://token@channel as well as http(s), tcp and ssl brokers
	urlPattern = regexp.MustCompile(`\b[a-z][a-z0-9+.-]{1,15}://\S+`)

	// bearer and api tokens in free text
	tokenPattern = regexp.MustCompile(`(?i)\b(bearer|token|apikey|api_key|key)([=: ]+)[A-Za-z0-9._\-]{8,}`)
)

// ScrubMessage replaces every URL in message with RedactURL and masks
// obvious tokens
func ScrubMessage(message string) string {
	scrubbed := urlPattern.ReplaceAllStringFunc(message, RedactURL)
	return tokenPattern.ReplaceAllString(scrubbed, "$1$2[TOKEN]")
}

// RedactURL keeps the scheme, host and port of rawURL for debugging and
// drops user info, path and query. Service URLs whose host is itself a
// secret, like discord://token@id, keep only the scheme.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		redacted := u.Scheme + "://" + u.Host
		if u.User != nil {
			redacted = u.Scheme + "://[REDACTED]@" + u.Host
		}
		if (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
			redacted += "/[REDACTED]"
		}
		return redacted
	default:
		return u.Scheme + "://[REDACTED]"
	}
}

// Scheme returns the scheme of a service URL, or "unknown". It is used as
// the provider label of notification metrics.
func Scheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return strings.ToLower(u.Scheme)
}
