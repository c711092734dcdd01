package ratelimit

import "strings"

// Key namespaces. General quota keys, AI metering keys, and per-path
// override keys live in separate buckets so a single request can be
// charged against more than one of them.
const (
	keyPrefixGeneral  = "rl"
	keyPrefixAI       = "ai"
	keyPrefixOverride = "op"
)

// sanitizeKeySegment escapes delimiter characters in key segments so a
// caller-controlled identifier containing ':' cannot collide with an
// adjacent bucket. The escape character is escaped first so no two
// distinct inputs map to the same output.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}

// GeneralKey builds the counter key for a route-class policy check.
func GeneralKey(identity string, class RouteClass) string {
	if identity == "" {
		return ""
	}
	return keyPrefixGeneral + ":" + sanitizeKeySegment(identity) + ":" + string(class)
}

// AIKey builds the counter key for AI metering. AI quota is tracked per
// billable identity, independent of route-class counters.
func AIKey(identity string) string {
	if identity == "" {
		return ""
	}
	return keyPrefixAI + ":" + sanitizeKeySegment(identity)
}

// OverrideKey builds the counter key for an exact-path override check.
func OverrideKey(identity, path string) string {
	if identity == "" {
		return ""
	}
	return keyPrefixOverride + ":" + sanitizeKeySegment(identity) + ":" + sanitizeKeySegment(path)
}
