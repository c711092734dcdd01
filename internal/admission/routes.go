package admission

import (
	"net/http"
	"strings"

	"github.com/edgegate/edgegate/internal/ratelimit"
)

// Routes maps request paths onto admission behavior: which paths bypass
// the pipeline entirely, which skip CSRF, and which are AI-metered.
type Routes struct {
	ExemptPrefixes     []string
	CSRFExemptPrefixes []string
	AIPrefixes         []string
}

// DefaultRoutes returns the built-in route map. Health checks and signed
// webhooks bypass admission; login is CSRF-exempt because no session
// exists yet when it is called.
func DefaultRoutes() Routes {
	return Routes{
		ExemptPrefixes:     []string{"/healthz", "/v0/webhooks"},
		CSRFExemptPrefixes: []string{"/v0/auth/login", "/v0/webhooks"},
		AIPrefixes:         []string{"/v0/ai"},
	}
}

// Merge appends configured prefixes onto the defaults.
func (r Routes) Merge(exempt, csrfExempt, ai []string) Routes {
	r.ExemptPrefixes = append(r.ExemptPrefixes, exempt...)
	r.CSRFExemptPrefixes = append(r.CSRFExemptPrefixes, csrfExempt...)
	r.AIPrefixes = append(r.AIPrefixes, ai...)
	return r
}

// Exempt reports whether the path bypasses admission entirely.
func (r Routes) Exempt(path string) bool {
	return matchesPrefix(path, r.ExemptPrefixes)
}

// CSRFExempt reports whether the path skips CSRF verification.
func (r Routes) CSRFExempt(path string) bool {
	return matchesPrefix(path, r.CSRFExemptPrefixes)
}

// AI reports whether the path is AI-metered.
func (r Routes) AI(path string) bool {
	return matchesPrefix(path, r.AIPrefixes)
}

// Classify buckets the request into a route class for policy selection.
func (r Routes) Classify(path, method string) ratelimit.RouteClass {
	switch {
	case strings.HasPrefix(path, "/v0/auth"):
		return ratelimit.ClassAuth
	case strings.HasPrefix(path, "/v0/payment"), strings.HasPrefix(path, "/v0/billing"):
		return ratelimit.ClassPayment
	case strings.HasPrefix(path, "/v0/integrations"):
		return ratelimit.ClassUtility
	case strings.HasPrefix(path, "/v0/public"):
		return ratelimit.ClassPublic
	}
	if isStateChanging(method) {
		return ratelimit.ClassWrite
	}
	return ratelimit.ClassRead
}

// isStateChanging reports whether the method creates, updates, or deletes.
func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
