package admission

import (
	"net/http"
	"testing"

	"github.com/edgegate/edgegate/internal/ratelimit"
)

func TestClassify(t *testing.T) {
	routes := DefaultRoutes()
	cases := []struct {
		path   string
		method string
		want   ratelimit.RouteClass
	}{
		{"/v0/auth/login", http.MethodPost, ratelimit.ClassAuth},
		{"/v0/auth/refresh", http.MethodPost, ratelimit.ClassAuth},
		{"/v0/payment/charge", http.MethodPost, ratelimit.ClassPayment},
		{"/v0/billing/invoices", http.MethodGet, ratelimit.ClassPayment},
		{"/v0/integrations/sync", http.MethodPost, ratelimit.ClassUtility},
		{"/v0/public/status", http.MethodGet, ratelimit.ClassPublic},
		{"/v0/data", http.MethodGet, ratelimit.ClassRead},
		{"/v0/data", http.MethodPost, ratelimit.ClassWrite},
		{"/v0/data/123", http.MethodDelete, ratelimit.ClassWrite},
		{"/v0/data/123", http.MethodPatch, ratelimit.ClassWrite},
		{"/v0/profile", http.MethodPut, ratelimit.ClassWrite},
	}
	for _, tc := range cases {
		if got := routes.Classify(tc.path, tc.method); got != tc.want {
			t.Fatalf("%s %s: expected %s, got %s", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestPrefixMatchingRespectsBoundaries(t *testing.T) {
	routes := DefaultRoutes()

	if !routes.AI("/v0/ai") || !routes.AI("/v0/ai/complete") {
		t.Fatalf("AI prefix should match itself and children")
	}
	if routes.AI("/v0/aix") {
		t.Fatalf("AI prefix must not match /v0/aix")
	}
	if !routes.Exempt("/healthz") || !routes.Exempt("/v0/webhooks/stripe") {
		t.Fatalf("exempt prefixes should match")
	}
	if routes.Exempt("/healthzz") {
		t.Fatalf("exempt prefix must not match /healthzz")
	}
	if !routes.CSRFExempt("/v0/auth/login") {
		t.Fatalf("login should be csrf exempt")
	}
	if routes.CSRFExempt("/v0/auth/logout") {
		t.Fatalf("logout must not inherit the login csrf exemption")
	}
}

func TestMergeAppendsConfiguredPrefixes(t *testing.T) {
	routes := DefaultRoutes().Merge([]string{"/internal"}, nil, []string{"/v0/ml"})

	if !routes.Exempt("/internal/metrics") {
		t.Fatalf("merged exempt prefix should match")
	}
	if !routes.AI("/v0/ml/embed") {
		t.Fatalf("merged AI prefix should match")
	}
	if !routes.AI("/v0/ai/complete") {
		t.Fatalf("defaults must survive merge")
	}
}
