// Package challenge classifies check-in API responses. The WAF in front of
// the providers answers blocked requests with HTML verification pages on the
// API endpoints, so classification is a layered set of content heuristics,
// not a strict protocol.
package challenge

import (
	"strings"
)

// Verdict is the outcome of classifying a user-info response.
type Verdict string

const (
	// VerdictSuccess indicates a well-formed JSON success payload.
	VerdictSuccess Verdict = "success"
	// VerdictWAFBlocked indicates a WAF verification page in place of JSON.
	VerdictWAFBlocked Verdict = "waf_blocked"
	// VerdictMalformed indicates a non-JSON response with no WAF signature.
	VerdictMalformed Verdict = "malformed"
	// VerdictHTTPError indicates a non-200 status.
	VerdictHTTPError Verdict = "http_error"
	// VerdictTransport indicates a transport-level fault.
	VerdictTransport Verdict = "transport"
)

// Retryable reports whether a verdict signals a condition likely to clear on
// a fresh attempt. Malformed responses are retried like WAF blocks because
// the root cause is usually the same challenge in disguise.
func (v Verdict) Retryable() bool {
	switch v {
	case VerdictWAFBlocked, VerdictMalformed, VerdictTransport:
		return true
	default:
		return false
	}
}

// Signature is a named predicate over a response. Signatures are evaluated in
// order; the first match wins. These are heuristics, not guarantees: new WAF
// page shapes get a new entry rather than a reordering.
type Signature struct {
	Name  string
	Match func(contentType, body string) bool
}

// WAFSignatures are the known shapes of WAF verification pages, checked only
// after JSON parsing has failed.
var WAFSignatures = []Signature{
	{Name: "html-content-type", Match: func(contentType, _ string) bool {
		return strings.Contains(strings.ToLower(contentType), "html")
	}},
	{Name: "html-prefix", Match: func(_, body string) bool {
		return strings.Contains(prefix(body, 100), "<html")
	}},
	{Name: "verification-page", Match: func(_, body string) bool {
		return strings.Contains(prefix(body, 200), "verification")
	}},
	{Name: "cloudflare", Match: func(_, body string) bool {
		return strings.Contains(prefix(body, 200), "cloudflare")
	}},
	{Name: "acw-challenge", Match: func(_, body string) bool {
		return strings.Contains(prefix(body, 200), "acw_tc")
	}},
	{Name: "blocked-page", Match: func(_, body string) bool {
		return strings.Contains(body, "sorry, you have been blocked")
	}},
	{Name: "access-denied", Match: func(_, body string) bool {
		return strings.Contains(body, "access denied")
	}},
}

// DetectWAF reports whether the response looks like a WAF verification page,
// and which signature matched. The body is lower-cased before matching.
func DetectWAF(contentType, body string) (string, bool) {
	lowered := strings.ToLower(body)
	for _, sig := range WAFSignatures {
		if sig.Match(contentType, lowered) {
			return sig.Name, true
		}
	}
	return "", false
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
