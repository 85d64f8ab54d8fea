package preview

import (
	"net/http"
	"strings"
)

// Policy describes the isolation headers a preview document is served with.
type Policy struct {
	// FrameAncestors lists origins allowed to embed previews. Empty means 'self'.
	FrameAncestors []string
}

// ContentSecurityPolicy returns the CSP header value. The sandbox directive
// applies even if the document is opened outside its iframe.
func (p Policy) ContentSecurityPolicy() string {
	ancestors := "'self'"
	if len(p.FrameAncestors) > 0 {
		ancestors = strings.Join(p.FrameAncestors, " ")
	}
	directives := []string{
		"sandbox allow-scripts",
		"default-src 'none'",
		"script-src 'unsafe-inline'",
		"style-src 'unsafe-inline'",
		"img-src data: https:",
		"font-src data: https:",
		"media-src data: https:",
		"connect-src 'none'",
		"form-action 'none'",
		"base-uri 'none'",
		"frame-ancestors " + ancestors,
	}
	return strings.Join(directives, "; ")
}

// Apply sets the isolation headers on h and strips any cookies.
func (p Policy) Apply(h http.Header) {
	h.Del("Set-Cookie")
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Security-Policy", p.ContentSecurityPolicy())
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
	h.Set("Cross-Origin-Resource-Policy", "same-site")
}
