// Package httpmw holds the middleware in front of the Open Graph page routes.
//
// httpserver.NewHandler composes it, outermost first: security headers,
// panic recovery, request id, client ip, rate limiting, tracing, content
// version headers, metrics, request logger, then inside the router
// compression, route annotation, access log and the body cap.
//
// Logged fields never include query strings or request bodies.
package httpmw
