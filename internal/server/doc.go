// Package server provides the HTTP surfaces of the jam service.
//
// Two listeners are involved:
//
//   - APIServer serves the user-facing endpoints: the Gmail connect
//     flow (GET /auth/google/url, GET /auth/google/callback), the
//     on-demand sync trigger (POST /sync/gmail) and Kubernetes health
//     probes (/healthz, /readyz).
//
//   - MetricsServer serves Prometheus metrics on a dedicated port so
//     scrape traffic never shares a listener with user requests.
//
// Sessions are opaque bearer tokens stored on the user row. OAuth
// consent states are single use and expire after ten minutes.
package server
