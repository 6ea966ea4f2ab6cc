//go:build !embed

// Package frontend serves the bundled status page. Building with
// -tags embed compiles the static assets into the binary; without the
// tag Handler returns nil and the daemon serves the API only (use
// -dev to serve the page from the source tree instead).
package frontend

import "net/http"

func Handler() http.Handler {
	return nil
}
