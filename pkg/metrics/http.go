package metrics

import (
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// WrapHTTPHandler instruments an HTTP handler with a New Relic transaction and
// injects the application into the request context for custom metrics and
// events. A nil app returns the handler unchanged.
func WrapHTTPHandler(app *newrelic.Application, pattern string, handler http.HandlerFunc) http.HandlerFunc {
	if app == nil {
		return handler
	}

	_, wrapped := newrelic.WrapHandleFunc(app, pattern, func(w http.ResponseWriter, r *http.Request) {
		handler(w, r.WithContext(NewContext(r.Context(), app)))
	})
	return wrapped
}
