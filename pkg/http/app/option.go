package app

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Middleware wraps the handler served by Run
type Middleware func(next http.Handler) http.Handler

// Option configures Run
type Option func(o *opts)

type opts struct {
	middleware []Middleware
}

// WithMiddleware adds middleware in front of the app's handlers. Middleware
// runs in the order it was added.
func WithMiddleware(middleware Middleware) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}

// RecoverPanics turns a panicking handler into a 500 response and logs the
// stack
func RecoverPanics(next http.Handler) http.Handler {
	log := logrus.StandardLogger().WithField("type", "http/app/recover")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			switch recovered {
			case nil:
				return
			case http.ErrAbortHandler:
				panic(recovered)
			}

			log.WithFields(logrus.Fields{
				"path":  r.URL.Path,
				"panic": recovered,
				"stack": string(debug.Stack()),
			}).Error("recovered from handler panic")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
