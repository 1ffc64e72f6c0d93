package shield

import (
	"net/http"
	"strings"
)

// MaxFormBody returns middleware that limits the request body size for
// form-encoded POST requests. Other content types are passed through.
func MaxFormBody(maxBytes int64) func(http.Handler) http.Handler {
	return limitByContentType(maxBytes, "application/x-www-form-urlencoded")
}

// MaxUploadBody returns middleware that limits the request body size for
// multipart uploads and JSON requests. The cap applies to the whole body,
// boundaries and metadata parts included.
func MaxUploadBody(maxBytes int64) func(http.Handler) http.Handler {
	return limitByContentType(maxBytes, "multipart/form-data", "application/json", "application/x-www-form-urlencoded")
}

func limitByContentType(maxBytes int64, types ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ct := r.Header.Get("Content-Type")
			for _, t := range types {
				if strings.HasPrefix(ct, t) {
					r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
