package middleware

import (
	"bytes"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/static-cache/internal/cache"
	"github.com/any-hub/static-cache/internal/logging"
)

// StaticCache records response bodies while they stream to the client. Once
// the handler returns, a complete 200 body is passed to the send chosen by the
// cacher: a cache write for GET, nothing otherwise. The client already holds
// the bytes by then, so the base send is a no-op.
//
// The response is already committed when Handle returns, so its error can only
// be logged.
func StaticCache(c *cache.Cacher, logger logrus.FieldLogger) Middleware {
	log := logging.Component(logger, "static_cache_http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := cache.Request{Method: r.Method, URL: r.URL.RequestURI()}
			err := c.Handle(req, discardSend, func(send cache.SendFunc) error {
				if r.Method != http.MethodGet {
					next.ServeHTTP(w, r)
					return nil
				}
				rec := &recordingWriter{ResponseWriter: w, code: http.StatusOK}
				next.ServeHTTP(rec, r)
				if rec.code == http.StatusOK {
					return send(rec.body.Bytes())
				}
				return nil
			})
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"method": r.Method,
					"url":    req.URL,
				}).Warn("static_cache_failed")
			}
		})
	}
}

func discardSend([]byte) error { return nil }

// recordingWriter tees the body into a buffer and remembers the status code.
type recordingWriter struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

func (w *recordingWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *recordingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *recordingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
