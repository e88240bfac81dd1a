package server

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/static-cache/internal/cache"
)

const contextKeySend = "_staticcache_send"

// CacheMiddleware hands every request to the cacher. The send it selects (the
// wrapped one for GET) is stored in Locals; handlers publish through Send.
func CacheMiddleware(cacher *cache.Cacher) fiber.Handler {
	return func(c fiber.Ctx) error {
		if isDiagnosticsPath(c.Path()) {
			return c.Next()
		}

		// OriginalURL 指向 fasthttp 的请求缓冲区，请求结束后会被复用。
		req := cache.Request{Method: c.Method(), URL: strings.Clone(c.OriginalURL())}
		send := func(body []byte) error {
			return c.Send(body)
		}
		return cacher.Handle(req, send, func(selected cache.SendFunc) error {
			c.Locals(contextKeySend, selected)
			return c.Next()
		})
	}
}

// Send writes body as the response, going through the cache when the request
// passed CacheMiddleware. Without the middleware it falls back to c.Send.
func Send(c fiber.Ctx, body []byte) error {
	if send, ok := c.Locals(contextKeySend).(cache.SendFunc); ok && send != nil {
		return send(body)
	}
	return c.Send(body)
}
