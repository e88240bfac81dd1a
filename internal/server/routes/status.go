package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/static-cache/internal/cache"
	"github.com/any-hub/static-cache/internal/metrics"
	"github.com/any-hub/static-cache/internal/version"
)

// RegisterStatusRoutes 暴露 /-/status 与 /-/metrics 诊断接口，供运维确认缓存目录与写入情况。
func RegisterStatusRoutes(app *fiber.App, cacher *cache.Cacher, upstream string) {
	if app == nil || cacher == nil {
		return
	}

	app.Get("/-/status", func(c fiber.Ctx) error {
		return c.JSON(encodeStatus(cacher, upstream))
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

type statusPayload struct {
	Version       string  `json:"version"`
	Root          string  `json:"root"`
	CleanOnStart  bool    `json:"clean_on_start"`
	Upstream      string  `json:"upstream"`
	PendingWrites int64   `json:"pending_writes"`
	Writes        float64 `json:"writes_ok"`
	WriteFailures float64 `json:"writes_failed"`
}

func encodeStatus(cacher *cache.Cacher, upstream string) statusPayload {
	opts := cacher.Options()
	return statusPayload{
		Version:       version.Full(),
		Root:          opts.Root,
		CleanOnStart:  opts.Clean,
		Upstream:      upstream,
		PendingWrites: cacher.Pending(),
		Writes:        metrics.WriteCount(true),
		WriteFailures: metrics.WriteCount(false),
	}
}
