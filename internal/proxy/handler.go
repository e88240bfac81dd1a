package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/static-cache/internal/logging"
	"github.com/any-hub/static-cache/internal/server"
	"github.com/any-hub/static-cache/internal/version"
)

// Handler 负责把静态层未命中的请求转发给上游，并通过 server.Send 发布正文，
// 使 GET 200 响应经过缓存中间件落盘；其他状态码直接返回，不写静态文件。
type Handler struct {
	client   *http.Client
	logger   *logrus.Logger
	upstream *url.URL
}

// NewHandler constructs a proxy handler with shared HTTP client/logger.
func NewHandler(client *http.Client, logger *logrus.Logger, upstream *url.URL) *Handler {
	return &Handler{
		client:   client,
		logger:   logger,
		upstream: upstream,
	}
}

// Handle 执行回源与回写，任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	target := h.resolveUpstreamURL(c)

	req, err := h.buildUpstreamRequest(c, target)
	if err != nil {
		h.logResult(c, target, requestID, 0, false, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logResult(c, target, requestID, 0, false, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logResult(c, target, requestID, resp.StatusCode, false, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_read_failed")
	}

	copyResponseHeaders(c, resp.Header)
	c.Set("X-Static-Cache-Upstream", target.String())
	c.Status(resp.StatusCode)

	publish := isPublishable(c.Method(), resp.StatusCode)
	h.logResult(c, target, requestID, resp.StatusCode, publish, started, nil)
	if publish {
		return server.Send(c, body)
	}
	return c.Send(body)
}

func (h *Handler) resolveUpstreamURL(c fiber.Ctx) *url.URL {
	uri := c.Request().URI()
	target := *h.upstream
	target.Path = strings.TrimRight(h.upstream.Path, "/") + string(uri.Path())
	target.RawPath = ""
	target.RawQuery = string(uri.QueryString())
	return &target
}

func (h *Handler) buildUpstreamRequest(c fiber.Ctx, upstream *url.URL) (*http.Request, error) {
	var ctx context.Context = c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), upstream.String(), bytesReader(c.Body()))
	if err != nil {
		return nil, err
	}

	server.CopyHeaders(req.Header, fiberHeadersAsHTTP(c))
	// 静态文件按原始字节落盘，禁止上游压缩。
	req.Header.Del("Accept-Encoding")
	req.Host = upstream.Host
	req.Header.Set("Host", upstream.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	return req, nil
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	c fiber.Ctx,
	upstream *url.URL,
	requestID string,
	status int,
	cacheStore bool,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(c.Method(), c.Path(), requestID, status, cacheStore)
	fields["action"] = "proxy"
	fields["upstream"] = upstream.String()
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		h.logger.WithError(err).WithFields(fields).Warn("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

// isPublishable 仅允许 GET 200 响应进入缓存，错误页与重定向不落盘。
func isPublishable(method string, status int) bool {
	return method == http.MethodGet && status == http.StatusOK
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(append([]byte(nil), b...))
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || strings.EqualFold(key, fiber.HeaderContentLength) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}
