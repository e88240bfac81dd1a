package cache

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/static-cache/internal/logging"
	"github.com/any-hub/static-cache/internal/metrics"
)

// Request 是 Cacher 判定所需的最小请求描述。
type Request struct {
	Method string
	URL    string
}

// SendFunc 代表响应正文的最终发送动作。
type SendFunc func(body []byte) error

// NextFunc 是管道中的下一阶段，接收本阶段决定使用的 SendFunc。
type NextFunc func(send SendFunc) error

// Cacher 拦截 GET 响应的发送动作并把正文写成 Root 下的静态文件。
// 写入在后台 goroutine 中执行，失败只记录日志，不影响原始响应。
type Cacher struct {
	opts   Options
	store  Store
	logger *logrus.Entry

	// gate 保证 Clean 与写入互斥：写入持读锁，Clean 持写锁。
	gate    sync.RWMutex
	wg      sync.WaitGroup
	pending atomic.Int64
}

// New 校验 Options 后创建 Cacher。opts 为 nil 或缺少 Root 时返回 ErrInvalidOptions；
// Clean 为 true 时在返回前同步完成一次 Root 清理，清理失败仅记录日志。
func New(opts *Options, logger logrus.FieldLogger) (*Cacher, error) {
	normalized, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	c := &Cacher{
		opts:   normalized,
		store:  NewStore(normalized.Fs, normalized.Root),
		logger: logging.Component(logger, "cache"),
	}

	if normalized.Clean {
		if err := c.Clean(); err != nil {
			c.logger.WithError(err).WithField("root", normalized.Root).Warn("cache_clean_failed")
		}
	}

	c.logger.WithFields(logrus.Fields{
		"action": "cache_init",
		"root":   normalized.Root,
		"clean":  normalized.Clean,
	}).Debug("static cache initialized")
	return c, nil
}

// Handle 对非 GET 请求原样调用 next；GET 请求在调用 next 之前把 send 替换为 Wrap 的结果。
func (c *Cacher) Handle(req Request, send SendFunc, next NextFunc) error {
	if req.Method != http.MethodGet {
		c.logger.WithFields(logrus.Fields{"method": req.Method, "url": req.URL}).
			Debug("skipping non-GET request")
		metrics.IncBypass(req.Method)
		return next(send)
	}

	c.logger.WithField("url", req.URL).Debug("received request")
	return next(c.Wrap(req.URL, send))
}

// Wrap 返回新的 SendFunc：先调度一次写入，再用同一份正文调用原始 send。
func (c *Cacher) Wrap(rawURL string, send SendFunc) SendFunc {
	return func(body []byte) error {
		c.logger.WithField("url", rawURL).Debug("response send intercepted")
		c.Cache(rawURL, body)
		return send(body)
	}
}

// Cache 调度一次写入，不等待完成。rawURL 与 body 都会被复制，
// 调用方（例如 fasthttp）可在返回后复用底层缓冲区。
func (c *Cacher) Cache(rawURL string, body []byte) {
	rawURL = strings.Clone(rawURL)
	target := c.Target(rawURL)
	data := append([]byte(nil), body...)

	c.pending.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.pending.Add(-1)
		c.write(rawURL, target, data)
	}()
}

func (c *Cacher) write(rawURL, target string, data []byte) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	fields := logrus.Fields{
		"action": "cache_write",
		"url":    rawURL,
		"target": target,
		"bytes":  len(data),
	}
	if err := c.store.Put(target, data); err != nil {
		metrics.IncWrite(false)
		c.logger.WithError(err).WithFields(fields).Warn("cache_write_failed")
		return
	}
	metrics.IncWrite(true)
	c.logger.WithFields(fields).Debug("static file written")
}

// Clean 删除 Root 及其全部内容并重建空目录。执行期间新的写入会排队等待。
func (c *Cacher) Clean() error {
	c.gate.Lock()
	defer c.gate.Unlock()

	c.logger.WithField("root", c.opts.Root).Debug("removing root directory")
	if err := c.store.Reset(); err != nil {
		metrics.IncClean(false)
		return err
	}
	metrics.IncClean(true)
	c.logger.WithField("root", c.opts.Root).Debug("root directory recreated")
	return nil
}

// Wait 阻塞直到所有已调度的写入结束。
func (c *Cacher) Wait() {
	c.wg.Wait()
}

// Pending 返回尚未完成的写入数量。
func (c *Cacher) Pending() int64 {
	return c.pending.Load()
}

func (c *Cacher) Root() string {
	return c.opts.Root
}

// Options 返回生效配置的副本。
func (c *Cacher) Options() Options {
	return c.opts
}
