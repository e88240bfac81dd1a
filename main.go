package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/static-cache/internal/cache"
	"github.com/any-hub/static-cache/internal/config"
	"github.com/any-hub/static-cache/internal/logging"
	"github.com/any-hub/static-cache/internal/metrics"
	"github.com/any-hub/static-cache/internal/proxy"
	"github.com/any-hub/static-cache/internal/server"
	"github.com/any-hub/static-cache/internal/server/routes"
)

// configEnv 可覆盖默认配置路径，优先级低于 --config。
const configEnv = "STATIC_CACHE_CONFIG"

const shutdownTimeout = 10 * time.Second

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试。
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:   "static-cache",
		Short: "Snapshot dynamic GET responses into static files",
		Long: `static-cache proxies an upstream site and writes every successful GET
response body under Root, mirroring the URL path, so later requests are
answered straight from disk.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(resolveConfigPath(configFlag))
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 "+configEnv+" 覆盖）")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the caching proxy",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(resolveConfigPath(configFlag))
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Validate the configuration and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return checkConfig(resolveConfigPath(configFlag))
			},
		},
		&cobra.Command{
			Use:   "clean",
			Short: "Remove and recreate the cache root",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return cleanRoot(resolveConfigPath(configFlag))
			},
		},
		newTargetCmd(&configFlag),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				printVersion(cmd.OutOrStdout())
			},
		},
	)

	return rootCmd
}

func newTargetCmd(configFlag *string) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "target <url>...",
		Short: "Print the file each URL would be written to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root == "" {
				cfg, err := config.Load(resolveConfigPath(*configFlag))
				if err != nil {
					return fmt.Errorf("加载配置失败: %w", err)
				}
				root = cfg.Cache.Root
			}
			cacher, err := cache.New(&cache.Options{Root: root}, logging.Discard())
			if err != nil {
				return err
			}
			for _, rawURL := range args {
				fmt.Fprintln(cmd.OutOrStdout(), cacher.Target(rawURL))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "缓存根目录（指定后不再读取配置文件）")
	return cmd
}

// resolveConfigPath 结合 --config 与环境变量计算最终的配置路径。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return config.DefaultPath
}

func loadWithLogger(configPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func checkConfig(configPath string) error {
	cfg, logger, err := loadWithLogger(configPath)
	if err != nil {
		return err
	}
	fields := logging.BaseFields("check_config", configPath)
	fields["root"] = cfg.Cache.Root
	fields["upstream"] = cfg.Global.Upstream
	fields["result"] = "ok"
	logger.WithFields(fields).Info("配置校验通过")
	return nil
}

func cleanRoot(configPath string) error {
	cfg, logger, err := loadWithLogger(configPath)
	if err != nil {
		return err
	}
	cacher, err := cache.New(&cache.Options{Root: cfg.Cache.Root}, logger)
	if err != nil {
		return err
	}
	if err := cacher.Clean(); err != nil {
		return fmt.Errorf("清理缓存目录失败: %w", err)
	}
	fields := logging.BaseFields("clean", configPath)
	fields["root"] = cfg.Cache.Root
	logger.WithFields(fields).Info("缓存目录已重建")
	return nil
}

// serve 遵循“配置 → 日志 → Cacher（按需清理）→ Fiber server”顺序启动，
// Clean 在 cache.New 内同步完成，保证第一条写入发生在清理之后。
func serve(configPath string) error {
	cfg, logger, err := loadWithLogger(configPath)
	if err != nil {
		return err
	}
	metrics.Init()

	cacher, err := cache.New(&cache.Options{Root: cfg.Cache.Root, Clean: cfg.Cache.Clean}, logger)
	if err != nil {
		return fmt.Errorf("初始化缓存失败: %w", err)
	}
	if err := os.MkdirAll(cfg.Cache.Root, 0o755); err != nil {
		return fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	client := server.NewUpstreamClient(cfg.Global.UpstreamTimeout.DurationValue())
	handler := proxy.NewHandler(client, logger, cfg.UpstreamURL())

	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Cacher:      cacher,
		Proxy:       handler,
		ListenPort:  cfg.Global.ListenPort,
		ServeStatic: cfg.Cache.ServeStatic,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, cacher, cfg.Global.Upstream)

	fields := logging.BaseFields("startup", configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["root"] = cfg.Cache.Root
	fields["clean"] = cfg.Cache.Clean
	fields["serve_static"] = cfg.Cache.ServeStatic
	fields["upstream"] = cfg.Global.Upstream
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   cfg.Global.ListenPort,
		}).Info("Fiber 服务启动")
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.Global.ListenPort), fiber.ListenConfig{
			DisableStartupMessage: true,
		})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务启动失败: %w", err)
		}
	case <-ctx.Done():
		logger.WithField("action", "shutdown").Info("收到退出信号，开始关闭")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.WithError(err).Warn("shutdown_failed")
		}
	}

	cacher.Wait()
	logger.WithField("action", "shutdown").Info("待写入文件已全部落盘")
	return nil
}
