package app

import (
	"context"
	"fmt"

	cvcfg "caravan/internal/config"
	"caravan/internal/logger"
	"caravan/internal/service"
	"caravan/internal/store/runs"
	planhttp "caravan/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg       *cvcfg.Config
	results   *runs.ResultStore
	evaluator *service.Evaluator
	server    *planhttp.Server
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *cvcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务并阻塞至 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}

	logger.Infof("✓ caravan 启动（环境=%s，监听=%s）", a.cfg.App.Env, a.cfg.App.HTTPAddr)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		if a.results != nil {
			if err := a.results.Close(); err != nil {
				logger.Warnf("关闭结果存储失败: %v", err)
			}
		}
		return nil
	})

	return group.Wait()
}

// Evaluator exposes the underlying evaluator instance (for testing harnesses).
func (a *App) Evaluator() *service.Evaluator {
	if a == nil {
		return nil
	}
	return a.evaluator
}
