package app

import (
	"context"
	"fmt"
	"time"

	cvcfg "caravan/internal/config"
	"caravan/internal/logger"
	"caravan/internal/market/binance"
	"caravan/internal/profiles"
	"caravan/internal/service"
	"caravan/internal/store/routelib"
	"caravan/internal/store/runs"
	planhttp "caravan/internal/transport/http"
)

// AppBuilder 把配置逐层装配成可运行的 App。各构造函数可注入替换，
// 测试时用来屏蔽外部依赖。
type AppBuilder struct {
	cfg *cvcfg.Config

	resultStoreFn func(string) (*runs.ResultStore, error)
	libraryFn     func(string) (*routelib.Store, error)
	registryFn    func(cvcfg.ProfilesConfig) (*profiles.Registry, error)
	sourceFn      func(cvcfg.MarketConfig) (service.RouteSource, error)
	evaluatorFn   func(service.EvaluatorConfig) (*service.Evaluator, error)
	serverFn      func(planhttp.Config) (*planhttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *cvcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		resultStoreFn: runs.NewResultStore,
		libraryFn:     routelib.New,
		registryFn:    buildRegistry,
		sourceFn:      buildMarketSource,
		evaluatorFn:   service.NewEvaluator,
		serverFn:      planhttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithRouteSource 替换行情来源，测试用。
func WithRouteSource(src service.RouteSource) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(cvcfg.MarketConfig) (service.RouteSource, error) {
			return src, nil
		}
	}
}

func buildRegistry(cfg cvcfg.ProfilesConfig) (*profiles.Registry, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return profiles.NewRegistry(cfg.Path, cfg.Watch)
}

func buildMarketSource(cfg cvcfg.MarketConfig) (service.RouteSource, error) {
	src, err := binance.New(binance.Config{
		RESTBaseURL: cfg.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		QuoteScale:  int32(cfg.QuoteScale),
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	results, err := b.resultStoreFn(cfg.Store.RunsPath)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}
	library, err := b.libraryFn(cfg.Store.RoutesPath)
	if err != nil {
		return nil, fmt.Errorf("初始化路线库失败: %w", err)
	}
	registry, err := b.registryFn(cfg.Profiles)
	if err != nil {
		return nil, fmt.Errorf("加载路线档案失败: %w", err)
	}
	if registry != nil {
		logger.Infof("✓ 路线档案已加载：%v", registry.Names())
	}
	source, err := b.sourceFn(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("初始化行情来源失败: %w", err)
	}

	evaluator, err := b.evaluatorFn(service.EvaluatorConfig{
		Results:       results,
		Library:       library,
		Registry:      registry,
		Source:        source,
		QuoteScale:    cfg.Market.QuoteScale,
		MaxExactStops: cfg.Planner.MaxExactStops,
		MaxBatch:      cfg.Planner.MaxBatch,
		MaxConcurrent: cfg.Planner.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化规划服务失败: %w", err)
	}
	evaluator.SetContext(ctx)

	server, err := b.serverFn(planhttp.Config{
		Addr:       cfg.App.HTTPAddr,
		Evaluator:  evaluator,
		Results:    results,
		Library:    library,
		Registry:   registry,
		QuoteScale: int32(cfg.Market.QuoteScale),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	return &App{
		cfg:       cfg,
		results:   results,
		evaluator: evaluator,
		server:    server,
	}, nil
}
