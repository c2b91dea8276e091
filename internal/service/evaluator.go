package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"caravan/internal/logger"
	"caravan/internal/planner"
	"caravan/internal/profiles"
	"caravan/internal/route"
	"caravan/internal/store/routelib"
	"caravan/internal/store/runs"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RouteSource 从行情构造路线（Binance 等）。
type RouteSource interface {
	BuildRoute(ctx context.Context, symbol, interval string, limit int) (route.Route, error)
}

type EvaluatorConfig struct {
	Results       *runs.ResultStore
	Library       *routelib.Store
	Registry      *profiles.Registry
	Source        RouteSource
	QuoteScale    int
	MaxExactStops int
	MaxBatch      int
	MaxConcurrent int
}

// Evaluator 负责把一条路线推演成规划结果并落库。
type Evaluator struct {
	results       *runs.ResultStore
	library       *routelib.Store
	registry      *profiles.Registry
	source        RouteSource
	quoteScale    int
	maxExactStops int
	maxBatch      int

	sem     chan struct{}
	baseCtx context.Context

	mu sync.Mutex
}

func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	maxExact := cfg.MaxExactStops
	if maxExact <= 0 || maxExact > planner.MaxExactStops {
		maxExact = planner.MaxExactStops
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 32
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Evaluator{
		results:       cfg.Results,
		library:       cfg.Library,
		registry:      cfg.Registry,
		source:        cfg.Source,
		quoteScale:    cfg.QuoteScale,
		maxExactStops: maxExact,
		maxBatch:      maxBatch,
		sem:           make(chan struct{}, maxConcurrent),
		baseCtx:       context.Background(),
	}, nil
}

func (e *Evaluator) SetContext(ctx context.Context) {
	if ctx != nil {
		e.baseCtx = ctx
	}
}

func (e *Evaluator) ctx() context.Context {
	if e.baseCtx != nil {
		return e.baseCtx
	}
	return context.Background()
}

// Preview 同步规划，不落库。
func (e *Evaluator) Preview(values []int64) planner.Result {
	return planner.PlanDetailed(values)
}

// ExactResult 同时给出两个穷举变体的结果。
type ExactResult struct {
	Count        int `json:"count"`
	OrderedCount int `json:"ordered_count"`
}

// Exact 运行穷举参考解，受配置的停靠点上限约束。
func (e *Evaluator) Exact(values []int64) (ExactResult, error) {
	if len(values) > e.maxExactStops {
		return ExactResult{}, fmt.Errorf("穷举接口最多支持 %d 个停靠点，收到 %d 个", e.maxExactStops, len(values))
	}
	free, err := planner.PlanExact(values)
	if err != nil {
		return ExactResult{}, err
	}
	ordered, err := planner.PlanExactOrdered(values)
	if err != nil {
		return ExactResult{}, err
	}
	return ExactResult{Count: free, OrderedCount: ordered}, nil
}

// RunRequest 为 HTTP 提交使用。
type RunRequest struct {
	Source    string  `json:"source"`
	Values    []int64 `json:"values"`
	RouteName string  `json:"route_name"`
	Profile   string  `json:"profile"`
	Symbol    string  `json:"symbol"`
	Interval  string  `json:"interval"`
	Limit     int     `json:"limit"`
}

func (r RunRequest) resolveSource() (string, error) {
	src := strings.TrimSpace(strings.ToLower(r.Source))
	if src == "" {
		switch {
		case len(r.Values) > 0:
			src = runs.SourceInline
		case r.RouteName != "":
			src = runs.SourceLibrary
		case r.Profile != "":
			src = runs.SourceProfile
		case r.Symbol != "":
			src = runs.SourceMarket
		default:
			return "", fmt.Errorf("请求未指定路线来源")
		}
	}
	switch src {
	case runs.SourceInline:
		if len(r.Values) == 0 {
			return "", fmt.Errorf("inline 来源需要 values")
		}
	case runs.SourceLibrary:
		if strings.TrimSpace(r.RouteName) == "" {
			return "", fmt.Errorf("library 来源需要 route_name")
		}
	case runs.SourceProfile:
		if strings.TrimSpace(r.Profile) == "" {
			return "", fmt.Errorf("profile 来源需要 profile")
		}
	case runs.SourceMarket:
		if strings.TrimSpace(r.Symbol) == "" {
			return "", fmt.Errorf("market 来源需要 symbol")
		}
	default:
		return "", fmt.Errorf("未知路线来源: %s", src)
	}
	return src, nil
}

// StartRun 创建规划任务并立即返回，推演在后台进行。
func (e *Evaluator) StartRun(req RunRequest) (runs.Run, error) {
	src, err := req.resolveSource()
	if err != nil {
		return runs.Run{}, err
	}
	run := runs.Run{
		ID:        uuid.NewString(),
		RouteName: strings.TrimSpace(firstNonEmpty(req.RouteName, req.Profile)),
		Symbol:    strings.TrimSpace(req.Symbol),
		Source:    src,
		Status:    runs.RunStatusPending,
		Config: runs.RunConfig{
			Source:     src,
			RouteName:  strings.TrimSpace(firstNonEmpty(req.RouteName, req.Profile)),
			Symbol:     strings.TrimSpace(req.Symbol),
			Interval:   strings.TrimSpace(req.Interval),
			Limit:      req.Limit,
			QuoteScale: e.quoteScale,
		},
	}
	if err := e.results.InsertRun(e.ctx(), run); err != nil {
		return runs.Run{}, fmt.Errorf("写入 run 失败: %w", err)
	}
	go e.evaluate(run, req)
	return run, nil
}

func (e *Evaluator) evaluate(run runs.Run, req RunRequest) {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	ctx := e.ctx()
	if err := e.results.UpdateRunStatus(ctx, run.ID, runs.RunStatusRunning, ""); err != nil {
		logger.Errorf("更新 run 状态失败 id=%s: %v", run.ID, err)
		return
	}
	rt, err := e.resolveRoute(ctx, req)
	if err != nil {
		e.failRun(ctx, run.ID, err)
		return
	}
	values := rt.Values()
	steps := planner.Trace(values)

	stats := buildStats(values, steps)
	decisions := make([]runs.Decision, 0, len(steps))
	snapshots := make([]runs.Snapshot, 0, stats.Selected)
	selected := make([]int, 0, stats.Selected)
	for i, st := range steps {
		decisions = append(decisions, runs.Decision{
			ApplyOrder: i,
			StopIndex:  st.Index,
			Value:      st.Value,
			Committed:  st.Committed,
			Balance:    st.Balance,
		})
		if st.Committed {
			snapshots = append(snapshots, runs.Snapshot{Step: len(snapshots), Balance: st.Balance})
			selected = append(selected, st.Index)
		}
	}
	sort.Ints(selected)

	if err := e.results.InsertDecisions(ctx, run.ID, decisions); err != nil {
		e.failRun(ctx, run.ID, fmt.Errorf("写入取舍轨迹失败: %w", err))
		return
	}
	if err := e.results.InsertSnapshots(ctx, run.ID, snapshots); err != nil {
		e.failRun(ctx, run.ID, fmt.Errorf("写入余额曲线失败: %w", err))
		return
	}
	if err := e.results.UpdateRunSummary(ctx, run.ID, runs.RunStatusDone, stats, selected, ""); err != nil {
		logger.Errorf("更新 run 结果失败 id=%s: %v", run.ID, err)
		return
	}
	logger.Infof("规划完成 id=%s：%d/%d 个停靠点入选，期末余额 %d", run.ID, stats.Selected, stats.Stops, stats.FinalBalance)
}

func (e *Evaluator) failRun(ctx context.Context, id string, cause error) {
	logger.Warnf("规划失败 id=%s: %v", id, cause)
	if err := e.results.UpdateRunStatus(ctx, id, runs.RunStatusFailed, cause.Error()); err != nil {
		logger.Errorf("标记 run 失败状态出错 id=%s: %v", id, err)
	}
}

func (e *Evaluator) resolveRoute(ctx context.Context, req RunRequest) (route.Route, error) {
	src, err := req.resolveSource()
	if err != nil {
		return route.Route{}, err
	}
	switch src {
	case runs.SourceInline:
		return route.FromValues(req.Values), nil
	case runs.SourceLibrary:
		if e.library == nil {
			return route.Route{}, fmt.Errorf("路线库未启用")
		}
		return e.library.Get(ctx, req.RouteName)
	case runs.SourceProfile:
		if e.registry == nil {
			return route.Route{}, fmt.Errorf("路线档案未启用")
		}
		rt, ok := e.registry.Resolve(req.Profile)
		if !ok {
			return route.Route{}, fmt.Errorf("未知路线档案: %s", req.Profile)
		}
		return rt, nil
	case runs.SourceMarket:
		if e.source == nil {
			return route.Route{}, fmt.Errorf("行情来源未启用")
		}
		return e.source.BuildRoute(ctx, req.Symbol, req.Interval, req.Limit)
	}
	return route.Route{}, fmt.Errorf("未知路线来源: %s", src)
}

// BatchResult 是批量规划中单条路线的结果。
type BatchResult struct {
	Index    int    `json:"index"`
	Name     string `json:"name,omitempty"`
	Stops    int    `json:"stops"`
	Count    int    `json:"count"`
	FinalBal int64  `json:"final_balance"`
	Error    string `json:"error,omitempty"`
}

// RunBatch 并发规划一批路线，同步返回结果，不落库。
func (e *Evaluator) RunBatch(ctx context.Context, reqs []RunRequest) ([]BatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("批量请求为空")
	}
	if len(reqs) > e.maxBatch {
		return nil, fmt.Errorf("批量规划最多 %d 条路线，收到 %d 条", e.maxBatch, len(reqs))
	}
	out := make([]BatchResult, len(reqs))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(cap(e.sem))
	for i, req := range reqs {
		group.Go(func() error {
			res := BatchResult{Index: i, Name: firstNonEmpty(req.RouteName, req.Profile, req.Symbol)}
			rt, err := e.resolveRoute(ctx, req)
			if err != nil {
				res.Error = err.Error()
				out[i] = res
				return nil
			}
			detail := planner.PlanDetailed(rt.Values())
			res.Stops = len(rt.Stops)
			res.Count = detail.Count
			if n := len(detail.Trajectory); n > 0 {
				res.FinalBal = detail.Trajectory[n-1]
			}
			out[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func buildStats(values []int64, steps []planner.Step) runs.RunStats {
	stats := runs.RunStats{Stops: len(values)}
	for _, v := range values {
		stats.TotalValue += v
	}
	for _, st := range steps {
		if !st.Committed {
			stats.Skipped++
			continue
		}
		stats.Selected++
		stats.FinalBalance = st.Balance
		if st.Balance > stats.PeakBalance {
			stats.PeakBalance = st.Balance
		}
	}
	return stats
}

func firstNonEmpty(items ...string) string {
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			return item
		}
	}
	return ""
}
