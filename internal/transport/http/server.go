package planhttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"caravan/internal/profiles"
	"caravan/internal/report"
	"caravan/internal/route"
	"caravan/internal/service"
	"caravan/internal/store/routelib"
	"caravan/internal/store/runs"

	"github.com/gin-gonic/gin"
)

// Server 提供规划相关的 HTTP API。
type Server struct {
	addr       string
	evaluator  *service.Evaluator
	results    *runs.ResultStore
	library    *routelib.Store
	registry   *profiles.Registry
	quoteScale int32
	router     *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr       string
	Evaluator  *service.Evaluator
	Results    *runs.ResultStore
	Library    *routelib.Store
	Registry   *profiles.Registry
	QuoteScale int32
}

// NewServer 构建 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Evaluator == nil {
		return nil, errors.New("evaluator 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:       cfg.Addr,
		evaluator:  cfg.Evaluator,
		results:    cfg.Results,
		library:    cfg.Library,
		registry:   cfg.Registry,
		quoteScale: cfg.QuoteScale,
		router:     router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/plan")
	api.POST("/preview", s.handlePreview)
	api.POST("/exact", s.handleExact)
	api.POST("/batch", s.handleBatch)
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/decisions", s.handleRunDecisions)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.GET("/runs/:id/chart", s.handleRunChart)
	api.GET("/runs/:id/chart.png", s.handleRunChartPNG)

	lib := s.router.Group("/api/routes")
	lib.POST("", s.handleRouteSave)
	lib.GET("", s.handleRouteList)
	lib.GET("/:name", s.handleRouteGet)
	lib.DELETE("/:name", s.handleRouteDelete)

	s.router.GET("/api/profiles", s.handleProfiles)
}

// handlePreview 接受宽松的 JSON 形态（裸数组、字符串数字、stops 对象），
// 同步返回规划明细，不落库。
func (s *Server) handlePreview(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	values, err := route.CoerceValuesJSON(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := s.evaluator.Preview(values)
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func (s *Server) handleExact(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	values, err := route.CoerceValuesJSON(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.evaluator.Exact(values)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func (s *Server) handleBatch(c *gin.Context) {
	var req struct {
		Routes []service.RunRequest `json:"routes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := s.evaluator.RunBatch(c.Request.Context(), req.Routes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req service.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := s.evaluator.StartRun(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

func (s *Server) handleRunList(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": list})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunDecisions(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	decisions, err := s.results.ListDecisions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

func (s *Server) handleRunSnapshots(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	snaps, err := s.results.ListSnapshots(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *Server) chartInput(c *gin.Context) (runs.Run, []runs.Snapshot, bool) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "结果存储未启用"})
		return runs.Run{}, nil, false
	}
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return runs.Run{}, nil, false
	}
	snaps, err := s.results.ListSnapshots(c.Request.Context(), run.ID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return runs.Run{}, nil, false
	}
	return run, snaps, true
}

func (s *Server) handleRunChart(c *gin.Context) {
	run, snaps, ok := s.chartInput(c)
	if !ok {
		return
	}
	html, err := report.RenderHTML(run, snaps)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (s *Server) handleRunChartPNG(c *gin.Context) {
	run, snaps, ok := s.chartInput(c)
	if !ok {
		return
	}
	img, err := report.RenderPNG(c.Request.Context(), run, snaps)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", img.Bytes)
}

func (s *Server) handleRouteSave(c *gin.Context) {
	if s.library == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "路线库未启用"})
		return
	}
	var req struct {
		Name   string  `json:"name" binding:"required"`
		Symbol string  `json:"symbol"`
		Values []int64 `json:"values" binding:"required"`
		Note   string  `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt := route.FromValues(req.Values)
	rt.Name = req.Name
	rt.Symbol = req.Symbol
	if err := s.library.Save(c.Request.Context(), rt, req.Note); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"route": rt})
}

func (s *Server) handleRouteList(c *gin.Context) {
	if s.library == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "路线库未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.library.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": entries})
}

func (s *Server) handleRouteGet(c *gin.Context) {
	if s.library == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "路线库未启用"})
		return
	}
	rt, err := s.library.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, routelib.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": rt, "stats": rt.Summarize(s.quoteScale)})
}

func (s *Server) handleRouteDelete(c *gin.Context) {
	if s.library == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "路线库未启用"})
		return
	}
	if err := s.library.Delete(c.Request.Context(), c.Param("name")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, routelib.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
}

func (s *Server) handleProfiles(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "路线档案未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": s.registry.Snapshot()})
}

// Handler 暴露底层路由，便于测试。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动 HTTP 服务并在 ctx 取消时优雅退出。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
