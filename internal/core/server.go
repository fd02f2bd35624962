package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// ControlOptions 控制接口参数
type ControlOptions struct {
	// RunConfig 根据请求中的搜索词生成运行配置
	RunConfig func(query models.QueryTerms) models.RunConfig

	// DefaultQuery 请求未指定搜索词时使用
	DefaultQuery models.QueryTerms

	// Token 不为空时要求 Authorization: Bearer <token>
	Token string

	// OnResult 通过接口启动的运行结束后调用
	OnResult func(report *models.RunReport, err error)
}

// ControlServer 运行中的暂停/恢复/停止和记录查询接口
type ControlServer struct {
	engine *Engine
	opts   ControlOptions
	router *gin.Engine

	// runCtx 通过接口启动的运行使用的ctx,与单个请求无关
	runCtx context.Context
}

// runRequest POST /api/runs 请求体
type runRequest struct {
	Category string `json:"category"`
	Region   string `json:"region"`
	Country  string `json:"country"`
}

// errorResponse 错误响应
type errorResponse struct {
	Error string `json:"error"`
}

// NewControlServer 创建控制接口
func NewControlServer(engine *Engine, opts ControlOptions) *ControlServer {
	if opts.RunConfig == nil {
		opts.RunConfig = func(q models.QueryTerms) models.RunConfig {
			cfg := models.DefaultRunConfig()
			cfg.Query = q
			return cfg
		}
	}

	gin.SetMode(gin.ReleaseMode)

	s := &ControlServer{
		engine: engine,
		opts:   opts,
		runCtx: context.Background(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	// 健康检查和指标不需要认证
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(engine.Metrics().Handler()))

	api := r.Group("/api")
	api.Use(bearerAuth(opts.Token))
	api.POST("/runs", s.startRun)
	api.POST("/pause", s.pause)
	api.POST("/resume", s.resume)
	api.POST("/stop", s.stop)
	api.GET("/progress", s.progress)
	api.GET("/records", s.records)

	s.router = r
	return s
}

// Handler 返回HTTP处理器
func (s *ControlServer) Handler() http.Handler {
	return s.router
}

// Serve 监听 addr 直到ctx结束,结束时请求当前运行停止
func (s *ControlServer) Serve(ctx context.Context, addr string) error {
	s.runCtx = ctx

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("🌐 控制接口已启动: http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if s.engine.Active() {
		s.engine.RequestStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	utils.Info("控制接口已关闭")
	return nil
}

func (s *ControlServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"active": s.engine.Active(),
	})
}

// startRun POST /api/runs
func (s *ControlServer) startRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "请求体格式错误: " + err.Error()})
			return
		}
	}

	query := models.QueryTerms{
		Category: strings.TrimSpace(req.Category),
		Region:   strings.TrimSpace(req.Region),
		Country:  strings.TrimSpace(req.Country),
	}
	if query.Empty() {
		query = s.opts.DefaultQuery
	}

	done, err := s.engine.StartRunAsync(s.runCtx, s.opts.RunConfig(query))
	switch {
	case errors.Is(err, ErrRunActive):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	go func() {
		res := <-done
		if res.Err != nil {
			utils.Errorf("接口启动的运行失败: %v", res.Err)
		}
		if s.opts.OnResult != nil {
			s.opts.OnResult(res.Report, res.Err)
		}
	}()

	c.JSON(http.StatusAccepted, s.engine.View())
}

func (s *ControlServer) pause(c *gin.Context) {
	s.engine.SetPaused(true)
	c.JSON(http.StatusOK, s.engine.View())
}

func (s *ControlServer) resume(c *gin.Context) {
	s.engine.SetPaused(false)
	c.JSON(http.StatusOK, s.engine.View())
}

func (s *ControlServer) stop(c *gin.Context) {
	if !s.engine.Active() {
		c.JSON(http.StatusConflict, errorResponse{Error: "没有运行中的任务"})
		return
	}
	s.engine.RequestStop()
	c.JSON(http.StatusOK, s.engine.View())
}

func (s *ControlServer) progress(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.View())
}

// records GET /api/records, 运行中也返回当前已去重的记录
func (s *ControlServer) records(c *gin.Context) {
	records := s.engine.CurrentRecords()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"records": records,
	})
}

// bearerAuth token为空时不校验
func bearerAuth(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "未授权"})
			return
		}
		c.Next()
	}
}

// requestLogger 以debug级别记录请求
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("控制接口请求")
	}
}
