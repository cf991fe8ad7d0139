package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dataset-analyzer/internal/adapter"
	"dataset-analyzer/internal/config"
	"dataset-analyzer/internal/pipeline"
	"dataset-analyzer/internal/renderer"
)

// 任务状态
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许跨域
	},
}

// AnalysisRequest 分析请求
type AnalysisRequest struct {
	Source   string   `json:"source"` // dir/sqlite/mysql/sqlserver/postgres
	Path     string   `json:"path"`   // 目录或 SQLite 文件
	DSN      string   `json:"dsn"`
	Schema   string   `json:"schema"`
	RowLimit int      `json:"row_limit"`
	Formats  []string `json:"formats"`
	Refine   string   `json:"refine"` // 润色服务，空为沿用服务端配置
}

// AnalysisTask 分析任务
type AnalysisTask struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"` // 0-100
	Message   string          `json:"message"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AnalysisResult 分析结果
type AnalysisResult struct {
	Artifacts []renderer.Artifact `json:"artifacts"`
	Stats     map[string]int      `json:"stats"`
	Skipped   []string            `json:"skipped,omitempty"`
	Refined   bool                `json:"refined"`
}

// server 任务表与路由
type server struct {
	cfg    config.Config
	logger *zap.Logger
	ctx    context.Context // 服务生命周期，关闭时取消进行中的任务

	mu    sync.RWMutex
	tasks map[string]*AnalysisTask
	wg    sync.WaitGroup

	interval time.Duration // websocket 推送间隔
}

func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		ctx:      ctx,
		tasks:    make(map[string]*AnalysisTask),
		interval: 500 * time.Millisecond,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/task/{id}", s.handleTaskStatus)
		r.Get("/ws", s.handleWebSocket)
		r.Post("/test-connection", s.handleTestConnection)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// taskConfig 以服务端配置为底，叠加请求中的来源与选项
func (s *server) taskConfig(req AnalysisRequest) (config.Config, error) {
	cfg := s.cfg
	cfg.Input = config.InputConfig{
		Kind:       req.Source,
		Path:       req.Path,
		DSN:        req.DSN,
		Schema:     req.Schema,
		NullTokens: s.cfg.Input.NullTokens,
		Delimiter:  s.cfg.Input.Delimiter,
		RowLimit:   req.RowLimit,
	}
	if cfg.Input.Kind == "" {
		cfg.Input.Kind = "dir"
	}
	if len(req.Formats) > 0 {
		cfg.Output.Formats = req.Formats
	}
	if req.Refine != "" {
		cfg.Refine.Provider = req.Refine
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Input.Kind == "dir" || cfg.Input.Kind == "sqlite" {
		if cfg.Input.Path == "" {
			return cfg, fmt.Errorf("path is required for source %q", cfg.Input.Kind)
		}
	} else if cfg.Input.DSN == "" {
		return cfg, fmt.Errorf("dsn is required for source %q", cfg.Input.Kind)
	}
	return cfg, nil
}

// handleAnalyze 创建任务并异步执行
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, err := s.taskConfig(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	task := &AnalysisTask{
		ID:        uuid.NewString(),
		Source:    cfg.Input.Kind,
		Status:    StatusPending,
		Message:   "task created, waiting to run",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAnalysis(task, cfg)
	}()

	s.logger.Info("Task created", zap.String("task_id", task.ID), zap.String("source", task.Source))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  StatusPending,
	})
}

// snapshot 读锁下复制任务，避免编码时与更新竞争
func (s *server) snapshot(id string) (AnalysisTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return AnalysisTask{}, false
	}
	return *task, true
}

// handleTaskStatus 查询任务状态
func (s *server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.snapshot(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleWebSocket 持续推送任务状态直到结束
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if _, ok := s.snapshot(taskID); !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		task, ok := s.snapshot(taskID)
		if !ok {
			return
		}
		if err := conn.WriteJSON(task); err != nil {
			return
		}
		if task.Status == StatusCompleted || task.Status == StatusFailed {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, task.Status))
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// runAnalysis 执行分析
func (s *server) runAnalysis(task *AnalysisTask, cfg config.Config) {
	update := func(status string, progress int, message string) {
		s.mu.Lock()
		task.Status = status
		task.Progress = progress
		task.Message = message
		task.UpdatedAt = time.Now()
		s.mu.Unlock()
	}

	logger := s.logger.With(zap.String("task_id", task.ID))
	update(StatusRunning, 0, "starting analysis")

	runner := pipeline.New(cfg, logger)
	runner.OnProgress(func(_ string, percent int, message string) {
		update(StatusRunning, percent, message)
	})
	res, err := runner.Run(s.ctx)
	if err != nil {
		logger.Warn("Task failed", zap.Error(err))
		s.mu.Lock()
		progress := task.Progress
		s.mu.Unlock()
		update(StatusFailed, progress, err.Error())
		return
	}

	result := &AnalysisResult{
		Artifacts: res.Artifacts,
		Stats:     pipeline.Stats(res.Model),
		Refined:   res.Refined,
	}
	for _, sk := range res.Skipped {
		result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", sk.Path, sk.Err))
	}

	s.mu.Lock()
	task.Result = result
	s.mu.Unlock()
	update(StatusCompleted, 100, "analysis completed")
	logger.Info("Task completed", zap.Duration("elapsed", res.Elapsed))
}

// handleTestConnection 测试数据库连接
func (s *server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Source == "" || req.Source == "dir" {
		writeError(w, http.StatusBadRequest, "source must be a database type")
		return
	}

	src := adapter.Source{Kind: req.Source, Path: req.Path, DSN: req.DSN, Schema: req.Schema}
	loader, err := adapter.Open(r.Context(), src, adapter.DefaultOptions(), s.logger)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": fmt.Sprintf("connection failed: %v", err),
		})
		return
	}
	_ = loader.Close()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "connected",
	})
}

// wait 等待进行中的任务结束
func (s *server) wait() { s.wg.Wait() }
