package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"project-prospector/internal/common"
	"project-prospector/internal/config"
	"project-prospector/internal/domain"
	"project-prospector/internal/port"
	"project-prospector/internal/service"
)

// KeyReporter 调试接口用：脱敏展示 key 池状态
type KeyReporter interface {
	MaskedKeys() []string
	Stats() (total, failed, available int)
}

// Server HTTP 入口，聚合爬取服务和两个更新器
type Server struct {
	cfg     *config.Config
	crawl   *service.CrawlService
	desc    *service.DescriptionUpdater
	summary *service.SummaryUpdater
	usage   port.UsageReporter
	status  port.StatusReporter
	keys    KeyReporter
	log     *common.Logger

	httpServer *http.Server

	// 最近一次进度由爬取 goroutine 写入、status 接口读取，需要加锁
	progressMu   sync.Mutex
	lastProgress domain.CrawlProgress
}

// New 创建 HTTP 服务
func New(
	cfg *config.Config,
	crawl *service.CrawlService,
	desc *service.DescriptionUpdater,
	summary *service.SummaryUpdater,
	usage port.UsageReporter,
	status port.StatusReporter,
	keys KeyReporter,
	logger *common.Logger,
) *Server {
	s := &Server{
		cfg:     cfg,
		crawl:   crawl,
		desc:    desc,
		summary: summary,
		usage:   usage,
		status:  status,
		keys:    keys,
		log:     logger,
	}
	crawl.SetProgressCallback(func(p domain.CrawlProgress) {
		s.progressMu.Lock()
		s.lastProgress = p
		s.progressMu.Unlock()
	})
	return s
}

// progress 最近一次进度快照
func (s *Server) progress() domain.CrawlProgress {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	return s.lastProgress
}

// Start 阻塞运行直到 ctx 取消，随后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Success("🚀 HTTP 서버 시작: %s", s.cfg.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/crawl", s.handleCrawl)
		r.Get("/status", s.handleStatus)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Get("/projects/{id}/recommendations", s.handleRecommendations)
		r.Post("/projects/{id}/bookmark", s.handleAddBookmark)
		r.Delete("/projects/{id}/bookmark", s.handleRemoveBookmark)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Get("/description-updater/status", s.handleDescStatus)
			r.Post("/description-updater/start", s.handleDescStart)
			r.Post("/description-updater/stop", s.handleDescStop)
			r.Get("/summary-updater", s.handleSummaryStatus)
			r.Post("/summary-updater", s.handleSummaryAction)
		})

		r.Route("/debug", func(r chi.Router) {
			r.Use(s.adminAuth)
			r.Get("/api-keys-status", s.handleKeysStatus)
			r.Get("/logs", s.handleLogs)
		})
	})

	return r
}

// adminAuth 管理接口鉴权。开放模式下放行所有请求，
// 否则校验 Bearer token
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminOpenAccess {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("Authorization")
		if token != "Bearer "+s.cfg.AdminToken || s.cfg.AdminToken == "" {
			writeError(w, http.StatusUnauthorized, "관리자 인증이 필요합니다")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCrawl 触发一轮爬取，已在跑时返回 409
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if s.crawl.IsRunning() {
		writeError(w, http.StatusConflict, "크롤링이 이미 실행 중입니다")
		return
	}

	go func() {
		if err := s.crawl.ProcessNewProjects(context.Background()); err != nil {
			s.log.ErrorWith("크롤링 실패", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "크롤링이 시작되었습니다",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.usage.UsageStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"crawl": map[string]any{
			"state":     s.crawl.State(),
			"isRunning": s.crawl.IsRunning(),
			"progress":  s.progress(),
		},
		"ai": stats,
		"store": map[string]any{
			"connection": string(s.status.ConnectionStatus()),
		},
	})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := s.crawl.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "프로젝트를 찾을 수 없습니다")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("userId")
	projects, err := s.crawl.RecommendedProjects(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

type bookmarkRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId가 필요합니다")
		return
	}
	if err := s.crawl.AddBookmark(r.Context(), req.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": true})
}

func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId가 필요합니다")
		return
	}
	if err := s.crawl.RemoveBookmark(r.Context(), req.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bookmarked": false})
}

func (s *Server) handleDescStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.desc.Status())
}

func (s *Server) handleDescStart(w http.ResponseWriter, r *http.Request) {
	if err := s.desc.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.desc.Status())
}

func (s *Server) handleDescStop(w http.ResponseWriter, r *http.Request) {
	s.desc.Stop()
	writeJSON(w, http.StatusOK, s.desc.Status())
}

func (s *Server) handleSummaryStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.summary.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": pending})
}

// handleSummaryAction 目前只支持 action=process
func (s *Server) handleSummaryAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action != "process" {
		writeError(w, http.StatusBadRequest, "지원하지 않는 action입니다")
		return
	}
	result, err := s.summary.ProcessNext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleKeysStatus(w http.ResponseWriter, r *http.Request) {
	total, failed, available := s.keys.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":      s.keys.MaskedKeys(),
		"total":     total,
		"failed":    failed,
		"available": available,
		"usage":     s.usage.UsageStats(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.log.Logs())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
