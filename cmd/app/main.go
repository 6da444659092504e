package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"project-prospector/internal/adapter/gemini"
	"project-prospector/internal/adapter/github"
	"project-prospector/internal/adapter/repository"
	"project-prospector/internal/analyzer"
	"project-prospector/internal/common"
	"project-prospector/internal/config"
	"project-prospector/internal/port"
	"project-prospector/internal/scoring"
	"project-prospector/internal/server"
	"project-prospector/internal/service"
)

func main() {
	// 1. 定义命令行参数
	mode := flag.String("mode", "serve", "실행 모드: serve (HTTP 서버) / crawl (단일 크롤링) / scheduled (주기 실행)")
	interval := flag.Int("interval", 0, "scheduled 모드의 실행 간격 (분)")
	flag.Parse()

	// 2. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 설정 로드 실패: %v", err)
	}

	logger := common.NewLogger(cfg.LogFile)

	// 3. 组装依赖
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("❌ 초기화 실패: %v", err)
	}
	defer deps.close()

	// 4. 根据模式分流
	switch *mode {
	case "serve":
		runServer(ctx, cancel, cfg, deps, logger)
	case "crawl":
		if err := deps.crawl.ProcessNewProjects(ctx); err != nil {
			logger.ErrorWith("크롤링 실패", err)
			os.Exit(1)
		}
	case "scheduled":
		if *interval <= 0 {
			fmt.Println("❌ scheduled 모드에는 -interval 값이 필요합니다")
			os.Exit(1)
		}
		runScheduled(ctx, deps, *interval, logger)
	default:
		fmt.Println("❌ 알 수 없는 모드입니다. -mode=serve|crawl|scheduled 를 사용하세요")
		os.Exit(1)
	}
}

// dependencies 一次组装好的全部服务
type dependencies struct {
	crawl   *service.CrawlService
	desc    *service.DescriptionUpdater
	summary *service.SummaryUpdater
	gemini  *gemini.Service
	store   *repository.PreferRemoteStore
}

func (d *dependencies) close() {
	d.gemini.Close()
}

func buildDependencies(ctx context.Context, cfg *config.Config, logger *common.Logger) (*dependencies, error) {
	// GitHub 检索
	ghClient := github.NewClient(cfg.GitHubToken, logger)

	// 存储：Firebase 远端优先，Postgres 本地镜像兜底
	var local port.ProjectStore
	if pg, err := repository.NewPostgresStore(cfg.PostgresDSN, logger); err != nil {
		logger.Warn("로컬 DB 연결 실패, 원격 저장소만 사용합니다: %v", err)
	} else {
		local = pg
	}
	remote := repository.NewFirebaseStore(cfg.FirebaseDatabaseURL, cfg.FirebaseAuthToken, logger)
	store := repository.NewPreferRemoteStore(remote, local, logger)
	store.CheckConnection(ctx)
	store.StartMonitor(ctx, time.Minute)

	// 分析：AI 优先，简单分析兜底
	simple := analyzer.NewSimpleAnalyzer(logger)
	ai, err := gemini.NewService(ctx, cfg.GeminiKeys(), simple, logger)
	if err != nil {
		return nil, err
	}

	engine := scoring.NewEngine(logger)
	crawl := service.NewCrawlService(ghClient, engine, ai, simple, ai, store, logger)
	desc := service.NewDescriptionUpdater(store, ai, logger)
	summary := service.NewSummaryUpdater(store, ghClient, ai, logger)

	return &dependencies{crawl: crawl, desc: desc, summary: summary, gemini: ai, store: store}, nil
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, deps *dependencies, logger *common.Logger) {
	// 生产环境下自动启动描述更新任务
	if cfg.AutoDescriptionUpdate && cfg.IsProduction() {
		if err := deps.desc.Start(); err != nil {
			logger.ErrorWith("설명 업데이터 자동 시작 실패", err)
		}
	}
	defer deps.desc.Stop()

	srv := server.New(cfg, deps.crawl, deps.desc, deps.summary,
		deps.gemini, deps.store, deps.gemini.KeyPool(), logger)

	// 信号处理，优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 종료 신호 수신, 서버를 정리합니다...")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.ErrorWith("서버 종료", err)
		os.Exit(1)
	}
}

// runScheduled 定时执行爬取周期
func runScheduled(ctx context.Context, deps *dependencies, interval int, logger *common.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(interval) * time.Minute)
	defer ticker.Stop()

	fmt.Printf("⏰ 주기 실행 모드: %d분 간격으로 크롤링합니다\n", interval)
	fmt.Println("Ctrl+C 로 중지할 수 있습니다")

	// 立即执行一次
	runCycle(ctx, deps, logger)

	for {
		select {
		case <-ticker.C:
			runCycle(ctx, deps, logger)
		case <-sigChan:
			fmt.Println("\n👋 중지 신호 수신, 종료합니다...")
			return
		case <-ctx.Done():
			return
		}
	}
}

func runCycle(ctx context.Context, deps *dependencies, logger *common.Logger) {
	// 单个周期限时 10 分钟
	cycleCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := deps.crawl.ProcessNewProjects(cycleCtx); err != nil {
		logger.ErrorWith("크롤링 주기 실패", err)
	}
}
