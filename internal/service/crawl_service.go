package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/port"
)

// ErrCrawlInProgress 已有一轮爬取在跑
var ErrCrawlInProgress = common.NewError(common.ErrCodeInvalidInput, "크롤링이 이미 실행 중입니다")

// 一轮爬取的状态机
const (
	StateIdle       = "idle"
	StateSearching  = "searching"
	StateScoring    = "scoring"
	StateFiltering  = "filtering"
	StateProcessing = "processing"
	StateDone       = "done"
	StateError      = "error"
)

const (
	maxProcessPerRun   = 15
	maxRefreshExisting = 5
	minQualifyScore    = 5.0
	relaxedScore       = 4.0
)

// CrawlService 爬取编排：发现 → 评分 → 过滤 → 逐个处理 → 入库。
// 不可恢复的状态都只存在一轮之内，进程重启即归零
type CrawlService struct {
	searcher port.Searcher
	scorer   port.Scorer
	ai       port.Analyzer
	simple   port.Analyzer
	usage    port.UsageReporter
	store    port.ProjectStore
	log      *common.Logger

	mu         sync.Mutex
	running    bool
	state      string
	progressFn func(domain.CrawlProgress)

	// 处理间隔，测试里置零
	aiDelay      time.Duration
	simpleDelay  time.Duration
	refreshDelay time.Duration
}

// NewCrawlService 创建爬取服务
func NewCrawlService(
	searcher port.Searcher,
	scorer port.Scorer,
	ai port.Analyzer,
	simple port.Analyzer,
	usage port.UsageReporter,
	store port.ProjectStore,
	logger *common.Logger,
) *CrawlService {
	return &CrawlService{
		searcher:     searcher,
		scorer:       scorer,
		ai:           ai,
		simple:       simple,
		usage:        usage,
		store:        store,
		log:          logger,
		state:        StateIdle,
		aiDelay:      8 * time.Second,
		simpleDelay:  2 * time.Second,
		refreshDelay: time.Second,
	}
}

// SetProgressCallback 注册进度回调，UI 用它画进度条
func (s *CrawlService) SetProgressCallback(fn func(domain.CrawlProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressFn = fn
}

// State 当前状态 (status 接口用)
func (s *CrawlService) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning 是否有一轮在跑
func (s *CrawlService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *CrawlService) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *CrawlService) updateProgress(step string, percent float64, message string) {
	s.log.Info("[%s] %s (%.0f%%)", step, message, percent)
	s.mu.Lock()
	fn := s.progressFn
	s.mu.Unlock()
	if fn != nil {
		fn(domain.CrawlProgress{Step: step, Percent: percent, Message: message})
	}
}

func (s *CrawlService) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ProcessNewProjects 执行一轮完整爬取。
// 限流是软性条件：提前收尾但不报错；其余异常向上抛
func (s *CrawlService) ProcessNewProjects(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrCrawlInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	err := s.run(ctx)
	if err != nil {
		s.setState(StateError)
		s.updateProgress("오류", 0, "크롤링 중 오류가 발생했습니다")
		return err
	}
	s.setState(StateDone)
	return nil
}

func (s *CrawlService) run(ctx context.Context) error {
	s.log.Info("=== 프로젝트 크롤링 시작 ===")
	s.updateProgress("시작", 0, "GitHub 프로젝트 검색을 시작합니다...")

	// 已有项目的 id 集合，防止重复处理
	existing, err := s.store.GetProjects(ctx)
	if err != nil {
		s.log.ErrorWith("프로젝트 목록 로드 실패", err)
		existing = nil
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, p := range existing {
		existingIDs[p.ID] = true
	}
	s.log.Info("기존 프로젝트 %d개 확인됨", len(existing))

	aiStats := s.usage.UsageStats()
	s.log.Info("AI API 사용량: 분당 %d/%d, 일일 %d/%d",
		aiStats.MinuteRequests, aiStats.MaxMinuteRequests,
		aiStats.DailyRequests, aiStats.MaxDailyRequests)

	// 1. 发现
	s.setState(StateSearching)
	s.updateProgress("검색", 10, "GitHub API에서 미완성 프로젝트를 검색 중...")

	repos, err := s.searcher.FindUnfinishedProjects(ctx)
	if err != nil {
		if common.IsRateLimit(err) {
			// 软停：进度直接标完成，不向 UI 报错
			s.log.Warn("GitHub API 한도 도달. 기존 프로젝트로 진행합니다.")
			s.updateProgress("한도도달", 30, "API 한도 도달로 기존 데이터를 사용합니다")
			return nil
		}
		return err
	}
	s.log.Success("GitHub에서 %d개의 잠재적 프로젝트 발견", len(repos))

	// 2. 过滤掉已知项目
	var newRepos []*domain.Repository
	for _, r := range repos {
		if !existingIDs[strconv.FormatInt(r.ID, 10)] {
			newRepos = append(newRepos, r)
		}
	}
	s.log.Info("새로운 프로젝트 %d개 발견 (전체 %d개 중)", len(newRepos), len(repos))

	if len(newRepos) == 0 {
		if len(repos) == 0 {
			s.updateProgress("완료", 100, "처리할 프로젝트가 없습니다")
			return nil
		}
		// 没有新项目时退而求其次：刷新最多 5 个已有项目的元数据
		refresh := repos
		if len(refresh) > maxRefreshExisting {
			refresh = refresh[:maxRefreshExisting]
		}
		s.updateProgress("업데이트", 50, fmt.Sprintf("%d개 프로젝트 정보를 업데이트합니다", len(refresh)))
		s.refreshExisting(ctx, refresh)
		s.updateProgress("완료", 100, fmt.Sprintf("%d개 프로젝트가 업데이트되었습니다", len(refresh)))
		return nil
	}

	s.updateProgress("검색완료", 30, fmt.Sprintf("%d개의 새로운 프로젝트를 발견했습니다", len(newRepos)))

	// 3. 批量评分
	s.setState(StateScoring)
	s.updateProgress("분석", 40, "프로젝트 점수를 계산 중...")

	scores, err := s.scorer.BatchScore(ctx, newRepos)
	if err != nil {
		if !common.IsRateLimit(err) {
			return err
		}
		// 限流时给剩下的仓库兜底分，整批继续
		s.log.Warn("점수 계산 중 API 한도 도달. 기본 점수를 사용합니다.")
		if scores == nil {
			scores = make(map[string]*domain.ScoreResult, len(newRepos))
		}
		for _, r := range newRepos {
			if _, ok := scores[r.FullName]; !ok {
				scores[r.FullName] = &domain.ScoreResult{
					Score: 6,
					Breakdown: domain.ScoreBreakdown{
						Commits: 1, Popularity: 1, Documentation: 1,
						Structure: 1, Activity: 1, Potential: 1,
					},
					Reasoning: []string{"API 한도로 인한 기본 점수"},
				}
			}
		}
	}

	// 4. 按分数过滤，空了就放宽一档
	s.setState(StateFiltering)
	qualified := filterByScore(newRepos, scores, minQualifyScore)
	s.log.Success("%d개 프로젝트가 점수 기준(5점 이상)을 통과", len(qualified))
	s.updateProgress("필터링", 60, fmt.Sprintf("%d개의 프로젝트가 기준을 통과했습니다", len(qualified)))

	if len(qualified) == 0 {
		s.log.Warn("점수 기준을 통과한 프로젝트가 없습니다. 기준을 낮춰서 재시도합니다.")
		qualified = filterByScore(newRepos, scores, relaxedScore)
		if len(qualified) == 0 {
			s.updateProgress("완료", 100, "처리할 프로젝트가 없습니다")
			return nil
		}
		s.log.Info("낮은 기준(4점 이상)으로 %d개 프로젝트 발견", len(qualified))
	}

	// 5. 逐个处理
	s.setState(StateProcessing)
	return s.processQualified(ctx, qualified, scores, aiStats)
}

func filterByScore(repos []*domain.Repository, scores map[string]*domain.ScoreResult, threshold float64) []*domain.Repository {
	var out []*domain.Repository
	for _, r := range repos {
		if score, ok := scores[r.FullName]; ok && score.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

func (s *CrawlService) processQualified(
	ctx context.Context,
	qualified []*domain.Repository,
	scores map[string]*domain.ScoreResult,
	aiStats port.UsageStats,
) error {
	toProcess := qualified
	if len(toProcess) > maxProcessPerRun {
		toProcess = toProcess[:maxProcessPerRun]
	}
	s.log.Info("%d개 프로젝트를 처리합니다", len(toProcess))

	// 剩余日配额决定前多少个吃 AI 分析
	maxAI := aiStats.MaxDailyRequests - aiStats.DailyRequests
	if maxAI < 0 {
		maxAI = 0
	}
	if maxAI > len(toProcess) {
		maxAI = len(toProcess)
	}
	s.log.Info("AI 분석 가능한 프로젝트: %d개, 나머지는 간단 분석 사용", maxAI)

	processed := 0
	success := 0

	for _, repo := range toProcess {
		s.updateProgress("처리",
			60+float64(processed)/float64(len(toProcess))*35,
			fmt.Sprintf("%s 프로젝트를 처리 중... (%d/%d)", repo.Name, processed+1, len(toProcess)))

		useAI := processed < maxAI
		if err := s.processProject(ctx, repo, scores[repo.FullName], useAI); err != nil {
			s.log.ErrorWith("프로젝트 처리 실패: "+repo.FullName, err)
			if common.IsRateLimit(err) {
				// 限流：放弃本批剩余项目
				s.log.Warn("API 한도 도달로 크롤링을 중단합니다")
				break
			}
			processed++
			continue
		}

		success++
		s.log.Success("프로젝트 처리 완료: %s", repo.FullName)

		if useAI {
			s.sleep(ctx, s.aiDelay)
		} else {
			s.sleep(ctx, s.simpleDelay)
		}
		processed++
	}

	s.log.Success("=== 크롤링 완료: %d/%d개 프로젝트 성공 ===", success, processed)
	s.updateProgress("완료", 100, fmt.Sprintf("총 %d개의 새로운 프로젝트가 추가되었습니다!", success))
	return nil
}

// processProject 单个项目：拉 README → 分析 → 组装 → 入库
func (s *CrawlService) processProject(ctx context.Context, repo *domain.Repository, score *domain.ScoreResult, useAI bool) error {
	s.log.Info("프로젝트 데이터 수집: %s", repo.FullName)

	owner, name := repo.Owner(), repo.RepoName()
	readme := fmt.Sprintf("# %s\n\n%s/%s 프로젝트입니다.", name, owner, name)

	hasReadme := s.searcher.HasReadme(ctx, owner, name)
	s.log.Info("README 존재 여부: %v - %s", hasReadme, repo.FullName)
	if hasReadme {
		text, err := s.searcher.GetReadme(ctx, owner, name)
		if err == nil {
			readme = text
		} else if common.IsRateLimit(err) {
			s.log.Warn("API 한도로 인해 %s의 추가 데이터 수집을 건너뜁니다", repo.FullName)
		} else {
			s.log.ErrorWith("데이터 수집 실패: "+repo.FullName, err)
		}
	}

	var analysis *domain.Analysis
	if useAI && hasReadme {
		s.log.Info("AI 분석 사용: %s", repo.FullName)
		analysis = s.ai.AnalyzeProject(ctx, repo, readme)
	} else {
		s.log.Info("간단 분석 사용: %s", repo.FullName)
		analysis = s.simple.AnalyzeProject(ctx, repo, readme)
	}

	if score == nil {
		score = &domain.ScoreResult{Score: 5, Breakdown: domain.ScoreBreakdown{
			Commits: 1, Popularity: 1, Documentation: 1, Structure: 1, Activity: 1,
		}, Reasoning: []string{"기본 분석만 수행됨"}}
	}

	description := repo.Description
	if description == "" {
		description = "No description available"
	}

	project := &domain.Project{
		ID:             strconv.FormatInt(repo.ID, 10),
		Title:          repo.Name,
		Description:    description,
		Language:       repo.Language,
		Stars:          repo.Stars,
		Forks:          repo.Forks,
		LastUpdate:     repo.UpdatedAt.UTC().Format(time.RFC3339),
		CreatedAt:      repo.CreatedAt.UTC().Format(time.RFC3339),
		GitHubURL:      repo.HTMLURL,
		Owner:          owner,
		Repo:           name,
		Score:          score.Score,
		ScoreBreakdown: score.Breakdown,
		ScoreReasoning: score.Reasoning,
		ReadmeSummary:  analysis.Summary,
		Todos:          analysis.Todos,
		Topics:         repo.Topics,
		Categories:     analysis.Categories,
		License:        repo.License,
		LinesOfCode:    repo.SizeKB / 10,
		Views:          0,
		DefaultBranch:  repo.DefaultBranch,
	}

	if err := s.store.SaveProject(ctx, project); err != nil {
		return err
	}
	s.log.Success("저장 완료: %s", project.Title)
	return nil
}

// refreshExisting 只刷新基础元数据，不做完整重处理
func (s *CrawlService) refreshExisting(ctx context.Context, repos []*domain.Repository) {
	s.log.Info("기존 프로젝트 업데이트 시작")
	updated := 0

	for _, repo := range repos {
		id := strconv.FormatInt(repo.ID, 10)
		project, err := s.store.GetProject(ctx, id)
		if err != nil || project == nil {
			continue
		}

		project.Stars = repo.Stars
		project.Forks = repo.Forks
		project.LastUpdate = repo.UpdatedAt.UTC().Format(time.RFC3339)
		if len(repo.Topics) > 0 {
			project.Topics = repo.Topics
		}

		if err := s.store.SaveProject(ctx, project); err != nil {
			s.log.ErrorWith("프로젝트 업데이트 실패: "+repo.FullName, err)
			continue
		}
		updated++
		s.log.Info("프로젝트 업데이트 완료: %s", repo.FullName)

		s.sleep(ctx, s.refreshDelay)
	}

	s.log.Success("%d개 프로젝트 업데이트 완료", updated)
}

// GetProject 读取项目并顺带记一次浏览
func (s *CrawlService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil || project == nil {
		return project, err
	}
	if err := s.store.IncrementProjectView(ctx, id); err != nil {
		s.log.ErrorWith("조회수 증가 실패", err)
	}
	return project, nil
}

// AddBookmark 收藏并记录交互
func (s *CrawlService) AddBookmark(ctx context.Context, userID, projectID string) error {
	if err := s.store.AddBookmark(ctx, userID, projectID); err != nil {
		return err
	}
	return s.store.AddInteraction(ctx, &domain.Interaction{
		ProjectID: projectID,
		UserID:    userID,
		Type:      "bookmark",
	})
}

// RemoveBookmark 取消收藏 (幂等)
func (s *CrawlService) RemoveBookmark(ctx context.Context, userID, projectID string) error {
	return s.store.RemoveBookmark(ctx, userID, projectID)
}

// RecommendedProjects 基于收藏的语言/topic 偏好打分推荐，最多 5 个
func (s *CrawlService) RecommendedProjects(ctx context.Context, userID, currentProjectID string) ([]*domain.Project, error) {
	bookmarkIDs, err := s.store.GetUserBookmarks(ctx, userID)
	if err != nil {
		return nil, err
	}

	all, err := s.store.GetProjects(ctx)
	if err != nil {
		return nil, err
	}

	bookmarked := make(map[string]bool, len(bookmarkIDs))
	for _, id := range bookmarkIDs {
		bookmarked[id] = true
	}

	// 没有收藏时按总分推荐
	if len(bookmarkIDs) == 0 {
		sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
		var top []*domain.Project
		for _, p := range all {
			if p.ID != currentProjectID {
				top = append(top, p)
			}
			if len(top) == 5 {
				break
			}
		}
		return top, nil
	}

	languages := make(map[string]bool)
	topics := make(map[string]bool)
	for _, p := range all {
		if bookmarked[p.ID] {
			languages[p.Language] = true
			for _, t := range p.Topics {
				topics[t] = true
			}
		}
	}

	type scored struct {
		project *domain.Project
		score   float64
	}
	var candidates []scored
	for _, p := range all {
		if p.ID == currentProjectID || bookmarked[p.ID] {
			continue
		}
		score := 0.0
		if languages[p.Language] {
			score += 3
		}
		for _, t := range p.Topics {
			if topics[t] {
				score += 2
			}
		}
		score += p.Score * 0.5
		candidates = append(candidates, scored{p, score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	var out []*domain.Project
	for _, c := range candidates {
		out = append(out, c.project)
		if len(out) == 5 {
			break
		}
	}
	return out, nil
}
