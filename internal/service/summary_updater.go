package service

import (
	"context"
	"strings"
	"sync"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/port"
)

const summaryMaxAttempts = 5

// SummaryResult 单次补摘要的结果
type SummaryResult struct {
	Processed bool   `json:"processed"`
	Project   string `json:"project,omitempty"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
}

// SummaryUpdater 管理端手动触发：给缺 README 摘要的项目补一条。
// 每次调用只处理一个，失败时最多重试 5 次 (依赖底层 key 轮换)
type SummaryUpdater struct {
	store    port.ProjectStore
	searcher port.Searcher
	text     port.TextGenerator
	log      *common.Logger

	mu      sync.Mutex
	running bool
}

// NewSummaryUpdater 创建摘要更新器
func NewSummaryUpdater(store port.ProjectStore, searcher port.Searcher, text port.TextGenerator, logger *common.Logger) *SummaryUpdater {
	return &SummaryUpdater{store: store, searcher: searcher, text: text, log: logger}
}

// Pending 统计缺摘要的项目数
func (u *SummaryUpdater) Pending(ctx context.Context) (int, error) {
	projects, err := u.store.GetProjects(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range projects {
		if p.ReadmeSummary == "" {
			count++
		}
	}
	return count, nil
}

// ProcessNext 处理下一个缺摘要的项目
func (u *SummaryUpdater) ProcessNext(ctx context.Context) (*SummaryResult, error) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return nil, common.NewError(common.ErrCodeInvalidInput, "요약 업데이트가 이미 실행 중입니다")
	}
	u.running = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	projects, err := u.store.GetProjects(ctx)
	if err != nil {
		return nil, err
	}

	var target *domain.Project
	remaining := 0
	for _, p := range projects {
		if p.ReadmeSummary == "" {
			remaining++
			if target == nil {
				target = p
			}
		}
	}
	if target == nil {
		return &SummaryResult{Processed: false, Remaining: 0, Message: "모든 프로젝트에 요약이 있습니다"}, nil
	}

	u.log.Info("요약 생성 시작: %s (남은 프로젝트 %d개)", target.Title, remaining)

	readme, err := u.searcher.GetReadme(ctx, target.Owner, target.Repo)
	if err != nil {
		return nil, err
	}

	summary := u.generateSummary(ctx, target, readme)
	if summary == "" {
		return &SummaryResult{
			Processed: false,
			Project:   target.Title,
			Remaining: remaining,
			Message:   "요약 생성에 실패했습니다",
		}, nil
	}

	target.ReadmeSummary = summary
	if err := u.store.SaveProject(ctx, target); err != nil {
		return nil, err
	}

	u.log.Success("요약 업데이트 완료: %s", target.Title)
	return &SummaryResult{
		Processed: true,
		Project:   target.Title,
		Remaining: remaining - 1,
		Message:   "요약이 업데이트되었습니다",
	}, nil
}

// generateSummary 带重试：底层每次失败后会轮换 key，最多试 5 次
func (u *SummaryUpdater) generateSummary(ctx context.Context, project *domain.Project, readme string) string {
	if len(readme) > 2000 {
		readme = readme[:2000]
	}
	prompt := buildSummaryPrompt(project, readme)

	for attempt := 1; attempt <= summaryMaxAttempts; attempt++ {
		if text := u.text.GenerateText(ctx, prompt); text != "" {
			return strings.TrimSpace(text)
		}
		u.log.Warn("요약 생성 실패 (시도 %d/%d): %s", attempt, summaryMaxAttempts, project.Title)
	}
	return ""
}

func buildSummaryPrompt(project *domain.Project, readme string) string {
	var sb strings.Builder
	sb.WriteString("다음 README를 한국어로 2-3문장으로 요약해주세요. 요약문만 출력하세요.\n\n")
	sb.WriteString("프로젝트: " + project.Title + " (" + project.Language + ")\n\n")
	sb.WriteString("README:\n" + readme + "\n")
	return sb.String()
}
