package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/heuristics"
)

// SimpleAnalyzer 不依赖 AI 的兜底分析器，全靠关键词和阈值
type SimpleAnalyzer struct {
	nowFunc func() time.Time
	log     *common.Logger
}

// NewSimpleAnalyzer 创建简单分析器
func NewSimpleAnalyzer(logger *common.Logger) *SimpleAnalyzer {
	return &SimpleAnalyzer{
		nowFunc: time.Now,
		log:     logger,
	}
}

// SetNowFunc 注入时钟，测试用
func (a *SimpleAnalyzer) SetNowFunc(fn func() time.Time) { a.nowFunc = fn }

type readmeAnalysis struct {
	score     float64
	todos     []string
	reasoning []string
}

type repoAnalysis struct {
	score     float64
	reasoning []string
}

// AnalyzeProject 实现 port.Analyzer
func (a *SimpleAnalyzer) AnalyzeProject(_ context.Context, repo *domain.Repository, readme string) *domain.Analysis {
	a.log.Info("간단 분석 시작: %s", repo.FullName)

	ra := a.analyzeReadme(readme)
	rp := a.analyzeRepository(repo)
	languageTodos := heuristics.LanguageTodos(repo.Language)
	categories := heuristics.InferCategories(repo.Description, readme, repo.Topics)

	todos := append(append([]string{}, ra.todos...), languageTodos...)
	if len(todos) > 8 {
		todos = todos[:8]
	}

	total := ra.score + rp.score
	analysis := &domain.Analysis{
		Summary:    a.generateDescription(repo, total),
		Todos:      todos,
		Categories: categories,
		Reasoning:  append(append([]string{}, ra.reasoning...), rp.reasoning...),
	}

	a.log.Success("간단 분석 완료: %s (점수: %.0f)", repo.FullName, total)
	return analysis
}

func (a *SimpleAnalyzer) analyzeReadme(readme string) readmeAnalysis {
	var ra readmeAnalysis
	lower := strings.ToLower(readme)

	if len(readme) > 500 {
		ra.score += 2
		ra.reasoning = append(ra.reasoning, "상세한 README 문서")
	} else if len(readme) > 200 {
		ra.score += 1
		ra.reasoning = append(ra.reasoning, "기본적인 README 문서")
	}

	// 安装指南
	if strings.Contains(lower, "install") || strings.Contains(lower, "설치") {
		ra.score += 1
		ra.reasoning = append(ra.reasoning, "설치 가이드 포함")
	} else {
		ra.todos = append(ra.todos, "설치 가이드 작성")
	}

	// 使用说明
	if strings.Contains(lower, "usage") || strings.Contains(lower, "사용법") || strings.Contains(lower, "example") {
		ra.score += 1
		ra.reasoning = append(ra.reasoning, "사용법 예제 포함")
	} else {
		ra.todos = append(ra.todos, "사용법 예제 추가")
	}

	// 功能说明
	if strings.Contains(lower, "feature") || strings.Contains(lower, "기능") {
		ra.score += 1
		ra.reasoning = append(ra.reasoning, "기능 설명 포함")
	} else {
		ra.todos = append(ra.todos, "주요 기능 설명 추가")
	}

	// 未完成标记
	if n := heuristics.CountTodoMarkers(readme); n > 0 {
		ra.todos = append(ra.todos, fmt.Sprintf("코드 내 %d개의 TODO 항목 해결", n))
		ra.reasoning = append(ra.reasoning, fmt.Sprintf("%d개의 미완성 항목 발견", n))
	}

	return ra
}

func (a *SimpleAnalyzer) analyzeRepository(repo *domain.Repository) repoAnalysis {
	var rp repoAnalysis

	switch heuristics.PopularityPoints(repo.Stars) {
	case 2:
		rp.score += 2
		rp.reasoning = append(rp.reasoning, fmt.Sprintf("높은 관심도 (%d stars)", repo.Stars))
	case 1:
		rp.score += 1
		rp.reasoning = append(rp.reasoning, fmt.Sprintf("적당한 관심도 (%d stars)", repo.Stars))
	}

	months := heuristics.MonthsSince(repo.UpdatedAt, a.nowFunc())
	switch heuristics.RecentActivityPoints(months) {
	case 2:
		rp.score += 2
		rp.reasoning = append(rp.reasoning, "최근 3개월 내 활동")
	case 1:
		rp.score += 1
		rp.reasoning = append(rp.reasoning, "최근 6개월 내 활동")
	}

	if repo.License != "" {
		rp.score += 1
		rp.reasoning = append(rp.reasoning, fmt.Sprintf("라이선스 명시 (%s)", repo.License))
	}

	if repo.OpenIssues > 0 {
		rp.score += 1
		rp.reasoning = append(rp.reasoning, "활발한 이슈 활동")
	}

	return rp
}

func (a *SimpleAnalyzer) generateDescription(repo *domain.Repository, totalScore float64) string {
	language := repo.Language
	if language == "" {
		language = "Unknown"
	}

	desc := fmt.Sprintf("%s로 개발된 프로젝트입니다. ", language)
	if repo.Description != "" {
		desc += repo.Description + " "
	}

	switch {
	case totalScore >= 8:
		desc += "비교적 완성도가 높은 프로젝트로, 추가 기능 구현이나 개선 작업에 적합합니다."
	case totalScore >= 5:
		desc += "기본 구조가 갖춰진 프로젝트로, 추가 개발을 통해 완성할 수 있습니다."
	default:
		desc += "초기 단계의 프로젝트로, 많은 개발 작업이 필요합니다."
	}

	return desc
}
