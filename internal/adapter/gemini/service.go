package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/heuristics"
	"project-prospector/internal/port"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	analysisModel = "gemini-1.5-flash"
	textModel     = "gemini-pro"
	readmeLimit   = 2000
)

// aiResponse 接收 AI 返回的 JSON
type aiResponse struct {
	Summary    string   `json:"summary"`
	Todos      []string `json:"todos"`
	Categories []string `json:"categories"`
}

// generateFunc 一次文本生成调用，测试时可替换
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// Service 封装 Gemini：配额管控 + 密钥轮换 + 兜底分析
type Service struct {
	mu       sync.Mutex
	client   *genai.Client
	keys     *KeyPool
	quota    *Quota
	fallback port.Analyzer
	log      *common.Logger
	generate generateFunc
}

// NewService 初始化。一个可用密钥都没有时 client 为 nil，所有调用走兜底
func NewService(ctx context.Context, keys []string, fallback port.Analyzer, logger *common.Logger) (*Service, error) {
	s := &Service{
		keys:     NewKeyPool(keys),
		quota:    NewQuota(),
		fallback: fallback,
		log:      logger,
	}
	s.generate = s.generateWithClient

	if key := s.keys.Current(); key != "" {
		if err := s.initClient(ctx, key); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("GEMINI_API_KEY is not set. AI 기능이 제한됩니다.")
	}

	total, _, _ := s.keys.Stats()
	logger.Info("API 키 관리자 초기화: %d개의 Gemini API 키 로드됨", total)
	return s, nil
}

func (s *Service) initClient(ctx context.Context, key string) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return common.WrapError(common.ErrCodeAIProcessing, "Gemini 클라이언트 초기화 실패", err)
	}

	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
	}
	s.client = client
	s.mu.Unlock()

	masked := key
	if len(key) > 8 {
		masked = key[:4] + "..." + key[len(key)-4:]
	}
	s.log.Info("Gemini API 클라이언트 초기화됨: %s", masked)
	return nil
}

// Quota 暴露给需要直接读取配额的调用方
func (s *Service) Quota() *Quota { return s.quota }

// KeyPool 暴露密钥池 (调试接口展示状态用)
func (s *Service) KeyPool() *KeyPool { return s.keys }

// UsageStats 实现 port.UsageReporter
func (s *Service) UsageStats() port.UsageStats {
	return s.quota.Stats()
}

func (s *Service) generateWithClient(ctx context.Context, model, prompt string) (string, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return "", common.NewError(common.ErrCodeAIProcessing, "Gemini 클라이언트가 초기화되지 않았습니다")
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.7)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(800)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", common.NewError(common.ErrCodeAIProcessing, "AI 응답이 비어 있습니다")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", common.NewError(common.ErrCodeAIProcessing, "AI 응답 형식이 올바르지 않습니다")
	}
	return string(text), nil
}

// isQuotaError Gemini 侧的配额类错误 (HTTP 429)
func isQuotaError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429
	}
	return strings.Contains(strings.ToLower(err.Error()), "quota")
}

// rotateOnQuota 配额错误时轮换密钥并重建客户端
func (s *Service) rotateOnQuota(ctx context.Context, err error) {
	if !isQuotaError(err) {
		return
	}
	next := s.keys.ReportFailure(s.keys.Current())
	if next == "" {
		s.log.Warn("모든 Gemini API 키가 실패했습니다. 나중에 다시 시도하세요.")
		return
	}
	s.log.Info("🔄 Gemini API 키 로테이션")
	if initErr := s.initClient(ctx, next); initErr != nil {
		s.log.ErrorWith("키 로테이션 후 초기화 실패", initErr)
	}
}

// admit 本地配额判定；跨天时顺带重置失败的密钥
func (s *Service) admit() bool {
	ok, newDay := s.quota.Allow()
	if newDay {
		s.keys.ResetFailed()
		s.log.Info("AI API 일일 카운터가 리셋되었습니다")
	}
	return ok
}

// GenerateText 实现 port.TextGenerator。配额不足或出错时返回空串
func (s *Service) GenerateText(ctx context.Context, prompt string) string {
	s.mu.Lock()
	hasClient := s.client != nil
	s.mu.Unlock()
	if !hasClient {
		s.log.Warn("AI API 키가 설정되지 않아 텍스트 생성을 건너뜁니다.")
		return ""
	}

	if !s.admit() {
		s.log.Warn("AI API 한도 초과로 텍스트 생성을 건너뜁니다.")
		return ""
	}

	text, err := s.generate(ctx, textModel, prompt)
	if err != nil {
		s.rotateOnQuota(ctx, err)
		s.log.ErrorWith("텍스트 생성 중 오류", err)
		return ""
	}
	return text
}

// AnalyzeProject 实现 port.Analyzer：一次请求拿到摘要/TODO/分类。
// 配额不足、解析失败、网络失败一律退回简单分析
func (s *Service) AnalyzeProject(ctx context.Context, repo *domain.Repository, readme string) *domain.Analysis {
	s.mu.Lock()
	hasClient := s.client != nil
	s.mu.Unlock()
	if !hasClient {
		s.log.Warn("AI API 키가 설정되지 않아 기본 분석 사용")
		return s.fallback.AnalyzeProject(ctx, repo, readme)
	}

	if !s.admit() {
		s.log.Warn("AI API 한도 초과로 기본 분석 사용")
		return s.fallback.AnalyzeProject(ctx, repo, readme)
	}

	s.log.Info("통합 AI 분석 시작: %s", repo.FullName)

	text, err := s.generate(ctx, analysisModel, buildAnalysisPrompt(repo, readme))
	if err != nil {
		s.rotateOnQuota(ctx, err)
		s.log.ErrorWith("AI 분석 실패", err)
		return s.fallback.AnalyzeProject(ctx, repo, readme)
	}

	parsed, err := parseAnalysisResponse(text)
	if err != nil {
		s.log.Warn("AI 응답 파싱 실패, 기본값 사용")
		return s.fallback.AnalyzeProject(ctx, repo, readme)
	}

	s.log.Success("통합 AI 분석 완료: %s", repo.FullName)
	return s.shapeAnalysis(parsed, repo)
}

// shapeAnalysis AI 路径的响应整形：todos 上限 5 条、categories 上限 2 个
func (s *Service) shapeAnalysis(parsed *aiResponse, repo *domain.Repository) *domain.Analysis {
	analysis := &domain.Analysis{
		Summary:    parsed.Summary,
		Todos:      parsed.Todos,
		Categories: parsed.Categories,
	}
	if analysis.Summary == "" {
		analysis.Summary = fallbackSummary(repo)
	}
	if len(analysis.Todos) > 5 {
		analysis.Todos = analysis.Todos[:5]
	}
	if len(analysis.Categories) > 2 {
		analysis.Categories = analysis.Categories[:2]
	}
	if len(analysis.Categories) == 0 {
		analysis.Categories = []string{"prototype"}
	}
	return analysis
}

func buildAnalysisPrompt(repo *domain.Repository, readme string) string {
	language := repo.Language
	if language == "" {
		language = "Unknown"
	}
	description := repo.Description
	if description == "" {
		description = "설명 없음"
	}
	if len(readme) > readmeLimit {
		readme = readme[:readmeLimit]
	}

	return fmt.Sprintf(`
다음은 %s로 작성된 GitHub 프로젝트입니다:

프로젝트명: %s
설명: %s
README (처음 2000자): %s

다음 형식으로 JSON 응답해주세요:
{
  "summary": "프로젝트 요약 (200자 이내)",
  "todos": ["완성을 위한 작업1", "작업2", "작업3", "작업4", "작업5"],
  "categories": ["카테고리1", "카테고리2"]
}

카테고리는 다음 중에서 선택: %s
`, language, repo.Name, description, readme, strings.Join(heuristics.CategoryAllowList, ", "))
}

// parseAnalysisResponse 智能寻找 JSON 的起止位置。
// 即使 AI 返回 "```json { ... } ```" 也能精准抠出中间的 { ... }
func parseAnalysisResponse(raw string) (*aiResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, common.NewError(common.ErrCodeAIProcessing, "응답에서 JSON을 찾을 수 없습니다")
	}

	var res aiResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, "JSON 파싱 실패", err)
	}
	return &res, nil
}

func fallbackSummary(repo *domain.Repository) string {
	language := repo.Language
	if language == "" {
		language = "Unknown"
	}
	if repo.Description != "" {
		return fmt.Sprintf("%s로 개발된 프로젝트입니다. %s", language, repo.Description)
	}
	return fmt.Sprintf("%s로 개발된 프로젝트입니다. 추가 개발을 통해 완성할 수 있는 미완성 프로젝트입니다.", language)
}

// Close 释放底层客户端
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
