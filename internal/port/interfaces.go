package port

import (
	"context"

	"project-prospector/internal/domain"
)

// Searcher (侦察兵): 负责去 GitHub 发现未完成的项目
type Searcher interface {
	// FindUnfinishedProjects 执行一组固定的搜索查询，去重后返回候选仓库
	FindUnfinishedProjects(ctx context.Context) ([]*domain.Repository, error)

	// GetReadme 获取 README 全文；没有 README 时返回占位文本而不是报错
	GetReadme(ctx context.Context, owner, repo string) (string, error)

	// HasReadme 检查仓库是否有 README
	HasReadme(ctx context.Context, owner, repo string) bool
}

// Scorer (鉴定师): 根据仓库元数据计算 0-12 的完成度评分
type Scorer interface {
	ScoreProject(repo *domain.Repository) *domain.ScoreResult

	// BatchScore 逐个评分，key 为仓库 FullName；单个失败用默认分兜底
	BatchScore(ctx context.Context, repos []*domain.Repository) (map[string]*domain.ScoreResult, error)
}

// Analyzer (分析员): 产出项目摘要、TODO 列表和分类
type Analyzer interface {
	AnalyzeProject(ctx context.Context, repo *domain.Repository, readme string) *domain.Analysis
}

// TextGenerator 文本生成能力，描述更新任务依赖它
type TextGenerator interface {
	// GenerateText 配额不足或出错时返回空串，不报错
	GenerateText(ctx context.Context, prompt string) string
}

// UsageReporter AI 配额使用情况
type UsageReporter interface {
	UsageStats() UsageStats
}

// UsageStats AI API 的分钟/日配额快照
type UsageStats struct {
	MinuteRequests    int `json:"minuteRequests"`
	MaxMinuteRequests int `json:"maxMinuteRequests"`
	DailyRequests     int `json:"dailyRequests"`
	MaxDailyRequests  int `json:"maxDailyRequests"`
}

// ProjectStore (仓库管理员): 项目与收藏的存取
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	GetProjects(ctx context.Context) ([]*domain.Project, error)
	SaveProject(ctx context.Context, project *domain.Project) error
	IncrementProjectView(ctx context.Context, id string) error

	GetUserBookmarks(ctx context.Context, userID string) ([]string, error)
	AddBookmark(ctx context.Context, userID, projectID string) error
	RemoveBookmark(ctx context.Context, userID, projectID string) error

	AddInteraction(ctx context.Context, in *domain.Interaction) error
}

// ConnectionStatus 远端存储的三态连接状态
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusUnknown      ConnectionStatus = "unknown"
)

// StatusReporter 能汇报连接状态的存储
type StatusReporter interface {
	ConnectionStatus() ConnectionStatus
}
