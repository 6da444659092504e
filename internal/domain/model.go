package domain

import (
	"math"
	"strings"
	"time"
)

// ScoreBreakdown 六个评分维度，总分 = 各维度之和 (0-12)
type ScoreBreakdown struct {
	Commits       float64 `json:"commits" gorm:"column:sb_commits"`
	Popularity    float64 `json:"popularity" gorm:"column:sb_popularity"`
	Documentation float64 `json:"documentation" gorm:"column:sb_documentation"`
	Structure     float64 `json:"structure" gorm:"column:sb_structure"`
	Activity      float64 `json:"activity" gorm:"column:sb_activity"`
	Potential     float64 `json:"potential" gorm:"column:sb_potential"`
}

// Sum 各维度之和，保留一位小数
func (b ScoreBreakdown) Sum() float64 {
	total := b.Commits + b.Popularity + b.Documentation + b.Structure + b.Activity + b.Potential
	return math.Round(total*10) / 10
}

// ScoreResult 评分引擎的输出
type ScoreResult struct {
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Reasoning []string       `json:"reasoning"`
}

// Analysis 分析器(AI 或简单分析)的输出
type Analysis struct {
	Summary    string   `json:"summary"`
	Todos      []string `json:"todos"`
	Categories []string `json:"categories"`
	Reasoning  []string `json:"reasoning"`
}

// Repository GitHub 仓库的原始元数据 (DTO)
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"` // 例如 "gohugoio/hugo"
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	Language      string    `json:"language"`
	Topics        []string  `json:"topics"`
	License       string    `json:"license"`
	OpenIssues    int       `json:"open_issues_count"`
	SizeKB        int       `json:"size"`
	DefaultBranch string    `json:"default_branch"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Owner 从 FullName 中拆出 owner 部分
func (r *Repository) Owner() string {
	if i := strings.IndexByte(r.FullName, '/'); i >= 0 {
		return r.FullName[:i]
	}
	return r.FullName
}

// RepoName 从 FullName 中拆出仓库名部分
func (r *Repository) RepoName() string {
	if i := strings.IndexByte(r.FullName, '/'); i >= 0 {
		return r.FullName[i+1:]
	}
	return r.FullName
}

// Project 持久化的核心实体，由爬取流水线创建
type Project struct {
	// 基础信息 (来自 GitHub)
	ID            string   `json:"id" gorm:"primaryKey"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	GitHubURL     string   `json:"githubUrl"`
	Owner         string   `json:"owner"`
	Repo          string   `json:"repo"`
	Language      string   `json:"language"`
	Topics        []string `json:"topics" gorm:"serializer:json"`
	License       string   `json:"license"`
	DefaultBranch string   `json:"defaultBranch"`

	// 热度 / 活跃度
	Stars      int    `json:"stars"`
	Forks      int    `json:"forks"`
	Commits    int    `json:"commits"` // 估算值
	LastUpdate string `json:"lastUpdate"`
	CreatedAt  string `json:"createdAt"`
	Views      int    `json:"views"` // 只增不减

	// 评分 / AI 派生字段
	Score          float64        `json:"score"`
	ScoreBreakdown ScoreBreakdown `json:"scoreBreakdown" gorm:"embedded"`
	ScoreReasoning []string       `json:"scoreReasoning" gorm:"serializer:json"`
	ReadmeSummary  string         `json:"readmeSummary" gorm:"type:text"`
	Todos          []string       `json:"todos" gorm:"serializer:json"`
	Categories     []string       `json:"categories" gorm:"serializer:json"`
	LinesOfCode    int            `json:"linesOfCode"`

	// 描述更新后台任务写入的字段
	KoreanDescription     string `json:"koreanDescription,omitempty" gorm:"type:text"`
	EnglishDescription    string `json:"englishDescription,omitempty" gorm:"type:text"`
	IsDescriptionUpdated  bool   `json:"isDescriptionUpdated"`
	LastDescriptionUpdate string `json:"lastDescriptionUpdate,omitempty"`

	SavedAt string `json:"updatedAt,omitempty"`
	AddedBy string `json:"addedBy,omitempty"`
}

// Normalize 补齐缺省字段，保证写入前数据完整
func (p *Project) Normalize() {
	if p.Title == "" {
		p.Title = "Untitled Project"
	}
	if p.Language == "" {
		p.Language = "Other"
	}
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if p.LastUpdate == "" {
		p.LastUpdate = now
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	if p.Topics == nil {
		p.Topics = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.Todos == nil {
		p.Todos = []string{}
	}
	if p.ScoreReasoning == nil {
		p.ScoreReasoning = []string{}
	}
	// 不变量：todos 不超过 8 条，categories 不超过 3 个
	if len(p.Todos) > 8 {
		p.Todos = p.Todos[:8]
	}
	if len(p.Categories) > 3 {
		p.Categories = p.Categories[:3]
	}
}

// Bookmark 用户收藏关系 (userId, projectId)
type Bookmark struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
}

// Interaction 用户与项目的一次交互记录
type Interaction struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	Type      string `json:"type"` // view / bookmark / fork
	Timestamp string `json:"timestamp"`
}

// CrawlProgress 爬取进度事件，供 UI 渲染进度条
type CrawlProgress struct {
	Step    string  `json:"step"`
	Percent float64 `json:"percent"` // 0-100，粗粒度
	Message string  `json:"message"`
}
