package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/heuristics"
)

// criteria 打分所需的全部输入
type criteria struct {
	commits       int
	stars         int
	hasReadme     bool
	readmeLength  int
	hasLicense    bool
	monthsOld     float64
	hasIssues     bool
	codeStructure float64
	todoComments  int
	projectSize   int // 估算行数
}

// Estimator 提交数 / TODO 数的估算函数。
// 来源系统用随机数占位；默认实现改成由仓库 id 和体积推导，保证可复现
type Estimator func(repo *domain.Repository) (commits int, todoCount int)

func defaultEstimator(repo *domain.Repository) (int, int) {
	seed := repo.ID + int64(repo.SizeKB)
	if seed < 0 {
		seed = -seed
	}
	commits := 5 + int(seed%30)   // 5..34
	todoCount := int(seed % 5)    // 0..4
	return commits, todoCount
}

// Engine 实现了 port.Scorer 接口
type Engine struct {
	nowFunc    func() time.Time
	estimate   Estimator
	batchDelay time.Duration
	log        *common.Logger
}

// NewEngine 创建评分引擎
func NewEngine(logger *common.Logger) *Engine {
	return &Engine{
		nowFunc:    time.Now,
		estimate:   defaultEstimator,
		batchDelay: 100 * time.Millisecond,
		log:        logger,
	}
}

// SetNowFunc 注入时钟，测试用
func (e *Engine) SetNowFunc(fn func() time.Time) { e.nowFunc = fn }

// SetEstimator 注入估算函数，测试用
func (e *Engine) SetEstimator(fn Estimator) { e.estimate = fn }

// DefaultResult 兜底分：任何环节失败时都返回它而不是报错
func DefaultResult() *domain.ScoreResult {
	return &domain.ScoreResult{
		Score: 5,
		Breakdown: domain.ScoreBreakdown{
			Commits:       1,
			Popularity:    1,
			Documentation: 1,
			Structure:     1,
			Activity:      1,
			Potential:     0,
		},
		Reasoning: []string{"기본 분석만 수행됨"},
	}
}

// ScoreProject 仅凭仓库元数据打分，不发额外请求
func (e *Engine) ScoreProject(repo *domain.Repository) *domain.ScoreResult {
	if repo == nil {
		return DefaultResult()
	}
	return e.calculate(e.basicCriteria(repo))
}

// basicCriteria 元数据推导打分输入。README 相关字段取保守默认值
func (e *Engine) basicCriteria(repo *domain.Repository) criteria {
	commits, todoCount := e.estimate(repo)

	structure := 0.0
	if repo.SizeKB > 100 {
		structure = 1
	}

	return criteria{
		commits:       commits,
		stars:         repo.Stars,
		hasReadme:     true, // 绝大多数仓库有 README，基本分析按有算
		readmeLength:  500,
		hasLicense:    repo.License != "",
		monthsOld:     heuristics.MonthsSince(repo.UpdatedAt, e.nowFunc()),
		hasIssues:     repo.OpenIssues > 0,
		codeStructure: structure,
		todoComments:  todoCount,
		projectSize:   repo.SizeKB * 10,
	}
}

func (e *Engine) calculate(c criteria) *domain.ScoreResult {
	var reasoning []string
	var b domain.ScoreBreakdown

	// 提交数 (0-2)：5~30 之间最理想
	switch {
	case c.commits >= 5 && c.commits <= 30:
		b.Commits = 2
		reasoning = append(reasoning, fmt.Sprintf("Good commit count (%d)", c.commits))
	case c.commits >= 3:
		b.Commits = 1
		reasoning = append(reasoning, fmt.Sprintf("Moderate commit count (%d)", c.commits))
	default:
		reasoning = append(reasoning, fmt.Sprintf("Low commit count (%d)", c.commits))
	}

	// 热度 (0-2)
	b.Popularity = heuristics.PopularityPoints(c.stars)
	switch b.Popularity {
	case 2:
		reasoning = append(reasoning, fmt.Sprintf("High popularity (%d stars)", c.stars))
	case 1:
		reasoning = append(reasoning, fmt.Sprintf("Some popularity (%d stars)", c.stars))
	default:
		reasoning = append(reasoning, fmt.Sprintf("Low popularity (%d stars)", c.stars))
	}

	// 文档 (0-3)
	b.Documentation = heuristics.DocumentationPoints(c.hasReadme, c.readmeLength)
	switch b.Documentation {
	case 3:
		reasoning = append(reasoning, "Comprehensive README")
	case 2:
		reasoning = append(reasoning, "Good README")
	case 1:
		reasoning = append(reasoning, "Basic README")
	default:
		reasoning = append(reasoning, "No README found")
	}

	// 结构 (0-2)
	b.Structure = c.codeStructure
	switch b.Structure {
	case 2:
		reasoning = append(reasoning, "Well-organized code structure")
	case 1:
		reasoning = append(reasoning, "Basic code structure")
	default:
		reasoning = append(reasoning, "Poor code organization")
	}

	// 活跃度 (0-2)
	b.Activity = heuristics.ActivityPoints(c.monthsOld)
	switch b.Activity {
	case 2:
		reasoning = append(reasoning, "Recently active")
	case 1:
		reasoning = append(reasoning, "Moderately recent activity")
	default:
		reasoning = append(reasoning, "Inactive for a long time")
	}

	// 潜力 (0-2)：四个独立的 +0.5，封顶 2
	potential := 0.0
	if c.hasLicense {
		potential += 0.5
		reasoning = append(reasoning, "Has license")
	}
	if c.hasIssues {
		potential += 0.5
		reasoning = append(reasoning, "Has issues/PRs")
	}
	if c.todoComments > 0 {
		potential += 0.5
		reasoning = append(reasoning, "Contains TODO comments")
	}
	if c.projectSize >= 100 && c.projectSize <= 2000 {
		potential += 0.5
		reasoning = append(reasoning, "Good project size")
	}
	b.Potential = math.Min(2, potential)

	return &domain.ScoreResult{
		Score:     b.Sum(),
		Breakdown: b,
		Reasoning: reasoning,
	}
}

// ScoreWithReadme 带 README 全文的完整评分 (调试入口用)
func (e *Engine) ScoreWithReadme(repo *domain.Repository, readme string, hasSourceDir, hasManifest bool) *domain.ScoreResult {
	if repo == nil {
		return DefaultResult()
	}
	c := e.basicCriteria(repo)
	c.hasReadme = readme != ""
	c.readmeLength = len(readme)
	c.todoComments = heuristics.CountTodoMarkers(readme)
	c.codeStructure = heuristics.StructurePoints(hasSourceDir, hasManifest)
	return e.calculate(c)
}

// BatchScore 逐个评分，key 为 FullName。单个失败不影响整批
func (e *Engine) BatchScore(ctx context.Context, repos []*domain.Repository) (map[string]*domain.ScoreResult, error) {
	results := make(map[string]*domain.ScoreResult, len(repos))

	for _, repo := range repos {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		results[repo.FullName] = e.ScoreProject(repo)

		if e.batchDelay > 0 {
			time.Sleep(e.batchDelay)
		}
	}

	return results, nil
}
