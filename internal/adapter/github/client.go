package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/ratelimit"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

const (
	maxRequestsPerHour = 30
	requestInterval    = 2 * time.Second
	queryInterval      = 3 * time.Second
)

// unfinishedQueries 发现"未完成项目"的固定查询组合：
// 语言+星区间+近期推送，再加 README/描述里的未完成关键词
var unfinishedQueries = []string{
	"stars:10..50 pushed:>2023-06-01 size:50..5000 archived:false language:JavaScript",
	"stars:10..50 pushed:>2023-06-01 size:50..5000 archived:false language:TypeScript",
	"stars:10..100 pushed:>2023-06-01 size:50..5000 archived:false language:Python",
	"stars:10..100 pushed:>2023-06-01 size:50..5000 archived:false language:Java",
	"stars:10..100 pushed:>2023-06-01 size:50..5000 archived:false language:Go",
	"stars:10..100 pushed:>2023-06-01 size:50..5000 archived:false language:Rust",
	"TODO in:readme stars:10..200 pushed:>2023-01-01 archived:false",
	"FIXME in:readme stars:10..200 pushed:>2023-01-01 archived:false",
	"incomplete in:name,description stars:10..200 pushed:>2023-01-01 archived:false",
	"unfinished in:name,description stars:10..200 pushed:>2023-01-01 archived:false",
	"prototype in:name,description stars:10..200 pushed:>2023-01-01 archived:false",
	"work-in-progress in:name,description stars:10..200 pushed:>2023-01-01 archived:false",
}

// Client 实现了 port.Searcher 接口
type Client struct {
	client     *github.Client
	window     *ratelimit.Window
	pacer      *ratelimit.Pacer
	queryDelay time.Duration
	log        *common.Logger
}

// NewClient 初始化 GitHub 客户端
// token: GitHub Personal Access Token (空字符串时匿名访问，限制 60次/小时)
func NewClient(token string, logger *common.Logger) *Client {
	var client *github.Client

	if token == "" {
		client = github.NewClient(nil)
	} else {
		ctx := context.Background()
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(ctx, ts)
		client = github.NewClient(tc)
	}

	return &Client{
		client:     client,
		window:     ratelimit.NewWindow(maxRequestsPerHour, time.Hour),
		pacer:      ratelimit.NewPacer(requestInterval),
		queryDelay: queryInterval,
		log:        logger,
	}
}

// Remaining 本小时剩余请求预算
func (c *Client) Remaining() int {
	return c.window.Remaining()
}

// admit 每次请求前的准入：预算 + 固定间隔
func (c *Client) admit(ctx context.Context) error {
	if !c.window.Allow() {
		return common.NewError(common.ErrCodeRateLimit, "GitHub API 小时预算已用尽")
	}
	return c.pacer.Wait(ctx)
}

func wrapAPIError(err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return common.WrapError(common.ErrCodeRateLimit, "GitHub API rate limit exceeded", err)
	}
	return common.WrapError(common.ErrCodeGitHubAPI, "GitHub API 调用失败", err)
}

// SearchRepositories 按查询条件搜索仓库
func (c *Client) SearchRepositories(ctx context.Context, query string, page, perPage int) ([]*domain.Repository, int, error) {
	if err := c.admit(ctx); err != nil {
		return nil, 0, err
	}

	opts := &github.SearchOptions{
		Sort:  "updated",
		Order: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	result, _, err := c.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, 0, wrapAPIError(err)
	}

	var repos []*domain.Repository
	for _, item := range result.Repositories {
		repos = append(repos, toRepository(item))
	}
	return repos, result.GetTotal(), nil
}

// GetRepository 获取单个仓库的元数据
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*domain.Repository, error) {
	if err := c.admit(ctx); err != nil {
		return nil, err
	}

	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return toRepository(r), nil
}

// HasReadme 检查仓库是否有 README；预算告急时保守返回 false
func (c *Client) HasReadme(ctx context.Context, owner, repo string) bool {
	if c.window.Remaining() <= 2 {
		return false
	}
	if err := c.admit(ctx); err != nil {
		return false
	}
	_, _, err := c.client.Repositories.GetReadme(ctx, owner, repo, nil)
	return err == nil
}

// GetReadme 获取 README 全文 (base64 解码后)。
// 没有 README 或调用失败时返回占位文本，韩文文案沿用线上数据格式
func (c *Client) GetReadme(ctx context.Context, owner, repo string) (string, error) {
	if err := c.admit(ctx); err != nil {
		return fmt.Sprintf("# %s\n\n%s/%s 프로젝트입니다. (README를 불러올 수 없습니다)", repo, owner, repo), nil
	}

	content, _, err := c.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return fmt.Sprintf("# %s\n\n%s/%s 프로젝트입니다. (README 파일이 없습니다)", repo, owner, repo), nil
	}

	text, err := content.GetContent()
	if err != nil || text == "" {
		return fmt.Sprintf("# %s\n\n프로젝트 README를 불러올 수 없습니다.", repo), nil
	}
	return text, nil
}

// CountCommits 提交数估算：只取第一页 (最多 50 条)
func (c *Client) CountCommits(ctx context.Context, owner, repo string) int {
	if err := c.admit(ctx); err != nil {
		return 0
	}

	commits, _, err := c.client.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{Page: 1, PerPage: 50},
	})
	if err != nil {
		return 0
	}
	return len(commits)
}

// FindUnfinishedProjects 执行全部查询，去重后按星数过滤，最多返回 50 个。
// 预算不足以再跑一个查询时提前收尾；限流错误向上抛，由调用方决定是否软停
func (c *Client) FindUnfinishedProjects(ctx context.Context) ([]*domain.Repository, error) {
	c.log.Info("총 %d개의 검색 쿼리를 실행합니다...", len(unfinishedQueries))

	var all []*domain.Repository
	successfulQueries := 0

	for i, query := range unfinishedQueries {
		// 预算快见底就不再发起新查询
		if c.window.Remaining() <= 3 {
			c.log.Warn("API 限额接近，在第 %d 个查询处中断 (%d 个查询成功)", i+1, successfulQueries)
			break
		}

		c.log.Info("[%d/%d] 검색 중: %.50s...", i+1, len(unfinishedQueries), query)

		repos, total, err := c.SearchRepositories(ctx, query, 1, 15)
		if err != nil {
			if common.IsRateLimit(err) {
				c.log.Warn("Rate limit 도달로 검색 중단")
				break
			}
			c.log.ErrorWith(fmt.Sprintf("쿼리 실패 [%d/%d]: %s", i+1, len(unfinishedQueries), query), err)
			continue
		}

		c.log.Info("  → 총 %d개 결과, %d개 반환됨", total, len(repos))

		if len(repos) > 0 {
			// 每个查询最多取 12 个
			if len(repos) > 12 {
				repos = repos[:12]
			}
			all = append(all, repos...)
			successfulQueries++
		}

		if c.queryDelay > 0 && i < len(unfinishedQueries)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.queryDelay):
			}
		}
	}

	c.log.Info("검색 완료: %d개 쿼리 성공, 총 %d개 저장소 발견", successfulQueries, len(all))

	// 按 id 去重
	seen := make(map[int64]bool, len(all))
	var unique []*domain.Repository
	for _, r := range all {
		if !seen[r.ID] {
			seen[r.ID] = true
			unique = append(unique, r)
		}
	}
	c.log.Info("중복 제거 후: %d개 고유 저장소", len(unique))

	// 星数兜底过滤 (查询条件之外的二次保险)
	var starred []*domain.Repository
	for _, r := range unique {
		if r.Stars >= 10 {
			starred = append(starred, r)
		}
	}
	c.log.Info("스타 10개 이상 필터 후: %d개 저장소", len(starred))

	if len(starred) > 50 {
		starred = starred[:50]
	}
	c.log.Info("최종 반환: %d개 저장소", len(starred))

	for i, r := range starred {
		c.log.Info("  %d. %s (⭐%d, %s)", i+1, r.FullName, r.Stars, r.Language)
	}

	return starred, nil
}

// toRepository GitHub 数据结构 → Domain 实体 (DTO 转换)
func toRepository(item *github.Repository) *domain.Repository {
	license := ""
	if item.GetLicense() != nil {
		license = item.GetLicense().GetName()
	}
	return &domain.Repository{
		ID:            item.GetID(),
		Name:          item.GetName(),
		FullName:      item.GetFullName(),
		Description:   item.GetDescription(),
		HTMLURL:       item.GetHTMLURL(),
		Stars:         item.GetStargazersCount(),
		Forks:         item.GetForksCount(),
		Language:      item.GetLanguage(),
		Topics:        item.Topics,
		License:       license,
		OpenIssues:    item.GetOpenIssuesCount(),
		SizeKB:        item.GetSize(),
		DefaultBranch: item.GetDefaultBranch(),
		CreatedAt:     item.GetCreatedAt().Time,
		UpdatedAt:     item.GetUpdatedAt().Time,
	}
}
