package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v53/github"
	"github.com/stretchr/testify/assert"

	"project-prospector/internal/common"
	"project-prospector/internal/ratelimit"
)

// setupMockServer 创建模拟 GitHub API 服务器，并把客户端指向它
func setupMockServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)

	gh := github.NewClient(nil)
	baseURL, _ := url.Parse(server.URL + "/")
	gh.BaseURL = baseURL

	client := &Client{
		client:     gh,
		window:     ratelimit.NewWindow(maxRequestsPerHour, time.Hour),
		pacer:      ratelimit.NewPacer(0), // 测试不等间隔
		queryDelay: 0,
		log:        common.NewLogger(""),
	}
	return server, client
}

func mockRepo(id int64, fullName, language string, stars int) *github.Repository {
	return &github.Repository{
		ID:              github.Int64(id),
		Name:            github.String(fullName),
		FullName:        github.String(fullName),
		HTMLURL:         github.String("https://github.com/" + fullName),
		StargazersCount: github.Int(stars),
		Language:        github.String(language),
		Size:            github.Int(200),
		CreatedAt:       &github.Timestamp{Time: time.Now().AddDate(0, -6, 0)},
		UpdatedAt:       &github.Timestamp{Time: time.Now().AddDate(0, -1, 0)},
	}
}

func searchHandler(t *testing.T, repos []*github.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := &github.RepositoriesSearchResult{
			Total:        github.Int(len(repos)),
			Repositories: repos,
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(result))
	}
}

func TestClient_SearchRepositories(t *testing.T) {
	repos := []*github.Repository{
		mockRepo(1, "dev/alpha", "Go", 20),
		mockRepo(2, "dev/beta", "Python", 15),
	}
	server, client := setupMockServer(t, searchHandler(t, repos))
	defer server.Close()

	result, total, err := client.SearchRepositories(context.Background(), "stars:10..50", 1, 15)
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, result, 2)
	assert.Equal(t, "dev/alpha", result[0].FullName)
	assert.Equal(t, "Go", result[0].Language)
	assert.Equal(t, 20, result[0].Stars)
}

func TestClient_SearchRepositories_BudgetExhausted(t *testing.T) {
	called := false
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	defer server.Close()

	// 预算用光后必须本地拒绝，不发网络请求
	for client.window.Allow() {
	}

	_, _, err := client.SearchRepositories(context.Background(), "anything", 1, 15)
	assert.Error(t, err)
	assert.True(t, common.IsRateLimit(err))
	assert.False(t, called, "예산 소진 후에는 네트워크 요청이 없어야 함")
}

func TestClient_FindUnfinishedProjects(t *testing.T) {
	// 所有查询返回同一批仓库 → 验证去重
	repos := []*github.Repository{
		mockRepo(1, "dev/alpha", "Go", 20),
		mockRepo(2, "dev/beta", "Python", 5), // 星数不足，应被过滤
		mockRepo(3, "dev/gamma", "Rust", 12),
	}
	server, client := setupMockServer(t, searchHandler(t, repos))
	defer server.Close()

	result, err := client.FindUnfinishedProjects(context.Background())
	assert.NoError(t, err)

	ids := make(map[int64]int)
	for _, r := range result {
		ids[r.ID]++
		assert.GreaterOrEqual(t, r.Stars, 10, "10성 미만은 걸러져야 함")
	}
	for id, count := range ids {
		assert.Equal(t, 1, count, "저장소 %d 중복", id)
	}
	assert.Contains(t, ids, int64(1))
	assert.Contains(t, ids, int64(3))
	assert.NotContains(t, ids, int64(2))
}

func TestClient_FindUnfinishedProjects_StopsNearBudget(t *testing.T) {
	requests := 0
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		searchHandler(t, nil)(w, r)
	})
	defer server.Close()

	// 只留 5 次预算：阈值是 Remaining<=3，最多发 2 个查询
	for client.window.Remaining() > 5 {
		client.window.Allow()
	}

	_, err := client.FindUnfinishedProjects(context.Background())
	assert.NoError(t, err)
	assert.LessOrEqual(t, requests, 2)
}

func TestClient_GetRepository(t *testing.T) {
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/dev/alpha", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(mockRepo(42, "dev/alpha", "Go", 33)))
	})
	defer server.Close()

	repo, err := client.GetRepository(context.Background(), "dev", "alpha")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), repo.ID)
	assert.Equal(t, "dev/alpha", repo.FullName)
	assert.Equal(t, 33, repo.Stars)
	assert.Equal(t, "Go", repo.Language)
}

func TestClient_GetRepository_NotFound(t *testing.T) {
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	defer server.Close()

	repo, err := client.GetRepository(context.Background(), "dev", "ghost")
	assert.Error(t, err)
	assert.Nil(t, repo)
}

func TestClient_CountCommits(t *testing.T) {
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/dev/alpha/commits", r.URL.Path)
		commits := []*github.RepositoryCommit{
			{SHA: github.String("a1")},
			{SHA: github.String("b2")},
			{SHA: github.String("c3")},
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(commits))
	})
	defer server.Close()

	assert.Equal(t, 3, client.CountCommits(context.Background(), "dev", "alpha"))
}

func TestClient_CountCommits_ErrorReturnsZero(t *testing.T) {
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	defer server.Close()

	assert.Equal(t, 0, client.CountCommits(context.Background(), "dev", "alpha"))
}

func TestClient_GetReadme_Placeholder(t *testing.T) {
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	// 404 时不报错，返回占位文本
	text, err := client.GetReadme(context.Background(), "dev", "ghost")
	assert.NoError(t, err)
	assert.Contains(t, text, "# ghost")
	assert.Contains(t, text, "README 파일이 없습니다")
}

func TestClient_GetReadme_Content(t *testing.T) {
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		content := &github.RepositoryContent{
			Type:     github.String("file"),
			Encoding: github.String(""),
			Content:  github.String("# Real readme"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(content)
	})
	defer server.Close()

	text, err := client.GetReadme(context.Background(), "dev", "alpha")
	assert.NoError(t, err)
	assert.Equal(t, "# Real readme", text)
}

func TestClient_HasReadme_BudgetGuard(t *testing.T) {
	called := false
	server, client := setupMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	defer server.Close()

	// 预算只剩 2 时保守返回 false，不发请求
	for client.window.Remaining() > 2 {
		client.window.Allow()
	}

	assert.False(t, client.HasReadme(context.Background(), "dev", "alpha"))
	assert.False(t, called)
}

func TestToRepository(t *testing.T) {
	item := mockRepo(99, "dev/full", "TypeScript", 42)
	item.License = &github.License{Name: github.String("MIT License")}
	item.Topics = []string{"web", "tool"}
	item.OpenIssuesCount = github.Int(7)

	repo := toRepository(item)
	assert.Equal(t, int64(99), repo.ID)
	assert.Equal(t, "dev/full", repo.FullName)
	assert.Equal(t, "MIT License", repo.License)
	assert.Equal(t, []string{"web", "tool"}, repo.Topics)
	assert.Equal(t, 7, repo.OpenIssues)
	assert.Equal(t, 200, repo.SizeKB)
	assert.Equal(t, "dev", repo.Owner())
	assert.Equal(t, "full", repo.RepoName())
}
