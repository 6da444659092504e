package analyzer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
)

func newTestAnalyzer() *SimpleAnalyzer {
	a := NewSimpleAnalyzer(common.NewLogger(""))
	a.SetNowFunc(func() time.Time {
		return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	})
	return a
}

func sampleRepo() *domain.Repository {
	return &domain.Repository{
		ID:          1,
		Name:        "sample",
		FullName:    "dev/sample",
		Description: "A web frontend project",
		Language:    "TypeScript",
		Stars:       15,
		License:     "MIT",
		OpenIssues:  2,
		UpdatedAt:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAnalyzeProject_TodoCap(t *testing.T) {
	a := newTestAnalyzer()

	// README 缺全部三个章节 → 3 个 README TODO + 4 个语言 TODO + 标记 TODO
	readme := "TODO TODO TODO nothing else here"
	analysis := a.AnalyzeProject(context.Background(), sampleRepo(), readme)

	assert.LessOrEqual(t, len(analysis.Todos), 8)
	assert.NotEmpty(t, analysis.Todos)
}

func TestAnalyzeProject_ReadmeSections(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name         string
		readme       string
		wantTodo     string
		wantMissing  bool
	}{
		{
			name:        "有安装指南时不出对应TODO",
			readme:      "## Install\nnpm install",
			wantTodo:    "설치 가이드 작성",
			wantMissing: false,
		},
		{
			name:        "缺安装指南时出TODO",
			readme:      "just a readme",
			wantTodo:    "설치 가이드 작성",
			wantMissing: true,
		},
		{
			name:        "韩文章节也能识别",
			readme:      "## 설치\n## 사용법\n## 기능",
			wantTodo:    "사용법 예제 추가",
			wantMissing: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := a.AnalyzeProject(context.Background(), sampleRepo(), tt.readme)
			found := false
			for _, todo := range analysis.Todos {
				if todo == tt.wantTodo {
					found = true
				}
			}
			assert.Equal(t, tt.wantMissing, found)
		})
	}
}

func TestAnalyzeProject_TodoMarkers(t *testing.T) {
	a := newTestAnalyzer()
	readme := "TODO: one\nFIXME: two\nHACK three"
	analysis := a.AnalyzeProject(context.Background(), sampleRepo(), readme)

	found := false
	for _, todo := range analysis.Todos {
		if strings.Contains(todo, "3개의 TODO") {
			found = true
		}
	}
	assert.True(t, found, "标记计数应出现在 TODO 里")
}

func TestAnalyzeProject_Categories(t *testing.T) {
	a := newTestAnalyzer()
	analysis := a.AnalyzeProject(context.Background(), sampleRepo(), "")

	assert.NotEmpty(t, analysis.Categories)
	assert.LessOrEqual(t, len(analysis.Categories), 3)
	assert.Contains(t, analysis.Categories, "web-development")
}

func TestAnalyzeProject_UnknownLanguageFallback(t *testing.T) {
	a := newTestAnalyzer()
	repo := sampleRepo()
	repo.Description = "xyzzy"
	repo.Language = ""
	analysis := a.AnalyzeProject(context.Background(), repo, "")

	assert.Equal(t, []string{"prototype"}, analysis.Categories)
	assert.True(t, strings.HasPrefix(analysis.Summary, "Unknown로 개발된"))
}

func TestGenerateDescription_Tiers(t *testing.T) {
	a := newTestAnalyzer()
	repo := sampleRepo()

	high := a.generateDescription(repo, 9)
	mid := a.generateDescription(repo, 6)
	low := a.generateDescription(repo, 2)

	assert.Contains(t, high, "완성도가 높은")
	assert.Contains(t, mid, "기본 구조가 갖춰진")
	assert.Contains(t, low, "초기 단계")
}

func TestAnalyzeRepository_Scoring(t *testing.T) {
	a := newTestAnalyzer()

	// 高星 + 近期活动 + 许可证 + 开放 issue = 2+2+1+1
	rp := a.analyzeRepository(sampleRepo())
	assert.Equal(t, 6.0, rp.score)

	// 全部落空
	cold := &domain.Repository{
		UpdatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	rp = a.analyzeRepository(cold)
	assert.Equal(t, 0.0, rp.score)
	assert.Empty(t, rp.reasoning)
}
