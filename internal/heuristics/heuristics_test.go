package heuristics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPopularityPoints(t *testing.T) {
	tests := []struct {
		name  string
		stars int
		want  float64
	}{
		{"高星项目", 100, 2},
		{"刚好10星", 10, 2},
		{"中等星数", 5, 1},
		{"刚好3星", 3, 1},
		{"低星项目", 2, 0},
		{"零星", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PopularityPoints(tt.stars))
		})
	}
}

func TestActivityPoints(t *testing.T) {
	assert.Equal(t, 2.0, ActivityPoints(3))
	assert.Equal(t, 2.0, ActivityPoints(6))
	assert.Equal(t, 1.0, ActivityPoints(9))
	assert.Equal(t, 0.0, ActivityPoints(13))
}

func TestRecentActivityPoints(t *testing.T) {
	assert.Equal(t, 2.0, RecentActivityPoints(1))
	assert.Equal(t, 1.0, RecentActivityPoints(5))
	assert.Equal(t, 0.0, RecentActivityPoints(7))
}

func TestDocumentationPoints(t *testing.T) {
	tests := []struct {
		name      string
		hasReadme bool
		length    int
		want      float64
	}{
		{"详细README", true, 1000, 3},
		{"边界501字", true, 501, 3},
		{"中等README", true, 300, 2},
		{"简短README", true, 100, 1},
		{"无README", false, 0, 0},
		{"无README但有长度", false, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentationPoints(tt.hasReadme, tt.length))
		})
	}
}

func TestMonthsSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -60)
	assert.InDelta(t, 2.0, MonthsSince(past, now), 0.01)
}

func TestCountTodoMarkers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"无标记", "clean code here", 0},
		{"单个TODO", "// TODO: implement this", 1},
		{"混合标记", "TODO fix FIXME and HACK around the BUG", 4},
		{"大小写不敏感", "todo: fixme", 2},
		{"INCOMPLETE标记", "this is incomplete work", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountTodoMarkers(tt.text))
		})
	}
}

func TestStructurePoints(t *testing.T) {
	assert.Equal(t, 2.0, StructurePoints(true, true))
	assert.Equal(t, 1.0, StructurePoints(true, false))
	assert.Equal(t, 1.0, StructurePoints(false, true))
	assert.Equal(t, 0.0, StructurePoints(false, false))
}

func TestInferCategories(t *testing.T) {
	tests := []struct {
		name        string
		description string
		readme      string
		topics      []string
		want        []string
	}{
		{
			name:        "web项目",
			description: "A react frontend project",
			want:        []string{"web-development"},
		},
		{
			name:        "无匹配退回prototype",
			description: "something unusual",
			readme:      "nothing recognizable",
			want:        []string{"prototype"},
		},
		{
			name:        "topic匹配",
			description: "",
			topics:      []string{"flutter"},
			want:        []string{"mobile-app"},
		},
		{
			name:        "最多三个分类",
			description: "web cli api game data ml dev library",
			want:        []string{"web-development", "cli-tool", "api"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCategories(tt.description, tt.readme, tt.topics))
		})
	}
}

func TestInferCategories_Deterministic(t *testing.T) {
	first := InferCategories("web api library", "", nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, InferCategories("web api library", "", nil))
	}
}

func TestLanguageTodos(t *testing.T) {
	goTodos := LanguageTodos("Go")
	assert.Len(t, goTodos, 4)
	assert.True(t, strings.Contains(goTodos[0], "go mod"))

	// 未知语言退回通用模板
	unknown := LanguageTodos("COBOL")
	assert.Equal(t, genericTodos, unknown)

	// 返回的是副本，改动不污染模板
	goTodos[0] = "changed"
	assert.NotEqual(t, "changed", LanguageTodos("Go")[0])
}
