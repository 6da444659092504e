// Package heuristics 汇集评分引擎、简单分析器和 AI 兜底分析共用的纯函数。
// 三处调用方都委托到这里，阈值只此一份。
package heuristics

import (
	"regexp"
	"strings"
	"time"
)

// MonthsSince 距 t 过去了多少个月 (按 30 天折算)
func MonthsSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24 / 30
}

// PopularityPoints 星数得分：>=10 两分，>=3 一分
func PopularityPoints(stars int) float64 {
	switch {
	case stars >= 10:
		return 2
	case stars >= 3:
		return 1
	default:
		return 0
	}
}

// ActivityPoints 评分引擎口径：6 个月内两分，12 个月内一分
func ActivityPoints(monthsSinceUpdate float64) float64 {
	switch {
	case monthsSinceUpdate <= 6:
		return 2
	case monthsSinceUpdate <= 12:
		return 1
	default:
		return 0
	}
}

// RecentActivityPoints 简单分析器口径：3 个月内两分，6 个月内一分
func RecentActivityPoints(monthsSinceUpdate float64) float64 {
	switch {
	case monthsSinceUpdate <= 3:
		return 2
	case monthsSinceUpdate <= 6:
		return 1
	default:
		return 0
	}
}

// DocumentationPoints README 得分：超过 500 字三分，超过 200 字两分，有就一分
func DocumentationPoints(hasReadme bool, readmeLength int) float64 {
	switch {
	case hasReadme && readmeLength > 500:
		return 3
	case hasReadme && readmeLength > 200:
		return 2
	case hasReadme:
		return 1
	default:
		return 0
	}
}

var todoMarkerRe = regexp.MustCompile(`(?i)TODO|FIXME|HACK|BUG|INCOMPLETE`)

// CountTodoMarkers 统计文本里的未完成标记
func CountTodoMarkers(text string) int {
	return len(todoMarkerRe.FindAllString(text, -1))
}

// SourceDirs / ManifestFiles 结构评分识别的目录与清单文件
var (
	SourceDirs    = []string{"src", "lib", "app", "components"}
	ManifestFiles = []string{"package.json", "requirements.txt", "Cargo.toml", "pom.xml", "go.mod"}
)

// StructurePoints 目录+清单都有两分，有其一一分
func StructurePoints(hasSourceDir, hasManifest bool) float64 {
	switch {
	case hasSourceDir && hasManifest:
		return 2
	case hasSourceDir || hasManifest:
		return 1
	default:
		return 0
	}
}

// CategoryAllowList 允许的分类枚举 (AI prompt 与推断共用)
var CategoryAllowList = []string{
	"web-development", "mobile-app", "cli-tool", "api", "game",
	"data-science", "machine-learning", "devtools", "library", "prototype",
}

// categoryKeywords 分类 → 关键词表，按固定顺序匹配保证结果稳定
var categoryOrder = []string{
	"web-development", "mobile-app", "cli-tool", "api", "game",
	"data-science", "machine-learning", "devtools", "library",
}

var categoryKeywords = map[string][]string{
	"web-development":  {"web", "website", "frontend", "react", "vue", "angular"},
	"mobile-app":       {"mobile", "android", "ios", "flutter", "react-native"},
	"cli-tool":         {"cli", "command", "terminal", "tool"},
	"api":              {"api", "rest", "graphql", "server"},
	"game":             {"game", "gaming", "unity", "godot"},
	"data-science":     {"data", "analysis", "pandas", "numpy"},
	"machine-learning": {"ml", "ai", "tensorflow", "pytorch"},
	"devtools":         {"dev", "development", "build", "deploy"},
	"library":          {"library", "package", "module", "framework"},
}

// InferCategories 关键词匹配描述/README/topics，最多 3 个，匹配不到退回 prototype
func InferCategories(description, readme string, topics []string) []string {
	desc := strings.ToLower(description)
	rdme := strings.ToLower(readme)

	topicSet := make(map[string]bool, len(topics))
	for _, t := range topics {
		topicSet[strings.ToLower(t)] = true
	}

	var categories []string
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(desc, kw) || strings.Contains(rdme, kw) || topicSet[kw] {
				categories = append(categories, cat)
				break
			}
		}
	}

	if len(categories) == 0 {
		return []string{"prototype"}
	}
	if len(categories) > 3 {
		categories = categories[:3]
	}
	return categories
}

// languageTodos 语言专属的兜底 TODO 模板 (韩文文案来自线上数据格式)
var languageTodos = map[string][]string{
	"JavaScript": {
		"테스트 코드 작성 (Jest/Mocha)",
		"ESLint 설정 및 코드 품질 개선",
		"번들링 최적화 (Webpack/Vite)",
		"타입스크립트 마이그레이션 고려",
	},
	"TypeScript": {"타입 정의 완성", "테스트 코드 작성", "빌드 설정 최적화", "API 문서 자동 생성"},
	"Python":     {"requirements.txt 정리", "단위 테스트 작성 (pytest)", "코드 포맷팅 (black, flake8)", "패키지 배포 준비"},
	"Java":       {"Maven/Gradle 설정 완성", "JUnit 테스트 작성", "JavaDoc 문서화", "CI/CD 파이프라인 구축"},
	"Go":         {"go mod 의존성 정리", "테스트 커버리지 향상", "벤치마크 테스트 추가", "Docker 컨테이너화"},
	"Rust":       {"Cargo.toml 최적화", "단위 테스트 완성", "문서 테스트 추가", "성능 최적화"},
}

var genericTodos = []string{"코드 리팩토링", "테스트 코드 작성", "문서화 개선", "에러 핸들링 강화"}

// LanguageTodos 返回语言对应的 TODO 模板副本
func LanguageTodos(language string) []string {
	if todos, ok := languageTodos[language]; ok {
		return append([]string(nil), todos...)
	}
	return append([]string(nil), genericTodos...)
}
