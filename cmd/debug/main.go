package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"project-prospector/internal/adapter/github"
	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/scoring"
)

func main() {
	repoFlag := flag.String("repo", "", "owner/name 형식. 지정하면 해당 저장소만 상세 점검")
	flag.Parse()

	// 获取环境变量
	githubToken := os.Getenv("GITHUB_TOKEN")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := common.NewLogger("")

	// 初始化组件
	client := github.NewClient(githubToken, logger)
	engine := scoring.NewEngine(logger)

	if *repoFlag != "" {
		inspectRepository(ctx, client, engine, *repoFlag)
		return
	}

	fmt.Println("🔍 디버그 모드: 발견 → 점수 계산 파이프라인 테스트")

	// 1. 发现候选项目
	fmt.Println("📥 GitHub에서 미완성 프로젝트 검색 중...")
	repos, err := client.FindUnfinishedProjects(ctx)
	if err != nil {
		log.Fatalf("❌ 검색 실패: %v", err)
	}
	fmt.Printf("✅ %d개 프로젝트 발견\n", len(repos))

	if len(repos) == 0 {
		fmt.Println("❌ 발견된 프로젝트가 없습니다")
		return
	}

	// 2. 批量评分
	fmt.Println("🧮 점수 계산 중...")
	scores, err := engine.BatchScore(ctx, repos)
	if err != nil {
		log.Printf("⚠️ 점수 계산 중 오류: %v", err)
	}

	// 3. 前 5 个的详细分解
	fmt.Printf("📊 상위 %d개 프로젝트 상세:\n", min(5, len(repos)))
	for i, repo := range repos {
		if i >= 5 {
			break
		}
		result, ok := scores[repo.FullName]
		if !ok {
			continue
		}
		fmt.Printf("\n  %s (⭐%d, %s)\n", repo.FullName, repo.Stars, repo.Language)
		printBreakdown(result.Score, result.Breakdown, result.Reasoning)
	}

	fmt.Println("\n✅ 디버그 실행 완료")
}

// inspectRepository 对单个仓库做全量点检：真实元数据 + README 全文 + 真实提交数
func inspectRepository(ctx context.Context, client *github.Client, engine *scoring.Engine, full string) {
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		log.Fatalf("❌ -repo 는 owner/name 형식이어야 합니다: %s", full)
	}
	owner, name := parts[0], parts[1]

	fmt.Printf("🔍 단일 저장소 점검: %s/%s\n", owner, name)

	repo, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		log.Fatalf("❌ 저장소 조회 실패: %v", err)
	}

	readme, err := client.GetReadme(ctx, owner, name)
	if err != nil {
		log.Printf("⚠️ README 조회 실패: %v", err)
	}
	commits := client.CountCommits(ctx, owner, name)

	fmt.Printf("  ⭐%d  🍴%d  언어: %s  커밋(첫 페이지): %d\n",
		repo.Stars, repo.Forks, repo.Language, commits)
	fmt.Printf("  README 길이: %d자\n", len(readme))

	hasSourceDir := repo.SizeKB > 0
	hasManifest := repo.Language != ""
	result := engine.ScoreWithReadme(repo, readme, hasSourceDir, hasManifest)
	printBreakdown(result.Score, result.Breakdown, result.Reasoning)

	fmt.Println("\n✅ 점검 완료")
}

func printBreakdown(score float64, b domain.ScoreBreakdown, reasoning []string) {
	fmt.Printf("    총점: %.1f/12\n", score)
	fmt.Printf("    분해: commits=%.1f popularity=%.1f docs=%.1f structure=%.1f activity=%.1f potential=%.1f\n",
		b.Commits, b.Popularity, b.Documentation,
		b.Structure, b.Activity, b.Potential)
	for _, reason := range reasoning {
		fmt.Printf("    - %s\n", reason)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
