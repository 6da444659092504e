package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/port"
)

const (
	koreanMarker  = "---한국어---"
	englishMarker = "---영어---"
)

// UpdaterStatus 描述更新器的运行快照
type UpdaterStatus struct {
	Running        bool      `json:"isRunning"`
	Scheduled      bool      `json:"isScheduled"`
	LastRun        time.Time `json:"lastRun,omitempty"`
	ProcessedTotal int       `json:"processedTotal"`
	LastProject    string    `json:"lastProject,omitempty"`
	LastError      string    `json:"lastError,omitempty"`
}

// DescriptionUpdater 定时给缺双语描述的项目补一份。
// 每 5 分钟只处理一个项目，把 AI 调用摊平到全天
type DescriptionUpdater struct {
	store port.ProjectStore
	text  port.TextGenerator
	log   *common.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu        sync.Mutex
	running   bool
	scheduled bool
	status    UpdaterStatus
}

// NewDescriptionUpdater 创建描述更新器
func NewDescriptionUpdater(store port.ProjectStore, text port.TextGenerator, logger *common.Logger) *DescriptionUpdater {
	return &DescriptionUpdater{
		store: store,
		text:  text,
		log:   logger,
		cron:  cron.New(),
	}
}

// Start 启动定时任务，重复调用无副作用
func (u *DescriptionUpdater) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scheduled {
		return nil
	}

	id, err := u.cron.AddFunc("@every 5m", func() {
		u.RunOnce(context.Background())
	})
	if err != nil {
		return common.WrapError(common.ErrCodeInternal, "설명 업데이터 스케줄 등록 실패", err)
	}
	u.entryID = id
	u.cron.Start()
	u.scheduled = true
	u.status.Scheduled = true
	u.log.Success("📝 설명 업데이터 시작: 5분 간격으로 실행됩니다")
	return nil
}

// Stop 停掉定时任务
func (u *DescriptionUpdater) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.scheduled {
		return
	}
	u.cron.Remove(u.entryID)
	u.cron.Stop()
	u.scheduled = false
	u.status.Scheduled = false
	u.log.Info("설명 업데이터 중지됨")
}

// Status 当前快照
func (u *DescriptionUpdater) Status() UpdaterStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	status := u.status
	status.Running = u.running
	status.Scheduled = u.scheduled
	return status
}

// RunOnce 处理一个缺描述的项目。上一轮没跑完直接跳过本轮
func (u *DescriptionUpdater) RunOnce(ctx context.Context) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		u.log.Warn("설명 업데이트가 이미 실행 중입니다. 이번 주기는 건너뜁니다.")
		return
	}
	u.running = true
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.running = false
		u.status.LastRun = time.Now()
		u.mu.Unlock()
	}()

	project, err := u.nextPending(ctx)
	if err != nil {
		u.log.ErrorWith("설명 업데이트 대상 조회 실패", err)
		u.setLastError(err)
		return
	}
	if project == nil {
		u.log.Info("업데이트할 프로젝트가 없습니다")
		return
	}

	u.log.Info("설명 생성 중: %s", project.Title)
	ko, en := u.generateDescriptions(ctx, project)
	if ko == "" && en == "" {
		u.log.Warn("설명 생성 실패: %s", project.Title)
		return
	}

	if ko != "" {
		project.KoreanDescription = ko
	}
	if en != "" {
		project.EnglishDescription = en
	}
	project.IsDescriptionUpdated = true
	project.LastDescriptionUpdate = time.Now().UTC().Format(time.RFC3339)

	if err := u.store.SaveProject(ctx, project); err != nil {
		u.log.ErrorWith("설명 저장 실패: "+project.Title, err)
		u.setLastError(err)
		return
	}

	u.mu.Lock()
	u.status.ProcessedTotal++
	u.status.LastProject = project.Title
	u.status.LastError = ""
	u.mu.Unlock()
	u.log.Success("설명 업데이트 완료: %s", project.Title)
}

func (u *DescriptionUpdater) setLastError(err error) {
	u.mu.Lock()
	u.status.LastError = err.Error()
	u.mu.Unlock()
}

// nextPending 找第一个缺任一语言描述的项目
func (u *DescriptionUpdater) nextPending(ctx context.Context) (*domain.Project, error) {
	projects, err := u.store.GetProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if !p.IsDescriptionUpdated {
			return p, nil
		}
	}
	return nil, nil
}

// generateDescriptions 一次生成韩英双语，按标记拆分
func (u *DescriptionUpdater) generateDescriptions(ctx context.Context, project *domain.Project) (ko, en string) {
	prompt := buildDescriptionPrompt(project)
	text := u.text.GenerateText(ctx, prompt)
	if text == "" {
		return "", ""
	}
	return parseBilingual(text)
}

func buildDescriptionPrompt(project *domain.Project) string {
	var sb strings.Builder
	sb.WriteString("다음 GitHub 프로젝트에 대한 소개 문구를 작성해주세요.\n\n")
	sb.WriteString("프로젝트: " + project.Title + "\n")
	sb.WriteString("설명: " + project.Description + "\n")
	sb.WriteString("언어: " + project.Language + "\n")
	if project.ReadmeSummary != "" {
		sb.WriteString("요약: " + project.ReadmeSummary + "\n")
	}
	sb.WriteString("\n한국어와 영어로 각각 2-3문장씩 작성하고, 아래 형식을 정확히 지켜주세요:\n\n")
	sb.WriteString(koreanMarker + "\n(한국어 설명)\n\n")
	sb.WriteString(englishMarker + "\n(English description)\n")
	return sb.String()
}

// parseBilingual 按 ---한국어--- / ---영어--- 标记切出两段。
// 标记缺失时整段文本归韩语
func parseBilingual(text string) (ko, en string) {
	koIdx := strings.Index(text, koreanMarker)
	enIdx := strings.Index(text, englishMarker)

	if koIdx < 0 && enIdx < 0 {
		return strings.TrimSpace(text), ""
	}
	if koIdx >= 0 {
		start := koIdx + len(koreanMarker)
		end := len(text)
		if enIdx > koIdx {
			end = enIdx
		}
		ko = strings.TrimSpace(text[start:end])
	}
	if enIdx >= 0 {
		start := enIdx + len(englishMarker)
		end := len(text)
		if koIdx > enIdx {
			end = koIdx
		}
		en = strings.TrimSpace(text[start:end])
	}
	return ko, en
}
