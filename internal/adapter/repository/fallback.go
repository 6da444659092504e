package repository

import (
	"context"
	"sync"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
	"project-prospector/internal/port"
)

// RemoteStore 远端存储 = 项目存取 + 连接探测
type RemoteStore interface {
	port.ProjectStore
	Probe(ctx context.Context) error
}

// PreferRemoteStore 远端优先的组合存储：
// 连接正常时读写远端并同步镜像到本地；断连时降级到本地；
// 恢复连接后按 id 去重合并，远端记录优先
type PreferRemoteStore struct {
	remote RemoteStore
	local  port.ProjectStore
	log    *common.Logger

	mu     sync.RWMutex
	status port.ConnectionStatus
}

// NewPreferRemoteStore local 可以为 nil (没有镜像，只有远端)
func NewPreferRemoteStore(remote RemoteStore, local port.ProjectStore, logger *common.Logger) *PreferRemoteStore {
	return &PreferRemoteStore{
		remote: remote,
		local:  local,
		log:    logger,
		status: port.StatusUnknown,
	}
}

// ConnectionStatus 实现 port.StatusReporter
func (s *PreferRemoteStore) ConnectionStatus() port.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *PreferRemoteStore) setStatus(status port.ConnectionStatus) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.status != status
	s.status = status
	return changed
}

// CheckConnection 探测一次远端并更新状态；断连恢复时触发对账
func (s *PreferRemoteStore) CheckConnection(ctx context.Context) port.ConnectionStatus {
	prev := s.ConnectionStatus()

	if err := s.remote.Probe(ctx); err != nil {
		if s.setStatus(port.StatusDisconnected) {
			s.log.Warn("데이터베이스 연결 끊김, 로컬 저장소로 전환")
		}
		return port.StatusDisconnected
	}

	s.setStatus(port.StatusConnected)
	if prev == port.StatusDisconnected {
		s.log.Info("데이터베이스 연결 복구됨, 데이터 동기화 시작")
		if err := s.Reconcile(ctx); err != nil {
			s.log.ErrorWith("동기화 실패", err)
		}
	}
	return port.StatusConnected
}

// StartMonitor 周期性探测，直到 ctx 取消
func (s *PreferRemoteStore) StartMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		s.CheckConnection(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckConnection(ctx)
			}
		}
	}()
}

// Reconcile 断连恢复后的对账：本地独有的记录推到远端，
// 再用远端全量覆盖本地镜像 (按 id 去重，远端优先)
func (s *PreferRemoteStore) Reconcile(ctx context.Context) error {
	if s.local == nil {
		return nil
	}

	remoteProjects, err := s.remote.GetProjects(ctx)
	if err != nil {
		return err
	}

	remoteIDs := make(map[string]bool, len(remoteProjects))
	for _, p := range remoteProjects {
		remoteIDs[p.ID] = true
	}

	localProjects, err := s.local.GetProjects(ctx)
	if err != nil {
		return err
	}

	pushed := 0
	for _, p := range localProjects {
		if !remoteIDs[p.ID] {
			if err := s.remote.SaveProject(ctx, p); err != nil {
				s.log.ErrorWith("로컬 레코드 업로드 실패: "+p.ID, err)
				continue
			}
			pushed++
		}
	}

	// 远端记录镜像回本地
	for _, p := range remoteProjects {
		if err := s.local.SaveProject(ctx, p); err != nil {
			s.log.ErrorWith("미러 갱신 실패: "+p.ID, err)
		}
	}

	s.log.Success("동기화 완료: 원격 %d개, 로컬 전용 %d개 업로드", len(remoteProjects), pushed)
	return nil
}

func (s *PreferRemoteStore) useLocal() bool {
	return s.ConnectionStatus() == port.StatusDisconnected && s.local != nil
}

// markDisconnected 远端调用失败后降级
func (s *PreferRemoteStore) markDisconnected() {
	if s.setStatus(port.StatusDisconnected) {
		s.log.Warn("데이터베이스 요청 실패, 로컬 저장소로 전환")
	}
}

// GetProject 远端优先；失败时退回本地
func (s *PreferRemoteStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	if s.useLocal() {
		return s.local.GetProject(ctx, id)
	}

	project, err := s.remote.GetProject(ctx, id)
	if err != nil && s.local != nil {
		s.markDisconnected()
		return s.local.GetProject(ctx, id)
	}
	return project, err
}

// GetProjects 远端优先；失败时退回本地
func (s *PreferRemoteStore) GetProjects(ctx context.Context) ([]*domain.Project, error) {
	if s.useLocal() {
		return s.local.GetProjects(ctx)
	}

	projects, err := s.remote.GetProjects(ctx)
	if err != nil && s.local != nil {
		s.markDisconnected()
		return s.local.GetProjects(ctx)
	}
	return projects, err
}

// SaveProject 连接正常时写远端并同步镜像；断连时只写本地
func (s *PreferRemoteStore) SaveProject(ctx context.Context, project *domain.Project) error {
	if s.useLocal() {
		s.log.Warn("연결 끊김, 로컬 저장소에만 백업: %s", project.Title)
		return s.local.SaveProject(ctx, project)
	}

	if err := s.remote.SaveProject(ctx, project); err != nil {
		if s.local != nil {
			s.markDisconnected()
			return s.local.SaveProject(ctx, project)
		}
		return err
	}

	// 远端成功后顺手镜像；镜像失败不影响主流程
	if s.local != nil {
		if err := s.local.SaveProject(ctx, project); err != nil {
			s.log.ErrorWith("로컬 백업 실패", err)
		}
	}
	return nil
}

// IncrementProjectView 断连时直接丢弃 (计数非关键数据)
func (s *PreferRemoteStore) IncrementProjectView(ctx context.Context, id string) error {
	if s.useLocal() {
		return nil
	}
	return s.remote.IncrementProjectView(ctx, id)
}

// GetUserBookmarks 收藏只存远端
func (s *PreferRemoteStore) GetUserBookmarks(ctx context.Context, userID string) ([]string, error) {
	if s.useLocal() {
		return s.local.GetUserBookmarks(ctx, userID)
	}
	return s.remote.GetUserBookmarks(ctx, userID)
}

func (s *PreferRemoteStore) AddBookmark(ctx context.Context, userID, projectID string) error {
	if s.useLocal() {
		return s.local.AddBookmark(ctx, userID, projectID)
	}
	return s.remote.AddBookmark(ctx, userID, projectID)
}

func (s *PreferRemoteStore) RemoveBookmark(ctx context.Context, userID, projectID string) error {
	if s.useLocal() {
		return s.local.RemoveBookmark(ctx, userID, projectID)
	}
	return s.remote.RemoveBookmark(ctx, userID, projectID)
}

// AddInteraction 断连时丢弃 (来源系统的行为)
func (s *PreferRemoteStore) AddInteraction(ctx context.Context, in *domain.Interaction) error {
	if s.useLocal() {
		return nil
	}
	return s.remote.AddInteraction(ctx, in)
}
