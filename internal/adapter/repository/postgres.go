package repository

import (
	"context"
	"fmt"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mirrorLimit 本地镜像最多保留的项目数，超出后淘汰最旧的
const mirrorLimit = 1000

// bookmarkRecord 收藏关系表
type bookmarkRecord struct {
	UserID    string `gorm:"primaryKey"`
	ProjectID string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (bookmarkRecord) TableName() string { return "bookmarks" }

// interactionRecord 交互流水表
type interactionRecord struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	ProjectID string
	UserID    string
	Type      string
	Timestamp string
}

func (interactionRecord) TableName() string { return "interactions" }

// PostgresStore 本地镜像存储，实现 port.ProjectStore。
// 既可以单独使用，也作为远端不可达时的降级存储
type PostgresStore struct {
	db  *gorm.DB
	log *common.Logger
}

// NewPostgresStore 连接数据库并自动迁移表结构
func NewPostgresStore(dsn string, logger *common.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := db.AutoMigrate(&domain.Project{}, &bookmarkRecord{}, &interactionRecord{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return &PostgresStore{db: db, log: logger}, nil
}

// GetProject 按 id 读取；不存在时返回 (nil, nil)
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "프로젝트 조회 실패", err)
	}
	return &project, nil
}

// GetProjects 按保存时间倒序读取全部
func (s *PostgresStore) GetProjects(ctx context.Context) ([]*domain.Project, error) {
	var projects []*domain.Project
	err := s.db.WithContext(ctx).Order("saved_at desc").Find(&projects).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "프로젝트 목록 조회 실패", err)
	}
	return projects, nil
}

// SaveProject Upsert 后裁剪镜像到上限
func (s *PostgresStore) SaveProject(ctx context.Context, project *domain.Project) error {
	if project.ID == "" {
		return common.NewError(common.ErrCodeInvalidInput, "프로젝트 ID가 없습니다")
	}
	project.Normalize()
	if project.SavedAt == "" {
		project.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.db.WithContext(ctx).Save(project).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "프로젝트 저장 실패", err)
	}

	return s.prune(ctx)
}

// prune 淘汰最旧记录，镜像只保留最近 mirrorLimit 条
func (s *PostgresStore) prune(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Project{}).Count(&count).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "프로젝트 수 조회 실패", err)
	}
	if count <= mirrorLimit {
		return nil
	}

	excess := count - mirrorLimit
	err := s.db.WithContext(ctx).Exec(
		`DELETE FROM projects WHERE id IN (SELECT id FROM projects ORDER BY saved_at ASC LIMIT ?)`,
		excess,
	).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "미러 정리 실패", err)
	}
	return nil
}

// IncrementProjectView 原子自增
func (s *PostgresStore) IncrementProjectView(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&domain.Project{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "조회수 증가 실패", err)
	}
	return nil
}

// GetUserBookmarks 用户收藏的项目 id 列表
func (s *PostgresStore) GetUserBookmarks(ctx context.Context, userID string) ([]string, error) {
	var records []bookmarkRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&records).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "북마크 목록 조회 실패", err)
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ProjectID)
	}
	return ids, nil
}

// AddBookmark 幂等：冲突时什么都不做
func (s *PostgresStore) AddBookmark(ctx context.Context, userID, projectID string) error {
	record := bookmarkRecord{UserID: userID, ProjectID: projectID, CreatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "북마크 추가 실패", err)
	}
	return nil
}

// RemoveBookmark 幂等：删除不存在的收藏不算错误
func (s *PostgresStore) RemoveBookmark(ctx context.Context, userID, projectID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Delete(&bookmarkRecord{}).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "북마크 제거 실패", err)
	}
	return nil
}

// AddInteraction 追加交互记录
func (s *PostgresStore) AddInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.Timestamp == "" {
		in.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	record := interactionRecord{
		ProjectID: in.ProjectID,
		UserID:    in.UserID,
		Type:      in.Type,
		Timestamp: in.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "상호작용 기록 실패", err)
	}
	return nil
}
