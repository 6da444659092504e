package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
)

// FirebaseStore Realtime Database 的 REST 适配器。
// 路径约定：projects/{id}, users/{uid}/bookmarks/{pid}, interactions
type FirebaseStore struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	log        *common.Logger
}

// NewFirebaseStore baseURL 形如 https://xxx.firebaseio.com
func NewFirebaseStore(baseURL, authToken string, logger *common.Logger) *FirebaseStore {
	return &FirebaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logger,
	}
}

func (f *FirebaseStore) endpoint(path string) string {
	u := fmt.Sprintf("%s/%s.json", f.baseURL, path)
	if f.authToken != "" {
		u += "?auth=" + url.QueryEscape(f.authToken)
	}
	return u
}

// doJSON 发一次请求并把响应解析进 out (out 为 nil 时丢弃响应体)。
// Firebase 对不存在的路径返回 200 + "null"，由调用方识别
func (f *FirebaseStore) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return common.WrapError(common.ErrCodeInternal, "요청 직렬화 실패", err)
		}
		payload = bytes.NewReader(data)
	}

	return common.Do(ctx, func() error {
		var reqBody io.Reader
		if payload != nil {
			if seeker, ok := payload.(io.Seeker); ok {
				seeker.Seek(0, io.SeekStart)
			}
			reqBody = payload
		}

		req, err := http.NewRequestWithContext(ctx, method, f.endpoint(path), reqBody)
		if err != nil {
			return common.WrapError(common.ErrCodeStore, "요청 생성 실패", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return common.WrapError(common.ErrCodeStore, "Firebase 요청 실패", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return common.NewError(common.ErrCodeStore, fmt.Sprintf("Firebase 응답 오류: %d (%s %s)", resp.StatusCode, method, path))
		}

		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(500*time.Millisecond),
	)
}

// Probe 连接探测：shallow 读根节点
func (f *FirebaseStore) Probe(ctx context.Context) error {
	u := fmt.Sprintf("%s/.json?shallow=true", f.baseURL)
	if f.authToken != "" {
		u += "&auth=" + url.QueryEscape(f.authToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return common.WrapError(common.ErrCodeStore, "요청 생성 실패", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return common.WrapError(common.ErrCodeStore, "Firebase 연결 확인 실패", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return common.NewError(common.ErrCodeStore, fmt.Sprintf("Firebase 연결 확인 실패: %d", resp.StatusCode))
	}
	return nil
}

// GetProject 按 id 读取；不存在时返回 (nil, nil)
func (f *FirebaseStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var raw json.RawMessage
	if err := f.doJSON(ctx, http.MethodGet, "projects/"+id, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var project domain.Project
	if err := json.Unmarshal(raw, &project); err != nil {
		return nil, common.WrapError(common.ErrCodeStore, "프로젝트 파싱 실패", err)
	}
	project.ID = id
	return &project, nil
}

// GetProjects 读取全部项目
func (f *FirebaseStore) GetProjects(ctx context.Context) ([]*domain.Project, error) {
	var raw map[string]json.RawMessage
	if err := f.doJSON(ctx, http.MethodGet, "projects", nil, &raw); err != nil {
		return nil, err
	}

	projects := make([]*domain.Project, 0, len(raw))
	for id, data := range raw {
		var project domain.Project
		if err := json.Unmarshal(data, &project); err != nil {
			f.log.Warn("손상된 프로젝트 데이터 건너뜀: %s", id)
			continue
		}
		project.ID = id
		projects = append(projects, &project)
	}
	return projects, nil
}

// SaveProject 整体覆盖写入 (last-write-wins)
func (f *FirebaseStore) SaveProject(ctx context.Context, project *domain.Project) error {
	if project.ID == "" {
		return common.NewError(common.ErrCodeInvalidInput, "프로젝트 ID가 없습니다")
	}
	project.Normalize()
	project.SavedAt = time.Now().UTC().Format(time.RFC3339)
	if project.AddedBy == "" {
		project.AddedBy = "system"
	}

	if err := f.doJSON(ctx, http.MethodPut, "projects/"+project.ID, project, nil); err != nil {
		return err
	}
	f.log.Success("프로젝트 저장 완료: %s", project.Title)
	return nil
}

// IncrementProjectView 读-改-写，无事务；并发访客按 last-write-wins 处理
func (f *FirebaseStore) IncrementProjectView(ctx context.Context, id string) error {
	project, err := f.GetProject(ctx, id)
	if err != nil || project == nil {
		return err
	}

	patch := map[string]int{"views": project.Views + 1}
	return f.doJSON(ctx, http.MethodPatch, "projects/"+id, patch, nil)
}

// GetUserBookmarks 用户收藏的项目 id 列表
func (f *FirebaseStore) GetUserBookmarks(ctx context.Context, userID string) ([]string, error) {
	var raw map[string]bool
	if err := f.doJSON(ctx, http.MethodGet, "users/"+userID+"/bookmarks", nil, &raw); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for id, ok := range raw {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AddBookmark 幂等：重复添加仍是一条
func (f *FirebaseStore) AddBookmark(ctx context.Context, userID, projectID string) error {
	return f.doJSON(ctx, http.MethodPut, "users/"+userID+"/bookmarks/"+projectID, true, nil)
}

// RemoveBookmark 幂等：删除不存在的收藏不算错误
func (f *FirebaseStore) RemoveBookmark(ctx context.Context, userID, projectID string) error {
	return f.doJSON(ctx, http.MethodDelete, "users/"+userID+"/bookmarks/"+projectID, nil, nil)
}

// AddInteraction 追加一条交互记录 (push 语义)
func (f *FirebaseStore) AddInteraction(ctx context.Context, in *domain.Interaction) error {
	if in.Timestamp == "" {
		in.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return f.doJSON(ctx, http.MethodPost, "interactions", in, nil)
}
