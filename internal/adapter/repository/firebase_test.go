package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"project-prospector/internal/common"
	"project-prospector/internal/domain"
)

func setupFirebase(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *FirebaseStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	store := NewFirebaseStore(server.URL, "", common.NewLogger(""))
	return server, store
}

func TestFirebaseStore_GetProject(t *testing.T) {
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/123.json", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":    "alpha",
			"language": "Go",
			"stars":    20,
		})
	})
	defer server.Close()

	project, err := store.GetProject(context.Background(), "123")
	assert.NoError(t, err)
	assert.NotNil(t, project)
	assert.Equal(t, "123", project.ID, "경로의 id가 채워져야 함")
	assert.Equal(t, "alpha", project.Title)
}

func TestFirebaseStore_GetProject_Null(t *testing.T) {
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		// Firebase 对不存在的路径返回 200 + "null"
		w.Write([]byte("null"))
	})
	defer server.Close()

	project, err := store.GetProject(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, project)
}

func TestFirebaseStore_GetProjects(t *testing.T) {
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects.json", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"1": map[string]any{"title": "alpha"},
			"2": map[string]any{"title": "beta"},
		})
	})
	defer server.Close()

	projects, err := store.GetProjects(context.Background())
	assert.NoError(t, err)
	assert.Len(t, projects, 2)

	ids := map[string]bool{}
	for _, p := range projects {
		ids[p.ID] = true
	}
	assert.True(t, ids["1"])
	assert.True(t, ids["2"])
}

func TestFirebaseStore_SaveProject(t *testing.T) {
	var saved map[string]any
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/123.json", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&saved)
		w.Write([]byte("{}"))
	})
	defer server.Close()

	project := &domain.Project{ID: "123", Title: "alpha"}
	err := store.SaveProject(context.Background(), project)
	assert.NoError(t, err)

	assert.Equal(t, "alpha", saved["title"])
	assert.Equal(t, "system", saved["addedBy"])
	assert.NotEmpty(t, saved["updatedAt"])
}

func TestFirebaseStore_SaveProject_MissingID(t *testing.T) {
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("ID 없는 저장은 요청 자체가 없어야 함")
	})
	defer server.Close()

	err := store.SaveProject(context.Background(), &domain.Project{Title: "no-id"})
	assert.Error(t, err)
}

func TestFirebaseStore_IncrementProjectView(t *testing.T) {
	var patched map[string]int
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"title": "alpha", "views": 7})
		case http.MethodPatch:
			_ = json.NewDecoder(r.Body).Decode(&patched)
			w.Write([]byte("{}"))
		}
	})
	defer server.Close()

	err := store.IncrementProjectView(context.Background(), "123")
	assert.NoError(t, err)
	assert.Equal(t, 8, patched["views"])
}

func TestFirebaseStore_Bookmarks(t *testing.T) {
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]bool{"123": true, "456": true, "789": false})
		case r.Method == http.MethodPut:
			assert.Equal(t, "/users/user-1/bookmarks/123.json", r.URL.Path)
			w.Write([]byte("true"))
		case r.Method == http.MethodDelete:
			w.Write([]byte("null"))
		}
	})
	defer server.Close()

	assert.NoError(t, store.AddBookmark(context.Background(), "user-1", "123"))

	ids, err := store.GetUserBookmarks(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.Len(t, ids, 2, "false 값은 제외")

	assert.NoError(t, store.RemoveBookmark(context.Background(), "user-1", "123"))
}

func TestFirebaseStore_ServerError(t *testing.T) {
	attempts := 0
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := store.GetProject(context.Background(), "123")
	assert.Error(t, err)
	// 重试 2 次 → 总共 3 次请求
	assert.Equal(t, 3, attempts)
}

func TestFirebaseStore_Probe(t *testing.T) {
	server, store := setupFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.json", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("shallow"))
		w.Write([]byte("{}"))
	})
	defer server.Close()

	assert.NoError(t, store.Probe(context.Background()))
}
