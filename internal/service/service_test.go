package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/repository"
	"music-copilot-go/pkg/tasks"
)

type fakeStore struct {
	objects map[string]string
	removed []string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}}
}

func (s *fakeStore) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[objectName] = string(b)
	return nil
}

func (s *fakeStore) RemoveObject(ctx context.Context, objectName string) error {
	s.removed = append(s.removed, objectName)
	delete(s.objects, objectName)
	return nil
}

func (s *fakeStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.local/" + objectName, nil
}

func seedConversation(t *testing.T, repo repository.ConversationRepository) string {
	t.Helper()
	ctx := context.Background()
	id, err := repo.CreateConversation(ctx, "新歌宣推")
	require.NoError(t, err)

	user, err := model.NewMessage(id, model.RoleUser, "帮我推歌", nil, nil, nil)
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, user)
	require.NoError(t, err)

	card := model.NewCard(model.CardSongRecommend, "🎵 推歌建议", map[string]any{"songs": []any{}})
	assistant, err := model.NewMessage(id, model.RoleAssistant, "推荐主推《夜航》", []model.Card{card}, []string{"什么时候发？"}, nil)
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, assistant)
	require.NoError(t, err)
	return id
}

func TestConversationService_GetAndMessages(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryConversationRepository()
	id := seedConversation(t, repo)
	svc := NewConversationService(repo, nil)

	conv, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "新歌宣推", conv.Title)

	views, err := svc.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Len(t, views[1].Cards, 1)
	assert.Equal(t, []string{"什么时候发？"}, views[1].FollowUps)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)
	_, err = svc.Messages(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)

	require.NoError(t, svc.Delete(ctx, id))
	assert.ErrorIs(t, svc.Delete(ctx, id), repository.ErrConversationNotFound)
}

func TestConversationService_Export(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryConversationRepository()
	id := seedConversation(t, repo)

	_, err := NewConversationService(repo, nil).Export(ctx, id)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	store := newFakeStore()
	svc := NewConversationService(repo, store).(*conversationService)
	fixed := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Export(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "exports/"+id+"/20260301083000.md", res.ObjectName)
	assert.Equal(t, "https://minio.local/"+res.ObjectName, res.URL)
	assert.Equal(t, fixed.Add(ExportURLExpiry), res.ExpiresAt)

	body := store.objects[res.ObjectName]
	assert.True(t, strings.HasPrefix(body, "# 新歌宣推\n"))
	assert.Contains(t, body, "帮我推歌")
	assert.Contains(t, body, "> 卡片：🎵 推歌建议")
	assert.Contains(t, body, "- 什么时候发？")

	_, err = svc.Export(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrConversationNotFound)
}

func TestRenderTranscript_SkipsToolMessages(t *testing.T) {
	conv := &model.Conversation{ID: "c1", Title: "t"}
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "问"},
		{Role: model.RoleTool, Content: "{\"raw\":1}"},
		{Role: model.RoleAssistant, Content: "答"},
	}
	out := RenderTranscript(conv, msgs)
	assert.Contains(t, out, "🙋 用户")
	assert.Contains(t, out, "🤖 助手")
	assert.NotContains(t, out, "raw")
}

type fakeKnowledgeRepo struct {
	docs map[string]*model.KnowledgeDocument
}

func newFakeKnowledgeRepo() *fakeKnowledgeRepo {
	return &fakeKnowledgeRepo{docs: map[string]*model.KnowledgeDocument{}}
}

func (r *fakeKnowledgeRepo) CreateDocument(ctx context.Context, doc *model.KnowledgeDocument) error {
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *fakeKnowledgeRepo) FindDocument(ctx context.Context, id string) (*model.KnowledgeDocument, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeKnowledgeRepo) ListDocuments(ctx context.Context) ([]model.KnowledgeDocument, error) {
	out := make([]model.KnowledgeDocument, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeKnowledgeRepo) UpdateStatus(ctx context.Context, id, status string, chunkCount int, lastError string) error {
	doc, ok := r.docs[id]
	if !ok {
		return repository.ErrDocumentNotFound
	}
	doc.Status, doc.ChunkCount, doc.LastError = status, chunkCount, lastError
	return nil
}

func (r *fakeKnowledgeRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []model.KnowledgeChunk) error {
	return nil
}

func (r *fakeKnowledgeRepo) DeleteDocument(ctx context.Context, id string) error {
	if _, ok := r.docs[id]; !ok {
		return repository.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

type fakeIndex struct{ deleted []string }

func (f *fakeIndex) DeleteDocument(ctx context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func TestValidateKnowledgeFile(t *testing.T) {
	assert.NoError(t, ValidateKnowledgeFile("宣推手册.md", 10))
	assert.NoError(t, ValidateKnowledgeFile("合同.PDF", 10))
	assert.ErrorIs(t, ValidateKnowledgeFile("demo.mp3", 10), ErrUnsupportedFile)
	assert.ErrorIs(t, ValidateKnowledgeFile("a.txt", 0), ErrUnsupportedFile)
	assert.ErrorIs(t, ValidateKnowledgeFile("a.txt", MaxKnowledgeFileSize+1), ErrUnsupportedFile)
}

func TestKnowledgeService_UploadAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newFakeKnowledgeRepo()
	store := newFakeStore()
	index := &fakeIndex{}
	var published []tasks.KnowledgeIngestTask
	publisher := TaskPublisherFunc(func(ctx context.Context, task tasks.KnowledgeIngestTask) error {
		published = append(published, task)
		return nil
	})
	svc := NewKnowledgeService(repo, store, publisher, index)

	content := "# 宣推\n\n发布前一周预热。"
	doc, err := svc.Upload(ctx, KnowledgeUpload{
		FileName:    "../../guide.md",
		ContentType: "text/markdown",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
	})
	require.NoError(t, err)
	assert.Equal(t, "guide.md", doc.FileName)
	assert.Equal(t, model.DocumentPending, doc.Status)
	assert.Equal(t, "knowledge/"+doc.ID+"/guide.md", doc.ObjectName)
	assert.Equal(t, content, store.objects[doc.ObjectName])
	require.Len(t, published, 1)
	assert.Equal(t, tasks.KnowledgeIngestTask{DocumentID: doc.ID, ObjectName: doc.ObjectName, FileName: "guide.md"}, published[0])

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	assert.Equal(t, []string{doc.ID}, index.deleted)
	assert.Equal(t, []string{doc.ObjectName}, store.removed)
	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), repository.ErrDocumentNotFound)
}

func TestKnowledgeService_UploadFailures(t *testing.T) {
	ctx := context.Background()
	repo := newFakeKnowledgeRepo()
	store := newFakeStore()
	failing := TaskPublisherFunc(func(ctx context.Context, task tasks.KnowledgeIngestTask) error {
		return errors.New("broker down")
	})
	svc := NewKnowledgeService(repo, store, failing, &fakeIndex{})

	_, err := svc.Upload(ctx, KnowledgeUpload{FileName: "song.wav", Size: 10, Reader: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.Empty(t, store.objects)

	_, err = svc.Upload(ctx, KnowledgeUpload{FileName: "a.txt", Size: 1, Reader: strings.NewReader("x")})
	assert.ErrorContains(t, err, "broker down")
	require.Len(t, repo.docs, 1)
	for _, d := range repo.docs {
		assert.Equal(t, model.DocumentFailed, d.Status)
	}

	store.putErr = errors.New("bucket missing")
	_, err = svc.Upload(ctx, KnowledgeUpload{FileName: "b.txt", Size: 1, Reader: strings.NewReader("x")})
	assert.ErrorContains(t, err, "bucket missing")
	assert.Len(t, repo.docs, 1)
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in, normalized, phrase string
	}{
		{"", "", ""},
		{"请问宣推节奏怎么安排？", "宣推节奏 安排", "宣推节奏 安排"},
		{"TikTok 是什么", "tiktok", "tiktok"},
		{"？？", "？？", ""},
	}
	for _, tt := range tests {
		n, p := normalizeQuery(tt.in)
		assert.Equal(t, tt.normalized, n, tt.in)
		assert.Equal(t, tt.phrase, p, tt.in)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	q := buildSearchQuery("宣推", "", nil, 3)
	assert.Equal(t, 3, q["size"])
	assert.NotContains(t, q, "knn")
	should := q["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Len(t, should, 1)

	q = buildSearchQuery("宣推", "宣推", []float32{0.1, 0.2}, 5)
	knn := q["knn"].(map[string]any)
	assert.Equal(t, 5, knn["k"])
	assert.Equal(t, 50, knn["num_candidates"])
	should = q["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Len(t, should, 2)
}

func TestSearchService_Search(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/knowledge/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_score":2.5,"_source":{"document_id":"d1","file_name":"guide.md","heading":"预热","text_content":"发布前一周预热。"}},
			{"_score":1.0,"_source":{"document_id":"d2","file_name":"faq.txt","text_content":"版权问题"}}
		]}}`)
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	svc := NewSearchService(es, "knowledge", nil)

	hits, err := svc.Search(context.Background(), "怎么预热", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, model.KnowledgeHit{DocumentID: "d1", Title: "guide.md · 预热", Content: "发布前一周预热。", Score: 2.5}, hits[0])
	assert.Equal(t, "faq.txt", hits[1].Title)
	assert.EqualValues(t, 3, gotBody["size"])
	assert.NotContains(t, gotBody, "knn")
}
