package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/repository"
	"music-copilot-go/pkg/log"
)

// ExportURLExpiry 是会话导出下载地址的有效期。
const ExportURLExpiry = time.Hour

// ErrStorageUnavailable 表示未配置对象存储。
var ErrStorageUnavailable = errors.New("object storage is not configured")

// ExportResult 是一次会话导出的结果。
type ExportResult struct {
	ObjectName string    `json:"object_name"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ConversationService 定义了会话管理的业务逻辑。
type ConversationService interface {
	List(ctx context.Context, limit int) ([]model.ConversationSummary, error)
	// Get 会话不存在时返回 repository.ErrConversationNotFound。
	Get(ctx context.Context, id string) (*model.Conversation, error)
	Messages(ctx context.Context, id string) ([]model.MessageView, error)
	Delete(ctx context.Context, id string) error
	// Export 把会话渲染为 markdown 上传到对象存储，返回临时下载地址。
	Export(ctx context.Context, id string) (*ExportResult, error)
}

type conversationService struct {
	repo  repository.ConversationRepository
	store ObjectStore
	now   func() time.Time
}

// NewConversationService 创建一个新的 ConversationService，store 为 nil 时不支持导出。
func NewConversationService(repo repository.ConversationRepository, store ObjectStore) ConversationService {
	return &conversationService{repo: repo, store: store, now: time.Now}
}

func (s *conversationService) List(ctx context.Context, limit int) ([]model.ConversationSummary, error) {
	return s.repo.ListConversations(ctx, limit)
}

func (s *conversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, repository.ErrConversationNotFound
	}
	return conv, nil
}

func (s *conversationService) Messages(ctx context.Context, id string) ([]model.MessageView, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.repo.GetMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	views := make([]model.MessageView, 0, len(msgs))
	for i := range msgs {
		v, err := msgs[i].View()
		if err != nil {
			return nil, fmt.Errorf("消息 %s 解析失败: %w", msgs[i].ID, err)
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *conversationService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteConversation(ctx, id)
}

func (s *conversationService) Export(ctx context.Context, id string) (*ExportResult, error) {
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.GetMessages(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	now := s.now()
	content := []byte(RenderTranscript(conv, msgs))
	objectName := fmt.Sprintf("exports/%s/%s.md", conv.ID, now.Format("20060102150405"))
	if err := s.store.PutObject(ctx, objectName, bytes.NewReader(content), int64(len(content)), "text/markdown; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("上传导出文件失败: %w", err)
	}
	url, err := s.store.PresignedURL(ctx, objectName, ExportURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("生成下载地址失败: %w", err)
	}
	log.Infof("[ConversationService] 会话 %s 已导出到 %s", conv.ID, objectName)
	return &ExportResult{ObjectName: objectName, URL: url, ExpiresAt: now.Add(ExportURLExpiry)}, nil
}

// RenderTranscript 把会话渲染为 markdown 文本，卡片只保留标题，追问建议以列表列出。
func RenderTranscript(conv *model.Conversation, msgs []model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	fmt.Fprintf(&b, "- 会话 ID：%s\n- 创建时间：%s\n\n", conv.ID, model.LocalTime(conv.CreatedAt))

	for i := range msgs {
		m := &msgs[i]
		speaker := "🙋 用户"
		if m.Role == model.RoleAssistant {
			speaker = "🤖 助手"
		} else if m.Role != model.RoleUser {
			continue
		}
		fmt.Fprintf(&b, "## %s · %s\n\n", speaker, model.LocalTime(m.CreatedAt))
		if content := strings.TrimSpace(m.Content); content != "" {
			b.WriteString(content)
			b.WriteString("\n\n")
		}
		if cards, err := m.DecodeCards(); err == nil && len(cards) > 0 {
			for _, c := range cards {
				fmt.Fprintf(&b, "> 卡片：%s\n", c.Title)
			}
			b.WriteString("\n")
		}
		if followUps, err := m.DecodeFollowUps(); err == nil && len(followUps) > 0 {
			b.WriteString("追问建议：\n")
			for _, q := range followUps {
				fmt.Fprintf(&b, "- %s\n", q)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
