// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"music-copilot-go/internal/model"
)

// ErrConversationNotFound 表示会话不存在。
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository 定义了会话与消息的持久化操作。
type ConversationRepository interface {
	CreateConversation(ctx context.Context, title string) (string, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	// ListConversations 按 updated_at 倒序返回会话摘要。
	ListConversations(ctx context.Context, limit int) ([]model.ConversationSummary, error)
	// GetConversation 会话不存在时返回 nil, nil。
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// DeleteConversation 级联删除会话下的消息，会话不存在时返回 ErrConversationNotFound。
	DeleteConversation(ctx context.Context, id string) error
	// SaveMessage 写入消息并在同一事务中更新会话的 updated_at，返回消息 ID。
	SaveMessage(ctx context.Context, msg *model.Message) (string, error)
	// GetMessages 返回最近 limit 条消息，按时间正序排列；limit <= 0 时返回全部。
	GetMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个基于 GORM 的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) CreateConversation(ctx context.Context, title string) (string, error) {
	if title == "" {
		title = model.DefaultTitle
	}
	conv := &model.Conversation{ID: model.NewID(), Title: title}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return "", fmt.Errorf("创建会话失败: %w", err)
	}
	return conv.ID, nil
}

func (r *conversationRepository) UpdateConversationTitle(ctx context.Context, id, title string) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("更新会话标题失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// summaryRow 承接聚合查询结果，LocalTime 不能直接从数据库扫描。
type summaryRow struct {
	ID           string
	Title        string
	UpdatedAt    time.Time
	MessageCount int64
}

func (r *conversationRepository) ListConversations(ctx context.Context, limit int) ([]model.ConversationSummary, error) {
	var rows []summaryRow
	q := r.db.WithContext(ctx).Table("conversations AS c").
		Select("c.id, c.title, c.updated_at, COUNT(m.id) AS message_count").
		Joins("LEFT JOIN messages AS m ON m.conversation_id = c.id").
		Group("c.id, c.title, c.updated_at").
		Order("c.updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询会话列表失败: %w", err)
	}

	out := make([]model.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.ConversationSummary{
			ID:           row.ID,
			Title:        row.Title,
			UpdatedAt:    model.LocalTime(row.UpdatedAt),
			MessageCount: row.MessageCount,
		})
	}
	return out, nil
}

func (r *conversationRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) DeleteConversation(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 外键级联之外再显式删除一次，兼容未建外键的旧表
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("删除会话消息失败: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Conversation{})
		if res.Error != nil {
			return fmt.Errorf("删除会话失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
}

func (r *conversationRepository) SaveMessage(ctx context.Context, msg *model.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = model.NewID()
	}
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrConversationNotFound
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).Update("updated_at", now).Error
	})
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return "", err
		}
		return "", fmt.Errorf("保存消息失败: %w", err)
	}
	return msg.ID, nil
}

func (r *conversationRepository) GetMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	// 取最近 N 条后恢复为正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
