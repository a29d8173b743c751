package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"music-copilot-go/internal/model"
)

// memoryConversationRepository 把会话保存在进程内，用于 database.driver=memory 与测试。
type memoryConversationRepository struct {
	mu            sync.RWMutex
	seq           int64
	conversations map[string]*memoryConversation
}

type memoryConversation struct {
	conv      model.Conversation
	touchedAt int64
	messages  []model.Message
}

// NewMemoryConversationRepository 创建进程内的 ConversationRepository。
func NewMemoryConversationRepository() ConversationRepository {
	return &memoryConversationRepository{conversations: make(map[string]*memoryConversation)}
}

// next 返回单调递增序号，时间戳相同时用于排序。
func (r *memoryConversationRepository) next() int64 {
	r.seq++
	return r.seq
}

func (r *memoryConversationRepository) CreateConversation(ctx context.Context, title string) (string, error) {
	if title == "" {
		title = model.DefaultTitle
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	id := model.NewID()
	r.conversations[id] = &memoryConversation{
		conv:      model.Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now},
		touchedAt: r.next(),
	}
	return id, nil
}

func (r *memoryConversationRepository) UpdateConversationTitle(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	c.conv.Title = title
	return nil
}

func (r *memoryConversationRepository) ListConversations(ctx context.Context, limit int) ([]model.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*memoryConversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].touchedAt > list[j].touchedAt })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	out := make([]model.ConversationSummary, 0, len(list))
	for _, c := range list {
		out = append(out, model.ConversationSummary{
			ID:           c.conv.ID,
			Title:        c.conv.Title,
			UpdatedAt:    model.LocalTime(c.conv.UpdatedAt),
			MessageCount: int64(len(c.messages)),
		})
	}
	return out, nil
}

func (r *memoryConversationRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, nil
	}
	conv := c.conv
	return &conv, nil
}

func (r *memoryConversationRepository) DeleteConversation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r *memoryConversationRepository) SaveMessage(ctx context.Context, msg *model.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[msg.ConversationID]
	if !ok {
		return "", ErrConversationNotFound
	}
	if msg.ID == "" {
		msg.ID = model.NewID()
	}
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	c.messages = append(c.messages, *msg)
	c.conv.UpdatedAt = now
	c.touchedAt = r.next()
	return msg.ID, nil
}

func (r *memoryConversationRepository) GetMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return []model.Message{}, nil
	}
	msgs := c.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]model.Message(nil), msgs...), nil
}
