package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"music-copilot-go/internal/model"
	"music-copilot-go/pkg/log"
)

// HistoryCache 缓存每个会话最近的消息窗口。
type HistoryCache interface {
	// Get 命中时返回 true，未命中或出错都按未命中处理。
	Get(ctx context.Context, conversationID string, limit int) ([]model.Message, bool)
	Put(ctx context.Context, conversationID string, limit int, messages []model.Message)
	Invalidate(ctx context.Context, conversationID string)
}

type redisHistoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// historyEntry 是写入 Redis 的缓存内容，窗口大小不同视为未命中。
type historyEntry struct {
	Limit    int             `json:"limit"`
	Messages []model.Message `json:"messages"`
}

// NewRedisHistoryCache 创建基于 Redis 的历史缓存。
func NewRedisHistoryCache(rdb *redis.Client, ttl time.Duration) HistoryCache {
	return &redisHistoryCache{rdb: rdb, ttl: ttl}
}

func historyKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:history", conversationID)
}

func (c *redisHistoryCache) Get(ctx context.Context, conversationID string, limit int) ([]model.Message, bool) {
	raw, err := c.rdb.Get(ctx, historyKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warnf("[HistoryCache] 读取缓存失败, conversation=%s: %v", conversationID, err)
		return nil, false
	}
	var entry historyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		log.Warnf("[HistoryCache] 缓存内容损坏, conversation=%s: %v", conversationID, err)
		return nil, false
	}
	if entry.Limit != limit {
		return nil, false
	}
	return entry.Messages, true
}

func (c *redisHistoryCache) Put(ctx context.Context, conversationID string, limit int, messages []model.Message) {
	raw, err := json.Marshal(historyEntry{Limit: limit, Messages: messages})
	if err != nil {
		log.Warnf("[HistoryCache] 序列化缓存失败: %v", err)
		return
	}
	if err := c.rdb.Set(ctx, historyKey(conversationID), raw, c.ttl).Err(); err != nil {
		log.Warnf("[HistoryCache] 写入缓存失败, conversation=%s: %v", conversationID, err)
	}
}

func (c *redisHistoryCache) Invalidate(ctx context.Context, conversationID string) {
	if err := c.rdb.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		log.Warnf("[HistoryCache] 清理缓存失败, conversation=%s: %v", conversationID, err)
	}
}

// cachedConversationRepository 在消息读取前查询缓存，写入与删除时失效缓存。
type cachedConversationRepository struct {
	ConversationRepository
	cache HistoryCache
}

// NewCachedConversationRepository 用历史缓存包装 ConversationRepository。
func NewCachedConversationRepository(inner ConversationRepository, cache HistoryCache) ConversationRepository {
	return &cachedConversationRepository{ConversationRepository: inner, cache: cache}
}

func (r *cachedConversationRepository) GetMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if msgs, ok := r.cache.Get(ctx, conversationID, limit); ok {
		return msgs, nil
	}
	msgs, err := r.ConversationRepository.GetMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	r.cache.Put(ctx, conversationID, limit, msgs)
	return msgs, nil
}

func (r *cachedConversationRepository) SaveMessage(ctx context.Context, msg *model.Message) (string, error) {
	id, err := r.ConversationRepository.SaveMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	r.cache.Invalidate(ctx, msg.ConversationID)
	return id, nil
}

func (r *cachedConversationRepository) DeleteConversation(ctx context.Context, id string) error {
	if err := r.ConversationRepository.DeleteConversation(ctx, id); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, id)
	return nil
}
