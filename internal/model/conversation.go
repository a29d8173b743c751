// Package model 包含了应用的数据模型定义。
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// DefaultTitle 是尚未产生标题的会话名称。
const DefaultTitle = "新对话"

// Conversation 对应 conversations 表。
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message 对应 messages 表，写入后不再修改。
// 卡片、追问建议与工具调用以 JSON 列保存，写入时始终是合法 JSON 数组。
type Message struct {
	ID             string         `gorm:"primaryKey;type:varchar(32)" json:"id"`
	ConversationID string         `gorm:"type:varchar(32);index;not null" json:"conversation_id"`
	Role           string         `gorm:"type:varchar(16);not null" json:"role"`
	Content        string         `gorm:"type:longtext" json:"content"`
	Cards          datatypes.JSON `gorm:"type:json" json:"cards"`
	FollowUps      datatypes.JSON `gorm:"type:json" json:"follow_ups"`
	ToolCalls      datatypes.JSON `gorm:"type:json" json:"tool_calls"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// ToolCallRecord 记录助手消息中发起的一次工具调用，Arguments 保留模型给出的原始 JSON 文本。
type ToolCallRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// NewMessage 组装一条待持久化的消息。ID 与 CreatedAt 由仓储在写入时补齐。
func NewMessage(conversationID, role, content string, cards []Card, followUps []string, toolCalls []ToolCallRecord) (*Message, error) {
	cardsJSON, err := encodeList(cards)
	if err != nil {
		return nil, fmt.Errorf("序列化卡片失败: %w", err)
	}
	followUpsJSON, err := encodeList(followUps)
	if err != nil {
		return nil, fmt.Errorf("序列化追问建议失败: %w", err)
	}
	toolCallsJSON, err := encodeList(toolCalls)
	if err != nil {
		return nil, fmt.Errorf("序列化工具调用失败: %w", err)
	}
	return &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Cards:          cardsJSON,
		FollowUps:      followUpsJSON,
		ToolCalls:      toolCallsJSON,
	}, nil
}

// DecodeCards 反序列化消息中的卡片列表，保持写入顺序。
func (m *Message) DecodeCards() ([]Card, error) {
	var cards []Card
	return cards, decodeList(m.Cards, &cards)
}

// DecodeFollowUps 反序列化消息中的追问建议。
func (m *Message) DecodeFollowUps() ([]string, error) {
	var followUps []string
	return followUps, decodeList(m.FollowUps, &followUps)
}

// DecodeToolCalls 反序列化消息中的工具调用记录。
func (m *Message) DecodeToolCalls() ([]ToolCallRecord, error) {
	var calls []ToolCallRecord
	return calls, decodeList(m.ToolCalls, &calls)
}

// MessageView 是返回给前端的消息结构。
type MessageView struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	Cards          []Card           `json:"cards"`
	FollowUps      []string         `json:"follow_ups"`
	ToolCalls      []ToolCallRecord `json:"tool_calls,omitempty"`
	CreatedAt      LocalTime        `json:"created_at"`
}

// View 把持久化消息转换为接口视图。
func (m *Message) View() (MessageView, error) {
	cards, err := m.DecodeCards()
	if err != nil {
		return MessageView{}, err
	}
	followUps, err := m.DecodeFollowUps()
	if err != nil {
		return MessageView{}, err
	}
	toolCalls, err := m.DecodeToolCalls()
	if err != nil {
		return MessageView{}, err
	}
	if cards == nil {
		cards = []Card{}
	}
	if followUps == nil {
		followUps = []string{}
	}
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Cards:          cards,
		FollowUps:      followUps,
		ToolCalls:      toolCalls,
		CreatedAt:      LocalTime(m.CreatedAt),
	}, nil
}

// ConversationSummary 是会话列表中的一项。
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    LocalTime `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

// NewID 生成 16 位十六进制标识。
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// DeriveTitle 取首条用户消息的前 maxRunes 个字符作为会话标题，被截断时追加省略标记。
func DeriveTitle(message string, maxRunes int) string {
	text := strings.TrimSpace(message)
	if text == "" {
		return DefaultTitle
	}
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

func encodeList[T any](items []T) (datatypes.JSON, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeList(raw datatypes.JSON, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}
