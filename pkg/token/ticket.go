// Package token 签发与校验 WebSocket 流式对话使用的短期票据（JWT）。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ticketSubject = "chat-stream"

// ErrInvalidTicket 表示票据签名错误、已过期或用途不符。
var ErrInvalidTicket = errors.New("invalid stream ticket")

// TicketManager 负责票据的生成和验证。
type TicketManager struct {
	secretKey []byte
	ttl       time.Duration
}

// TicketClaims 是票据携带的声明，ConversationID 为空表示新会话。
type TicketClaims struct {
	ConversationID string `json:"conversationId,omitempty"`
	jwt.RegisteredClaims
}

// NewTicketManager 创建票据管理器，expireMinutes 为票据有效期。
func NewTicketManager(secret string, expireMinutes int) *TicketManager {
	if expireMinutes <= 0 {
		expireMinutes = 10
	}
	return &TicketManager{
		secretKey: []byte(secret),
		ttl:       time.Duration(expireMinutes) * time.Minute,
	}
}

// Issue 生成一张票据，返回票据字符串与过期时间。
func (m *TicketManager) Issue(conversationID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := TicketClaims{
		ConversationID: conversationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   ticketSubject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify 校验票据并返回声明。
func (m *TicketManager) Verify(ticket string) (*TicketClaims, error) {
	parsed, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidTicket, err)
	}
	claims, ok := parsed.Claims.(*TicketClaims)
	if !ok || !parsed.Valid || claims.Subject != ticketSubject {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
