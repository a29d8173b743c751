// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"music-copilot-go/internal/agent"
	"music-copilot-go/internal/config"
	"music-copilot-go/internal/model"
	"music-copilot-go/internal/repository"
	"music-copilot-go/internal/workflow"
	"music-copilot-go/pkg/log"
)

// MaxMessageRunes 是单条用户消息的最大字符数。
const MaxMessageRunes = 2000

// ErrInvalidMessage 表示用户消息为空或超长。
var ErrInvalidMessage = errors.New("invalid message")

// ChatRequest 是一次对话请求。
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// EmitFunc 把一个事件发送给客户端，返回错误表示连接已不可写。
type EmitFunc func(ev model.Event) error

// ChatService 定义了对话编排的接口。
type ChatService interface {
	// StreamResponse 处理一轮对话并通过 emit 逐个发送事件。
	// 消息不合法时在发送任何事件前返回 ErrInvalidMessage；
	// 其余失败会先发送一个 error 事件再返回错误；请求取消时不落库、不发送 done。
	StreamResponse(ctx context.Context, req ChatRequest, emit EmitFunc) error
}

type chatService struct {
	repo         repository.ConversationRepository
	router       *workflow.Router
	executor     *workflow.Executor
	toolLoop     *agent.ToolLoop
	followUps    *agent.FollowUpGenerator
	systemPrompt string
	cfg          config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例，followUps 为 nil 时不生成追问建议。
func NewChatService(
	repo repository.ConversationRepository,
	router *workflow.Router,
	executor *workflow.Executor,
	toolLoop *agent.ToolLoop,
	followUps *agent.FollowUpGenerator,
	systemPrompt string,
	cfg config.ChatConfig,
) ChatService {
	return &chatService{
		repo:         repo,
		router:       router,
		executor:     executor,
		toolLoop:     toolLoop,
		followUps:    followUps,
		systemPrompt: systemPrompt,
		cfg:          cfg,
	}
}

// ValidateMessage 去掉首尾空白并校验长度。
func ValidateMessage(message string) (string, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return "", fmt.Errorf("%w: 消息不能为空", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return "", fmt.Errorf("%w: 消息不能超过 %d 个字符", ErrInvalidMessage, MaxMessageRunes)
	}
	return text, nil
}

func (s *chatService) StreamResponse(ctx context.Context, req ChatRequest, emit EmitFunc) error {
	text, err := ValidateMessage(req.Message)
	if err != nil {
		return err
	}

	err = s.respond(ctx, req.ConversationID, text, emit)
	if err == nil || ctx.Err() != nil || errors.Is(err, errEmit) {
		return err
	}
	log.Errorf("[ChatService] 处理对话失败: %v", err)
	_ = emit(model.ErrorEvent{Content: model.FriendlyErrorMessage})
	return err
}

// errEmit 标记客户端写入失败，此时不再尝试发送 error 事件。
var errEmit = errors.New("emit failed")

func (s *chatService) respond(ctx context.Context, conversationID, text string, emit EmitFunc) error {
	// 1. 解析或创建会话
	convID, err := s.resolveConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	// 2. 读取历史（不含本轮消息），再保存用户消息
	history, err := s.repo.GetMessages(ctx, convID, s.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("读取历史消息失败: %w", err)
	}
	firstExchange := len(history) == 0

	userMsg, err := model.NewMessage(convID, model.RoleUser, text, nil, nil, nil)
	if err != nil {
		return err
	}
	if _, err := s.repo.SaveMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("保存用户消息失败: %w", err)
	}

	// 3. 路由并转发事件
	var trace agent.Trace
	var events iter.Seq[model.Event]
	if wf, ok := s.router.Route(text); ok {
		log.Infof("[ChatService] 命中工作流 %s, conversation=%s", wf.Name, convID)
		events = s.executor.Execute(ctx, wf, text, workflow.DetectInputs(text))
	} else {
		messages := agent.BuildMessages(s.systemPrompt, history, text, s.cfg.HistoryLimit)
		events = s.toolLoop.RunWithTrace(ctx, messages, &trace)
	}

	var (
		reply   strings.Builder
		cards   []model.Card
		lastErr *model.ErrorEvent
	)
	for ev := range events {
		switch e := ev.(type) {
		case model.DoneEvent:
			// 工作流自身的 done 由本轮统一的 done 取代
			continue
		case model.TokenEvent:
			reply.WriteString(e.Content)
		case model.CardEvent:
			cards = append(cards, e.Card)
		case model.ErrorEvent:
			lastErr = &e
		}
		if err := emit(ev); err != nil {
			return errors.Join(errEmit, err)
		}
	}
	if err := ctx.Err(); err != nil {
		log.Infof("[ChatService] 请求已取消，跳过落库, conversation=%s", convID)
		return err
	}

	// 4. 追问建议
	var followUps []string
	if s.followUps != nil {
		followUps = s.followUps.Generate(ctx, text, reply.String())
		if len(followUps) > 0 {
			if err := emit(model.FollowUpsEvent{Questions: followUps}); err != nil {
				return errors.Join(errEmit, err)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 5. 保存助手消息，首轮对话更新标题
	// 没有任何输出时保存错误提示，避免出现空白回复
	content := reply.String()
	if content == "" && lastErr != nil {
		content = lastErr.Content
	}
	assistantMsg, err := model.NewMessage(convID, model.RoleAssistant, content, cards, followUps, trace.ToolCalls)
	if err != nil {
		return err
	}
	messageID, err := s.repo.SaveMessage(ctx, assistantMsg)
	if err != nil {
		return fmt.Errorf("保存助手消息失败: %w", err)
	}
	if firstExchange {
		title := model.DeriveTitle(text, s.cfg.TitleMaxRunes)
		if err := s.repo.UpdateConversationTitle(ctx, convID, title); err != nil {
			log.Warnf("[ChatService] 更新会话标题失败, conversation=%s: %v", convID, err)
		}
	}

	if err := emit(model.DoneEvent{ConversationID: convID, MessageID: messageID}); err != nil {
		return errors.Join(errEmit, err)
	}
	return nil
}

// resolveConversation 返回已存在的会话 ID，未提供或不存在时创建新会话。
func (s *chatService) resolveConversation(ctx context.Context, id string) (string, error) {
	if id != "" {
		conv, err := s.repo.GetConversation(ctx, id)
		if err != nil {
			return "", err
		}
		if conv != nil {
			return conv.ID, nil
		}
		log.Warnf("[ChatService] 会话 %s 不存在，创建新会话", id)
	}
	newID, err := s.repo.CreateConversation(ctx, model.DefaultTitle)
	if err != nil {
		return "", err
	}
	return newID, nil
}
