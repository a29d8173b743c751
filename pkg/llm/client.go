// Package llm 封装 OpenAI 兼容的聊天补全接口：一次阻塞的工具决策调用与一次流式生成调用。
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"music-copilot-go/internal/config"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message 表示一条角色消息。assistant 消息可携带工具调用，tool 消息携带 ToolCallID。
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall 是模型请求的一次工具调用，Arguments 为原始 JSON 文本。
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool 是暴露给模型选择的工具声明。
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Decision 是阻塞调用的结果：纯文本回复，或一组工具调用（可附带前导文本）。
type Decision struct {
	Text      string
	ToolCalls []ToolCall
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Client 定义模型能力。
type Client interface {
	// Decide 以非流式方式调用模型，tools 为空时只返回文本。
	Decide(ctx context.Context, messages []Message, tools []Tool) (*Decision, error)
	// StreamGenerate 以流式方式生成文本，序列中出现错误后即结束。
	StreamGenerate(ctx context.Context, messages []Message) iter.Seq2[string, error]
}

type openAIClient struct {
	client openai.Client
	model  string
	gen    GenerationParams
}

// NewClient 根据配置创建 OpenAI 兼容的模型客户端。
func NewClient(cfg config.LLMConfig, opts ...option.RequestOption) (Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSeconds > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	reqOpts = append(reqOpts, opts...)

	c := &openAIClient{
		client: openai.NewClient(reqOpts...),
		model:  cfg.Model,
	}
	// 从全局配置注入（若非零值）
	if cfg.Generation.Temperature != 0 {
		t := cfg.Generation.Temperature
		c.gen.Temperature = &t
	}
	if cfg.Generation.TopP != 0 {
		p := cfg.Generation.TopP
		c.gen.TopP = &p
	}
	if cfg.Generation.MaxTokens != 0 {
		m := cfg.Generation.MaxTokens
		c.gen.MaxTokens = &m
	}
	return c, nil
}

func (c *openAIClient) params(messages []Message) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toParams(messages),
	}
	if c.gen.Temperature != nil {
		p.Temperature = openai.Float(*c.gen.Temperature)
	}
	if c.gen.TopP != nil {
		p.TopP = openai.Float(*c.gen.TopP)
	}
	if c.gen.MaxTokens != nil {
		p.MaxTokens = openai.Int(int64(*c.gen.MaxTokens))
	}
	return p
}

func (c *openAIClient) Decide(ctx context.Context, messages []Message, tools []Tool) (*Decision, error) {
	p := c.params(messages)
	for _, t := range tools {
		fn := openai.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: openai.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		p.Tools = append(p.Tools, openai.ChatCompletionToolParam{Function: fn})
	}

	resp, err := c.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	msg := resp.Choices[0].Message
	d := &Decision{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		d.ToolCalls = append(d.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return d, nil
}

func (c *openAIClient) StreamGenerate(ctx context.Context, messages []Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("chat stream failed: %w", err))
		}
	}
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
