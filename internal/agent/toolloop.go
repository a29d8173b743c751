// Package agent 实现单轮工具调用循环、卡片提取、追问建议与提示词组装。
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
	"music-copilot-go/pkg/llm"
	"music-copilot-go/pkg/log"
)

// Trace 记录一次运行中模型请求过的工具调用，供持久化使用。
type Trace struct {
	ToolCalls []model.ToolCallRecord
}

// ToolLoop 执行两轮工具调用协议：
// 第一轮阻塞调用让模型决定直接回答还是调用工具；
// 需要工具时按模型返回的顺序逐个执行，再以追加了工具结果的历史流式生成最终回答。
type ToolLoop struct {
	client   llm.Client
	registry *capability.Registry
	tools    []llm.Tool
}

// NewToolLoop 创建工具调用循环，注册表中的全部能力都会声明给模型。
func NewToolLoop(client llm.Client, registry *capability.Registry) *ToolLoop {
	descriptors := registry.Descriptors()
	tools := make([]llm.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, llm.Tool{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return &ToolLoop{client: client, registry: registry, tools: tools}
}

// Run 返回一次运行的事件序列，只产生 token、card 与 error 事件，不产生 done。
func (l *ToolLoop) Run(ctx context.Context, messages []llm.Message) iter.Seq[model.Event] {
	return l.RunWithTrace(ctx, messages, nil)
}

// RunWithTrace 与 Run 相同，并把工具调用记录到 trace（可为 nil）。
func (l *ToolLoop) RunWithTrace(ctx context.Context, messages []llm.Message, trace *Trace) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		fail := func(stage string, err error) {
			if ctx.Err() != nil {
				log.Infof("[ToolLoop] %s 阶段因请求取消而结束: %v", stage, ctx.Err())
				return
			}
			log.Errorf("[ToolLoop] %s 阶段失败: %v", stage, err)
			yield(model.ErrorEvent{Content: model.FriendlyErrorMessage})
		}

		log.Infof("[ToolLoop] 第一轮调用模型，声明 %d 个工具", len(l.tools))
		decision, err := l.client.Decide(ctx, messages, l.tools)
		if err != nil {
			fail("DECIDE", err)
			return
		}
		log.Infof("[ToolLoop] 第一轮完成，content 长度=%d，tool_calls 数量=%d", len(decision.Text), len(decision.ToolCalls))

		history := messages
		if len(decision.ToolCalls) > 0 {
			if decision.Text != "" && !yield(model.TokenEvent{Content: decision.Text}) {
				return
			}
			history = make([]llm.Message, 0, len(messages)+len(decision.ToolCalls)+1)
			history = append(history, messages...)
			history = append(history, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   decision.Text,
				ToolCalls: decision.ToolCalls,
			})

			for _, call := range decision.ToolCalls {
				if ctx.Err() != nil {
					return
				}
				if trace != nil {
					trace.ToolCalls = append(trace.ToolCalls, model.ToolCallRecord{ID: call.ID, Name: call.Name, Arguments: call.Arguments})
				}

				result, known := l.invoke(ctx, call)
				if known {
					if card, ok := ExtractCard(call.Name, result); ok {
						if !yield(model.CardEvent{Card: card}) {
							return
						}
					}
				}
				content, err := encodeResult(result)
				if err != nil {
					fail("RUN_TOOLS", err)
					return
				}
				history = append(history, llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: call.ID})
			}
		}

		if ctx.Err() != nil {
			return
		}
		stage := "STREAM_DIRECT"
		if len(decision.ToolCalls) > 0 {
			stage = "STREAM_FINAL"
		}
		for chunk, err := range l.client.StreamGenerate(ctx, history) {
			if err != nil {
				fail(stage, err)
				return
			}
			if chunk == "" {
				continue
			}
			if !yield(model.TokenEvent{Content: chunk}) {
				return
			}
		}
	}
}

// invoke 执行一次工具调用。找不到工具时返回 false，并给出一条错误结果以便模型收到每个调用的回复。
func (l *ToolLoop) invoke(ctx context.Context, call llm.ToolCall) (map[string]any, bool) {
	d, err := l.registry.Resolve(call.Name)
	if err != nil {
		log.Warnf("[ToolLoop] 未找到工具: %s", call.Name)
		return capability.ErrorResult(fmt.Errorf("未找到工具 %s", call.Name)), false
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		log.Warnf("[ToolLoop] 工具 %s 参数解析失败: %v", call.Name, err)
		return capability.ErrorResult(fmt.Errorf("工具参数不是合法的 JSON: %w", err)), true
	}

	log.Infof("[ToolLoop] 调用工具: %s, 参数: %v", call.Name, args)
	result, err := capability.Call(ctx, d, args)
	if err != nil {
		log.Errorf("[ToolLoop] 工具 %s 执行失败: %v", call.Name, err)
	} else {
		log.Infof("[ToolLoop] 工具 %s 返回成功", call.Name)
	}
	return result, true
}

func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func encodeResult(result map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return "", fmt.Errorf("工具结果无法序列化: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
