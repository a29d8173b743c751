package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EventType 是流式事件的类型标识。
type EventType string

const (
	EventStepStart  EventType = "step_start"
	EventStepResult EventType = "step_result"
	EventCard       EventType = "card"
	EventToken      EventType = "token"
	EventError      EventType = "error"
	EventFollowUps  EventType = "follow_ups"
	EventDone       EventType = "done"
)

// Event 是编排事件的封闭联合类型，只能由本包中的结构体实现。
type Event interface {
	Type() EventType
	isEvent()
}

// StepStartEvent 在工作流每个步骤开始时发出。
type StepStartEvent struct {
	Step        string
	Description string
}

// StepResultEvent 携带步骤调用能力后的结果。
type StepResultEvent struct {
	Step string
	Data map[string]any
}

// CardEvent 携带一张展示卡片。
type CardEvent struct {
	Card Card
}

// TokenEvent 携带一段增量文本。
type TokenEvent struct {
	Content string
}

// FriendlyErrorMessage 是所有执行失败时展示给用户的统一提示。
const FriendlyErrorMessage = "抱歉，处理您的请求时遇到了问题，请稍后重试"

// ErrorEvent 携带面向用户的错误提示，不包含内部错误细节。
type ErrorEvent struct {
	Content string
}

// FollowUpsEvent 携带 1-3 条追问建议。
type FollowUpsEvent struct {
	Questions []string
}

// DoneEvent 是终止事件。工作流执行器填写 Summary，组装器填写会话与消息标识。
type DoneEvent struct {
	Summary        string
	ConversationID string
	MessageID      string
}

func (StepStartEvent) Type() EventType  { return EventStepStart }
func (StepResultEvent) Type() EventType { return EventStepResult }
func (CardEvent) Type() EventType       { return EventCard }
func (TokenEvent) Type() EventType      { return EventToken }
func (ErrorEvent) Type() EventType      { return EventError }
func (FollowUpsEvent) Type() EventType  { return EventFollowUps }
func (DoneEvent) Type() EventType       { return EventDone }

func (StepStartEvent) isEvent()  {}
func (StepResultEvent) isEvent() {}
func (CardEvent) isEvent()       {}
func (TokenEvent) isEvent()      {}
func (ErrorEvent) isEvent()      {}
func (FollowUpsEvent) isEvent()  {}
func (DoneEvent) isEvent()       {}

// Payload 把事件转换为线上 JSON 对象，未知事件返回错误。
func Payload(ev Event) (map[string]any, error) {
	switch e := ev.(type) {
	case StepStartEvent:
		return map[string]any{"type": EventStepStart, "step": e.Step, "description": e.Description}, nil
	case StepResultEvent:
		return map[string]any{"type": EventStepResult, "step": e.Step, "data": e.Data}, nil
	case CardEvent:
		return map[string]any{"type": EventCard, "card": e.Card}, nil
	case TokenEvent:
		return map[string]any{"type": EventToken, "content": e.Content}, nil
	case ErrorEvent:
		return map[string]any{"type": EventError, "content": e.Content}, nil
	case FollowUpsEvent:
		return map[string]any{"type": EventFollowUps, "questions": e.Questions}, nil
	case DoneEvent:
		if e.ConversationID == "" && e.MessageID == "" {
			return map[string]any{"type": EventDone, "summary": e.Summary}, nil
		}
		return map[string]any{"type": EventDone, "conversation_id": e.ConversationID, "message_id": e.MessageID}, nil
	default:
		return nil, fmt.Errorf("未知的事件类型: %T", ev)
	}
}

// MarshalEvent 把事件编码为紧凑 JSON，中文与 HTML 字符原样输出。
func MarshalEvent(ev Event) ([]byte, error) {
	payload, err := Payload(ev)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EncodeFrame 把事件编码为 SSE 帧: "data: <json>\n\n"。
func EncodeFrame(ev Event) ([]byte, error) {
	body, err := MarshalEvent(ev)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
