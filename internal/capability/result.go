package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorResult 把调用失败转换为结构化结果 {"error": msg}。
func ErrorResult(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

// IsError 判断结果是否为失败标记。
func IsError(result map[string]any) bool {
	if result == nil {
		return false
	}
	_, ok := result["error"]
	return ok
}

// Decode 把能力返回值统一转换为 map：
// map 原样返回；字符串、[]byte、json.RawMessage 按 JSON 解析；其他值经 JSON 往返转换。
// 非对象 JSON 包装为 {"result": v}。
func Decode(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		return decodeJSON([]byte(v))
	case []byte:
		return decodeJSON(v)
	case json.RawMessage:
		return decodeJSON(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("能力结果无法序列化: %w", err)
		}
		return decodeJSON(b)
	}
}

func decodeJSON(b []byte) (map[string]any, error) {
	text := strings.TrimSpace(string(b))
	if text == "" {
		return map[string]any{}, nil
	}
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		// 纯文本结果
		return map[string]any{"result": text}, nil
	}
	if m, ok := out.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"result": out}, nil
}

// Call 解析并调用能力，调用失败或结果无法解析时返回 {"error": msg}，不会中断调用方。
// 返回的 error 仅用于日志记录。
func Call(ctx context.Context, d *Descriptor, args map[string]any) (result map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("能力 %s 发生 panic: %v", d.Name, p)
			result = ErrorResult(err)
		}
	}()
	if args == nil {
		args = map[string]any{}
	}
	raw, err := d.Handler.Invoke(ctx, args)
	if err != nil {
		return ErrorResult(err), err
	}
	result, err = Decode(raw)
	if err != nil {
		return ErrorResult(err), err
	}
	return result, nil
}
