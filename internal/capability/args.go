package capability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Property 描述一个参数。
type Property struct {
	Type        string
	Description string
	Enum        []string
	Default     any
	Required    bool
}

// ObjectSchema 由有序参数列表生成 JSON-schema 风格的参数描述。
func ObjectSchema(props []NamedProperty) map[string]any {
	properties := make(map[string]any, len(props))
	required := make([]string, 0)
	for _, p := range props {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// NamedProperty 是带名称的参数描述。
type NamedProperty struct {
	Name string
	Property
}

// Param 是构造 NamedProperty 的简写。
func Param(name, typ, description string, opts ...func(*Property)) NamedProperty {
	p := Property{Type: typ, Description: description}
	for _, opt := range opts {
		opt(&p)
	}
	return NamedProperty{Name: name, Property: p}
}

// Required 标记参数为必填。
func Required() func(*Property) {
	return func(p *Property) { p.Required = true }
}

// Default 设置参数默认值。
func Default(v any) func(*Property) {
	return func(p *Property) { p.Default = v }
}

// Enum 限定参数取值。
func Enum(values ...string) func(*Property) {
	return func(p *Property) { p.Enum = values }
}

// MissingArgError 表示缺少必填参数。
type MissingArgError struct {
	Name string
}

func (e *MissingArgError) Error() string {
	return fmt.Sprintf("缺少必填参数 %s", e.Name)
}

// RequireString 读取必填字符串参数，空串视为缺失。
func RequireString(args map[string]any, key string) (string, error) {
	s := String(args, key, "")
	if strings.TrimSpace(s) == "" {
		return "", &MissingArgError{Name: key}
	}
	return s, nil
}

// String 读取字符串参数。
func String(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Float 读取数值参数，兼容 JSON 解码得到的 float64、json.Number 与数字字符串。
func Float(args map[string]any, key string, def float64) float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

// Int 读取整数参数。
func Int(args map[string]any, key string, def int) int {
	return int(Float(args, key, float64(def)))
}

// Bool 读取布尔参数。
func Bool(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}
