package workflow

import (
	"regexp"
	"strconv"
	"strings"
)

// 请求参数键
const (
	InputStyle  = "style"
	InputBudget = "budget"
)

const (
	defaultStyle  = "流行"
	defaultBudget = 1000.0
)

var knownStyles = []string{"民谣", "R&B", "电子", "说唱", "国风", "摇滚", "爵士", "流行"}

// budgetPattern 匹配 "预算 2000"、"预算2000元"、"3000块" 一类写法。
var budgetPattern = regexp.MustCompile(`(?:预算\s*[:：]?\s*(\d+(?:\.\d+)?)\s*(万)?)|(?:(\d+(?:\.\d+)?)\s*(万)?\s*(?:元|块))`)

// DetectInputs 从用户输入中提取工作流使用的风格与预算。
func DetectInputs(text string) map[string]any {
	return map[string]any{
		InputStyle:  DetectStyle(text),
		InputBudget: DetectBudget(text),
	}
}

// DetectStyle 返回文本中提到的第一个已知风格，默认流行。
func DetectStyle(text string) string {
	lower := strings.ToLower(text)
	for _, style := range knownStyles {
		if strings.Contains(lower, strings.ToLower(style)) {
			return style
		}
	}
	return defaultStyle
}

// DetectBudget 返回文本中提到的预算金额，默认 1000。
func DetectBudget(text string) float64 {
	m := budgetPattern.FindStringSubmatch(text)
	if m == nil {
		return defaultBudget
	}
	num, unit := m[1], m[2]
	if num == "" {
		num, unit = m[3], m[4]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return defaultBudget
	}
	if unit == "万" {
		v *= 10000
	}
	return v
}

func inputString(ec *ExecutionContext, key, def string) string {
	if v, ok := ec.Input(key); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func inputFloat(ec *ExecutionContext, key string, def float64) float64 {
	if v, ok := ec.Input(key); ok {
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return n
			}
		case int:
			if n > 0 {
				return float64(n)
			}
		}
	}
	return def
}
