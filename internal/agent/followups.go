package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"music-copilot-go/pkg/llm"
	"music-copilot-go/pkg/log"
)

// MaxFollowUps 是每轮追问建议的上限。
const MaxFollowUps = 3

var (
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	bulletMark = regexp.MustCompile(`^\s*[-•*]\s*`)
	numberMark = regexp.MustCompile(`^(\d+)\s*([.、)）])\s*`)
)

// ParseFollowUps 解析模型生成的追问建议。
// 先按 JSON 解析（数组，或带 suggestions/questions/topics 字段的对象），
// 合法 JSON 但没有建议列表时返回空；不是 JSON 时逐行解析并去掉列表符号与序号。结果最多 3 条。
func ParseFollowUps(raw string) []string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if items, isJSON := parseJSONList(text); isJSON {
		return capItems(items)
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.TrimSpace(stripItemPrefix(line))
		if cleaned == "" {
			continue
		}
		out = append(out, cleaned)
		if len(out) == MaxFollowUps {
			break
		}
	}
	return out
}

// stripItemPrefix 去掉行首的列表符号与序号，"3.5倍" 这类小数不视为序号。
func stripItemPrefix(line string) string {
	line = bulletMark.ReplaceAllString(strings.TrimSpace(line), "")
	m := numberMark.FindStringSubmatchIndex(line)
	if m == nil {
		return line
	}
	if line[m[4]:m[5]] == "." && m[5] < len(line) && line[m[5]] >= '0' && line[m[5]] <= '9' {
		return line
	}
	return line[m[1]:]
}

// parseJSONList 的第二个返回值表示 text 是否为合法 JSON。
func parseJSONList(text string) ([]string, bool) {
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, false
	}
	var list []any
	switch v := data.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range []string{"suggestions", "questions", "topics"} {
			if l, ok := v[key].([]any); ok && len(l) > 0 {
				list = l
				break
			}
		}
		if list == nil {
			return nil, true
		}
	default:
		return nil, true
	}
	items := make([]string, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
			items = append(items, s)
		}
	}
	return items, true
}

func capItems(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	if len(items) > MaxFollowUps {
		return items[:MaxFollowUps]
	}
	return items
}

// FollowUpGenerator 基于本轮问答生成追问建议，任何失败都只返回空结果。
type FollowUpGenerator struct {
	client llm.Client
}

// NewFollowUpGenerator 创建追问建议生成器。
func NewFollowUpGenerator(client llm.Client) *FollowUpGenerator {
	return &FollowUpGenerator{client: client}
}

// Generate 发起一次非流式请求并解析结果。回答为空时不发起请求。
func (g *FollowUpGenerator) Generate(ctx context.Context, userMsg, reply string) []string {
	if g == nil || g.client == nil || strings.TrimSpace(reply) == "" {
		return nil
	}
	d, err := g.client.Decide(ctx, []llm.Message{{Role: llm.RoleUser, Content: followUpPrompt(userMsg, reply)}}, nil)
	if err != nil {
		log.Warnf("[FollowUps] 生成追问建议失败: %v", err)
		return nil
	}
	return ParseFollowUps(d.Text)
}

func followUpPrompt(userMsg, reply string) string {
	return fmt.Sprintf(`你是一个对话助手，请基于本轮问答生成 3 条后续建议。
要求：
1) 必须和用户当前主题强相关，帮助用户继续探索。
2) 根据语境自动选择输出形态：
   - 如果用户明显还在探索/比较/决策，输出“追问句”（建议以问号结尾）。
   - 如果本轮回答已较完整，输出“关联话题短语”（不加句号、不加解释，不写完整陈述句）。
3) 三条保持同一风格（全是追问句或全是话题短语），避免重复。
4) 追问句建议 8-24 个中文字符；话题短语建议 4-12 个中文字符。
5) 不要出现解释文字。
6) 仅返回 JSON 数组字符串，例如：["建议1", "建议2", "建议3"]

用户问题：%s
助手回答：%s
`, userMsg, reply)
}
