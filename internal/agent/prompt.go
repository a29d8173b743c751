package agent

import (
	"fmt"
	"strings"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/skill"
	"music-copilot-go/pkg/llm"
)

const systemPromptTemplate = `你是「腾讯音乐人 AI 助手」，一个专业的音乐人工作流 Copilot。

## 你的能力
你可以通过调用工具来帮助音乐人完成以下任务：
1. **热点创作**：获取热点趋势、生成歌名灵感、生成宣推标签
2. **宣推建议**：推荐最值得宣推的歌曲、生成投放计划、投后复盘
3. **智能分析**：听众画像、跨平台表现分析、关键指标变化归因
4. **问答指南**：回答入驻、上传、审核、结算、版权、活动等问题

## 行为准则
- **始终提供可执行的建议**，不要只给笼统的方向
- **引用数据时标注来源和口径**，确保可信度
- **对于规则、流程等知识类问题，优先使用 search_knowledge_base 检索运营上传的文档，没有结果时再使用 search_knowledge**
- **语气专业但亲切**，像一位资深的音乐行业前辈
- **主动推荐下一步动作**，帮音乐人做到"闭环"
- **当不确定时，诚实说明**并引导用户联系人工客服
- 回复使用中文，格式清晰美观，善用 Markdown 排版

## 重要规则
- 不要编造不存在的数据，只使用工具返回的真实数据
- 如果用户的问题超出你的能力范围，友好地说明并建议替代方案
- 在给出建议时，尽量附带理由和依据

%s

## 可用的高级技能 (Agent Skills)
除了基本工具，你还有一些预定义的“技能 (Skills)”。这些技能由多步流程组成。
当用户意图匹配以下某个技能时，你必须**严格遵循**该技能的 ` + "`[执行步骤]`" + ` 进行逐步的工具调用。

<agent_skills>
%s
</agent_skills>`

// SystemPrompt 生成系统提示词，workflows 为内置工作流说明，skills 为加载的技能文档。
func SystemPrompt(workflows string, skills []skill.Skill) string {
	var b strings.Builder
	for _, s := range skills {
		fmt.Fprintf(&b, "### 技能名称：%s\n", s.Name)
		fmt.Fprintf(&b, "**描述**: %s\n", s.Description)
		fmt.Fprintf(&b, "**触发词**: %s\n", strings.Join(s.TriggerKeywords, ", "))
		fmt.Fprintf(&b, "**执行步骤与指令**:\n%s\n\n", s.Instructions)
	}
	skillsText := strings.TrimSpace(b.String())
	if skillsText == "" {
		skillsText = "目前没有注册的高级技能。"
	}
	return fmt.Sprintf(systemPromptTemplate, workflows, skillsText)
}

// BuildMessages 组装模型输入：系统提示词、最近 limit 条用户与助手历史、当前用户消息。
func BuildMessages(system string, history []model.Message, userMsg string, limit int) []llm.Message {
	replay := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case model.RoleUser:
			replay = append(replay, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case model.RoleAssistant:
			replay = append(replay, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	if limit > 0 && len(replay) > limit {
		replay = replay[len(replay)-limit:]
	}

	msgs := make([]llm.Message, 0, len(replay)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, replay...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: userMsg})
	return msgs
}
