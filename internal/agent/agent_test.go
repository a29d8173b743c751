package agent

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
	"music-copilot-go/internal/skill"
	"music-copilot-go/internal/tools"
	"music-copilot-go/pkg/llm"
)

// stubLLM 按预设返回决策与流式分块，并记录收到的消息。
type stubLLM struct {
	decision  *llm.Decision
	decideErr error
	chunks    []string
	streamErr error

	decided  [][]llm.Message
	streamed [][]llm.Message
}

func (s *stubLLM) Decide(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Decision, error) {
	s.decided = append(s.decided, messages)
	if s.decideErr != nil {
		return nil, s.decideErr
	}
	return s.decision, nil
}

func (s *stubLLM) StreamGenerate(ctx context.Context, messages []llm.Message) iter.Seq2[string, error] {
	s.streamed = append(s.streamed, messages)
	return func(yield func(string, error) bool) {
		for _, c := range s.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if s.streamErr != nil {
			yield("", s.streamErr)
		}
	}
}

func registry(t *testing.T) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	require.NoError(t, tools.Register(reg))
	reg.MustRegister(capability.Descriptor{Name: "broken_tool", Handler: capability.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) { return nil, errors.New("connection reset") })})
	reg.Seal()
	return reg
}

func run(loop *ToolLoop, msgs []llm.Message) []model.Event {
	var events []model.Event
	for ev := range loop.Run(context.Background(), msgs) {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []model.Event) []model.EventType {
	out := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type())
	}
	return out
}

func TestToolLoop_StreamDirect(t *testing.T) {
	stub := &stubLLM{decision: &llm.Decision{}, chunks: []string{"今天", "是晴天"}}
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "今天天气怎么样"}}
	events := run(NewToolLoop(stub, registry(t)), msgs)

	assert.Equal(t, []model.EventType{model.EventToken, model.EventToken}, eventTypes(events))
	require.Len(t, stub.streamed, 1)
	assert.Equal(t, msgs, stub.streamed[0])
}

func TestToolLoop_RunToolsThenStreamFinal(t *testing.T) {
	stub := &stubLLM{
		decision: &llm.Decision{
			Text: "好的，正在为您查询…",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: tools.GetTrendingTopics, Arguments: `{"limit":2}`},
				{ID: "c2", Name: "broken_tool", Arguments: `{}`},
				{ID: "c3", Name: "ghost_tool", Arguments: `{}`},
				{ID: "c4", Name: tools.GetAudiencePortrait, Arguments: ``},
			},
		},
		chunks: []string{"以上是结果"},
	}
	events := run(NewToolLoop(stub, registry(t)), []llm.Message{{Role: llm.RoleUser, Content: "热点和画像"}})

	assert.Equal(t, []model.EventType{
		model.EventToken, model.EventCard, model.EventCard, model.EventToken,
	}, eventTypes(events))
	assert.Equal(t, "好的，正在为您查询…", events[0].(model.TokenEvent).Content)
	assert.Equal(t, "🔥 热点趋势", events[1].(model.CardEvent).Card.Title)
	assert.Equal(t, "👥 听众画像", events[2].(model.CardEvent).Card.Title)

	require.Len(t, stub.streamed, 1)
	final := stub.streamed[0]
	require.Len(t, final, 6)
	assert.Equal(t, llm.RoleAssistant, final[1].Role)
	assert.Len(t, final[1].ToolCalls, 4)
	for i, id := range []string{"c1", "c2", "c3", "c4"} {
		assert.Equal(t, llm.RoleTool, final[i+2].Role)
		assert.Equal(t, id, final[i+2].ToolCallID)
	}
	assert.JSONEq(t, `{"error":"connection reset"}`, final[3].Content)
	assert.Contains(t, final[4].Content, "ghost_tool")
}

func TestToolLoop_DecideFailure(t *testing.T) {
	stub := &stubLLM{decideErr: errors.New("401 invalid api key sk-xxx")}
	events := run(NewToolLoop(stub, registry(t)), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})

	require.Len(t, events, 1)
	errEv := events[0].(model.ErrorEvent)
	assert.Equal(t, model.FriendlyErrorMessage, errEv.Content)
	assert.NotContains(t, errEv.Content, "sk-xxx")
	assert.Empty(t, stub.streamed)
}

func TestToolLoop_StreamFailureKeepsPartialTokens(t *testing.T) {
	stub := &stubLLM{decision: &llm.Decision{}, chunks: []string{"部分"}, streamErr: errors.New("eof")}
	events := run(NewToolLoop(stub, registry(t)), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	assert.Equal(t, []model.EventType{model.EventToken, model.EventError}, eventTypes(events))
}

func TestToolLoop_TraceAndMalformedArguments(t *testing.T) {
	stub := &stubLLM{decision: &llm.Decision{ToolCalls: []llm.ToolCall{
		{ID: "c1", Name: tools.ExplainMetricChange, Arguments: `{not json`},
	}}}
	var trace Trace
	var events []model.Event
	for ev := range NewToolLoop(stub, registry(t)).RunWithTrace(context.Background(), nil, &trace) {
		events = append(events, ev)
	}
	assert.Empty(t, events)
	require.Len(t, trace.ToolCalls, 1)
	assert.Equal(t, tools.ExplainMetricChange, trace.ToolCalls[0].Name)
	assert.Contains(t, stub.streamed[0][1].Content, "error")
}

func TestToolLoop_CancelledBeforeStreaming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubLLM{decision: &llm.Decision{}, chunks: []string{"x"}}
	loop := NewToolLoop(stub, registry(t))
	cancel()
	var events []model.Event
	for ev := range loop.Run(ctx, nil) {
		events = append(events, ev)
	}
	assert.Empty(t, events)
	assert.Empty(t, stub.streamed)
}

func TestExtractCard(t *testing.T) {
	card, ok := ExtractCard(tools.RecommendSongsToPromote, map[string]any{
		"recommendations": []any{}, "diagnosis": "d", "goal": "涨粉",
	})
	require.True(t, ok)
	assert.Equal(t, model.CardSongRecommend, card.CardType)
	assert.NotContains(t, card.Data, "goal")
	require.Len(t, card.Actions, 1)
	assert.Equal(t, map[string]any{"action": "create_plan"}, card.Actions[0].Payload)

	card, ok = ExtractCard(tools.CheckUploadCompliance, map[string]any{"can_upload": true})
	require.True(t, ok)
	assert.Equal(t, model.CardKnowledge, card.CardType)
	assert.Equal(t, "/support", card.Actions[0].URL)

	_, ok = ExtractCard(tools.GetTrendingTopics, map[string]any{"error": "boom"})
	assert.False(t, ok)
	_, ok = ExtractCard("unknown_tool", map[string]any{"a": 1})
	assert.False(t, ok)
}

func TestParseFollowUps(t *testing.T) {
	testCases := []struct {
		description string
		raw         string
		expect      []string
	}{
		{description: "json array", raw: `["问题1","问题2","问题3"]`, expect: []string{"问题1", "问题2", "问题3"}},
		{description: "numbered lines", raw: "1. 话题一\n2. 话题二", expect: []string{"话题一", "话题二"}},
		{description: "object", raw: `{"questions":["a","b"]}`, expect: []string{"a", "b"}},
		{description: "fenced json capped", raw: "```json\n[\"a\",\"b\",\"c\",\"d\"]\n```", expect: []string{"a", "b", "c"}},
		{description: "bullets", raw: "- 歌名怎么取？\n• 宣推预算多少合适？\n\n3、上传要注意什么？", expect: []string{"歌名怎么取？", "宣推预算多少合适？", "上传要注意什么？"}},
		{description: "empty items dropped", raw: `["", "  ", "x"]`, expect: []string{"x"}},
		{description: "blank", raw: "  ", expect: nil},
		{description: "json object without list", raw: `{"suggestions":[]}`, expect: nil},
		{description: "json object with unknown key", raw: `{"items":["a","b"]}`, expect: nil},
		{description: "json scalar", raw: `"只有一句"`, expect: nil},
		{description: "decimal kept", raw: "3.5倍增长的原因？\n2.下一步做什么？", expect: []string{"3.5倍增长的原因？", "下一步做什么？"}},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, ParseFollowUps(tc.raw))
		})
	}
}

func TestFollowUpGenerator(t *testing.T) {
	stub := &stubLLM{decision: &llm.Decision{Text: `["下一步做什么？"]`}}
	gen := NewFollowUpGenerator(stub)
	assert.Equal(t, []string{"下一步做什么？"}, gen.Generate(context.Background(), "问", "答"))
	require.Len(t, stub.decided, 1)
	assert.Contains(t, stub.decided[0][0].Content, "用户问题：问")

	assert.Nil(t, gen.Generate(context.Background(), "问", "  "))
	assert.Nil(t, NewFollowUpGenerator(&stubLLM{decideErr: errors.New("x")}).Generate(context.Background(), "问", "答"))
}

func TestSystemPromptAndMessages(t *testing.T) {
	prompt := SystemPrompt("## 工作流", nil)
	assert.Contains(t, prompt, "目前没有注册的高级技能。")
	assert.Contains(t, prompt, "## 工作流")

	prompt = SystemPrompt("", []skill.Skill{{Name: "s1", Description: "d", TriggerKeywords: []string{"k"}, Instructions: "do"}})
	assert.Contains(t, prompt, "### 技能名称：s1")

	history := []model.Message{
		{Role: model.RoleUser, Content: "u1"},
		{Role: model.RoleTool, Content: "t"},
		{Role: model.RoleAssistant, Content: "a1"},
		{Role: model.RoleUser, Content: "u2"},
	}
	msgs := BuildMessages("sys", history, "now", 2)
	require.Len(t, msgs, 4)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "a1", msgs[1].Content)
	assert.Equal(t, "u2", msgs[2].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "now"}, msgs[3])
}
