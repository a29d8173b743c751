package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
	"music-copilot-go/internal/tools"
)

func builtinSet(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet(Builtin()...)
	require.NoError(t, err)
	return set
}

func toolRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg := capability.NewRegistry()
	require.NoError(t, tools.Register(reg))
	reg.Seal()
	return reg
}

func collect(seq func(func(model.Event) bool)) []model.Event {
	var events []model.Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func types(events []model.Event) []model.EventType {
	out := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type())
	}
	return out
}

func TestRouter_Route(t *testing.T) {
	router := NewRouter(builtinSet(t))

	testCases := []struct {
		description string
		text        string
		expect      string
	}{
		{description: "two keywords", text: "帮我从热点到创作一条龙完成", expect: "hot_trend_creation"},
		{description: "several keywords", text: "帮我做一套宣推方案，要全链路的", expect: "full_promotion"},
		{description: "no keyword", text: "今天天气怎么样", expect: ""},
		{description: "single keyword reaches threshold", text: "帮我做一套完整宣推方案", expect: "full_promotion"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			wf, ok := router.Route(tc.text)
			if tc.expect == "" {
				assert.False(t, ok)
				assert.Nil(t, wf)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.expect, wf.Name)

			again, _ := router.Route(tc.text)
			assert.Same(t, wf, again)
		})
	}
}

func TestScore(t *testing.T) {
	wf := &Descriptor{Name: "w", TriggerKeywords: []string{"a", "b", "c", "d"}}
	assert.Equal(t, 0.0, Score(wf, "xyz"))
	assert.InDelta(t, 0.6, Score(wf, "AB"), 1e-9)
	assert.Equal(t, 1.0, Score(wf, "abcd"))
}

func TestRouter_TieKeepsRegistrationOrder(t *testing.T) {
	steps := func(string, *ExecutionContext) []Step { return nil }
	first := &Descriptor{Name: "first", TriggerKeywords: []string{"推广"}, Steps: steps}
	second := &Descriptor{Name: "second", TriggerKeywords: []string{"推广"}, Steps: steps}
	set, err := NewSet(first, second)
	require.NoError(t, err)

	wf, ok := NewRouter(set).Route("帮我推广")
	require.True(t, ok)
	assert.Equal(t, "first", wf.Name)
}

func TestSet_RejectsDuplicates(t *testing.T) {
	_, err := NewSet(HotTrendCreation(), HotTrendCreation())
	assert.Error(t, err)
}

func TestSet_Validate(t *testing.T) {
	assert.NoError(t, builtinSet(t).Validate(toolRegistry(t)))

	bad := &Descriptor{
		Name: "bad",
		Steps: func(string, *ExecutionContext) []Step {
			return []Step{
				{Name: "a", Capability: "missing_tool", OutputKey: "a"},
				{Name: "b", Capability: tools.GetTrendingTopics, OutputKey: "b",
					DynamicArgs: map[string]DynamicArg{"x": {Source: "later"}}},
				{Name: "c", Capability: tools.GetTrendingTopics, OutputKey: "later"},
			}
		},
	}
	set, err := NewSet(bad)
	require.NoError(t, err)
	err = set.Validate(toolRegistry(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, capability.ErrNotFound))
	assert.Contains(t, err.Error(), "before it is produced")
}

func TestExecute_HotTrendCreationScenario(t *testing.T) {
	set := builtinSet(t)
	wf, ok := NewRouter(set).Route("帮我从热点到创作一条龙完成")
	require.True(t, ok)

	exec := NewExecutor(toolRegistry(t))
	events := collect(exec.Execute(context.Background(), wf, "帮我从热点到创作一条龙完成", DetectInputs("帮我从热点到创作一条龙完成")))

	assert.Equal(t, []model.EventType{
		model.EventStepStart, model.EventStepResult,
		model.EventStepStart, model.EventStepResult,
		model.EventStepStart, model.EventStepResult,
		model.EventCard, model.EventCard, model.EventCard,
		model.EventToken, model.EventDone,
	}, types(events))

	assert.Equal(t, "fetch_trends", events[0].(model.StepStartEvent).Step)
	assert.Equal(t, "generate_inspiration", events[2].(model.StepStartEvent).Step)
	assert.Equal(t, "generate_tags", events[4].(model.StepStartEvent).Step)

	tags := events[5].(model.StepResultEvent).Data
	assert.False(t, capability.IsError(tags))

	summary := events[9].(model.TokenEvent).Content
	assert.Contains(t, summary, "春天的第一缕阳光")
	assert.Contains(t, summary, "5 个歌名灵感")
	assert.Equal(t, summary, events[10].(model.DoneEvent).Summary)
	assert.Equal(t, "🏷️ 宣推标签", events[8].(model.CardEvent).Card.Title)
}

func TestExecute_FullPromotionUsesDetectedBudget(t *testing.T) {
	wf := FullPromotion()
	exec := NewExecutor(toolRegistry(t))
	events := collect(exec.Execute(context.Background(), wf, "全链路推广，预算 2000 元", DetectInputs("全链路推广，预算 2000 元")))

	var plan map[string]any
	for _, ev := range events {
		if r, ok := ev.(model.StepResultEvent); ok && r.Step == "create_plan" {
			plan = r.Data
		}
	}
	require.NotNil(t, plan)
	assert.Equal(t, "凌晨三点半", plan["song_name"])
	assert.Equal(t, 2000.0, plan["plan"].(map[string]any)["total_budget"])

	last := events[len(events)-1].(model.DoneEvent)
	assert.Contains(t, last.Summary, "《凌晨三点半》")
	assert.Contains(t, last.Summary, "从 3 首候选")
}

func TestExecute_StepFailureDoesNotStopRun(t *testing.T) {
	reg := capability.NewRegistry()
	reg.MustRegister(capability.Descriptor{Name: "fail", Handler: capability.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) { return nil, errors.New("上游不可用") })})
	reg.MustRegister(capability.Descriptor{Name: "echo", Handler: capability.HandlerFunc(
		func(ctx context.Context, args map[string]any) (any, error) { return args, nil })})

	wf := &Descriptor{
		Name: "test",
		Steps: func(string, *ExecutionContext) []Step {
			return []Step{
				{Name: "first", Capability: "fail", OutputKey: "first"},
				{Name: "narrate", Description: "思考中"},
				{Name: "second", Capability: "echo", Args: map[string]any{"k": "v"}, OutputKey: "second",
					DynamicArgs: map[string]DynamicArg{
						"missing": {Source: "nowhere", Extract: func(map[string]any) (any, bool) { return 1, true }},
					}},
			}
		},
		Summarize: func(ec *ExecutionContext) string { return "完成" },
	}

	events := collect(NewExecutor(reg).Execute(context.Background(), wf, "", nil))
	assert.Equal(t, []model.EventType{
		model.EventStepStart, model.EventStepResult,
		model.EventStepStart,
		model.EventStepStart, model.EventStepResult,
		model.EventToken, model.EventDone,
	}, types(events))

	assert.Equal(t, map[string]any{"error": "上游不可用"}, events[1].(model.StepResultEvent).Data)
	assert.Equal(t, map[string]any{"k": "v"}, events[4].(model.StepResultEvent).Data)
}

func TestExecute_PanicBecomesSingleError(t *testing.T) {
	reg := toolRegistry(t)
	wf := &Descriptor{
		Name: "panicky",
		Steps: func(string, *ExecutionContext) []Step {
			return []Step{{Name: "fetch", Capability: tools.GetTrendingTopics, OutputKey: "trends"}}
		},
		Cards: func(ec *ExecutionContext) []model.Card {
			var m map[string]any
			m["boom"] = 1
			return nil
		},
	}
	events := collect(NewExecutor(reg).Execute(context.Background(), wf, "", nil))
	assert.Equal(t, []model.EventType{model.EventStepStart, model.EventStepResult, model.EventError}, types(events))
	assert.Equal(t, model.FriendlyErrorMessage, events[2].(model.ErrorEvent).Content)
}

func TestExecute_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := collect(NewExecutor(toolRegistry(t)).Execute(ctx, HotTrendCreation(), "", nil))
	assert.Equal(t, []model.EventType{model.EventStepStart}, types(events))
}

func TestExecute_ConsumerBreak(t *testing.T) {
	seq := NewExecutor(toolRegistry(t)).Execute(context.Background(), HotTrendCreation(), "", nil)
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestDetectInputs(t *testing.T) {
	assert.Equal(t, "民谣", DetectStyle("想写一首民谣"))
	assert.Equal(t, "R&B", DetectStyle("来点 r&b 风格"))
	assert.Equal(t, "流行", DetectStyle("随便"))

	assert.Equal(t, 2000.0, DetectBudget("预算2000"))
	assert.Equal(t, 3000.0, DetectBudget("我有3000块"))
	assert.Equal(t, 10000.0, DetectBudget("预算 1 万"))
	assert.Equal(t, 1000.0, DetectBudget("帮我推广"))
}

func TestExtractors(t *testing.T) {
	title, ok := topTopicTitle(map[string]any{"topics": []any{map[string]any{"title": "国风新潮"}}})
	require.True(t, ok)
	assert.Equal(t, "国风新潮", title)

	_, ok = topTopicTitle(map[string]any{"error": "x"})
	assert.False(t, ok)

	name, ok := firstSongName(map[string]any{"song_names": []string{"《旅行的温度》"}})
	require.True(t, ok)
	assert.Equal(t, "旅行的温度", name)
}
