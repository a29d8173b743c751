package workflow

import (
	"fmt"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/tools"
)

// HotTrendCreation 从热点出发依次生成创作灵感与宣推标签。
func HotTrendCreation() *Descriptor {
	return &Descriptor{
		Name:            "hot_trend_creation",
		Description:     "从热点趋势出发，一站式完成灵感生成和宣推标签，帮你从热点到创作方案闭环",
		TriggerKeywords: []string{"一条龙", "完整创作", "从热点到创作", "帮我写歌", "一整套", "全流程创作"},
		Steps: func(text string, ec *ExecutionContext) []Step {
			return []Step{
				{
					Name:        "fetch_trends",
					Description: "📡 正在获取最新热点趋势...",
					Capability:  tools.GetTrendingTopics,
					Args:        map[string]any{"platform": "all", "limit": 5},
					OutputKey:   "trends",
				},
				{
					Name:        "generate_inspiration",
					Description: "💡 基于热点生成创作灵感...",
					Capability:  tools.GenerateSongInspiration,
					Args:        map[string]any{"style": inputString(ec, InputStyle, defaultStyle)},
					DynamicArgs: map[string]DynamicArg{
						"topic": {Source: "trends", Extract: topTopicTitle},
					},
					OutputKey: "inspiration",
				},
				{
					Name:        "generate_tags",
					Description: "🏷️ 生成宣推标签和话题...",
					Capability:  tools.GeneratePromoTags,
					DynamicArgs: map[string]DynamicArg{
						"song_name": {Source: "inspiration", Extract: firstSongName},
					},
					OutputKey: "tags",
				},
			}
		},
		Cards: func(ec *ExecutionContext) []model.Card {
			var cards []model.Card
			if r, ok := ec.Result("trends"); ok {
				cards = append(cards, model.NewCard(model.CardHotTrend, "🔥 热点趋势", r))
			}
			if r, ok := ec.Result("inspiration"); ok {
				cards = append(cards, model.NewCard(model.CardHotTrend, "💡 创作灵感", r))
			}
			if r, ok := ec.Result("tags"); ok {
				cards = append(cards, model.NewCard(model.CardHotTrend, "🏷️ 宣推标签", r))
			}
			return cards
		},
		Summarize: func(ec *ExecutionContext) string {
			topTopic := "当前热点"
			songCount := 0
			if r, ok := ec.Result("trends"); ok {
				if title, ok := topTopicTitle(r); ok {
					topTopic = title.(string)
				}
			}
			if r, ok := ec.Result("inspiration"); ok {
				songCount = len(listAt(r, "song_names"))
			}
			return fmt.Sprintf("✅ **创作方案已生成！**\n\n"+
				"基于热点 **「%s」**，我为你准备了：\n"+
				"- 🎵 %d 个歌名灵感\n"+
				"- 🎤 Hook 创意和歌曲结构建议\n"+
				"- 🏷️ 平台专属宣推标签\n\n"+
				"你可以基于以上方案开始创作，完成后我可以帮你做上传预检和宣推计划。", topTopic, songCount)
		},
	}
}
