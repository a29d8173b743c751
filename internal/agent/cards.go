package agent

import (
	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
	"music-copilot-go/internal/tools"
)

// ExtractCard 把工具结果转换为展示卡片。
// 未知工具或失败结果不产生卡片。
func ExtractCard(name string, result map[string]any) (model.Card, bool) {
	if result == nil || capability.IsError(result) {
		return model.Card{}, false
	}

	switch name {
	case tools.GetTrendingTopics:
		return model.NewCard(model.CardHotTrend, "🔥 热点趋势",
			map[string]any{"topics": result["topics"], "updated_at": result["updated_at"]},
			model.CallbackAction("基于热点生成灵感", "generate_inspiration")), true
	case tools.GenerateSongInspiration:
		return model.NewCard(model.CardHotTrend, "💡 创作灵感", result,
			model.CallbackAction("生成宣推标签", "generate_tags")), true
	case tools.GeneratePromoTags:
		return model.NewCard(model.CardHotTrend, "🏷️ 宣推标签", result), true
	case tools.RecommendSongsToPromote:
		return model.NewCard(model.CardSongRecommend, "🎵 推歌建议",
			map[string]any{"recommendations": result["recommendations"], "diagnosis": result["diagnosis"]},
			model.CallbackAction("生成投放计划", "create_plan")), true
	case tools.GeneratePromotionPlan:
		return model.NewCard(model.CardPromotionPlan, "📋 投放计划", result,
			model.DeeplinkAction("开始投放", "/promotion/create")), true
	case tools.GetPromotionReport:
		return model.NewCard(model.CardDataReport, "📊 宣推复盘报告", result,
			model.DeeplinkAction("追加投放", "/promotion/create")), true
	case tools.GetAudiencePortrait:
		return model.NewCard(model.CardAudiencePortrait, "👥 听众画像", result), true
	case tools.AnalyzeCrossPlatform:
		return model.NewCard(model.CardDataReport, "📈 跨平台分析", result), true
	case tools.ExplainMetricChange:
		return model.NewCard(model.CardDataReport, "📉 指标变化分析", result), true
	case tools.SearchKnowledge, tools.SearchKnowledgeBase, tools.CheckUploadCompliance:
		return model.NewCard(model.CardKnowledge, "📖 知识解答", result,
			model.DeeplinkAction("联系客服", "/support")), true
	default:
		return model.Card{}, false
	}
}
