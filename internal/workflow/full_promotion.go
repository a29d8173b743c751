package workflow

import (
	"fmt"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/tools"
)

const fallbackPlanSong = "海边的风"

// FullPromotion 从听众画像到投放计划的全链路宣推。
func FullPromotion() *Descriptor {
	return &Descriptor{
		Name:            "full_promotion",
		Description:     "从听众分析到宣推策略的全链路方案：分析听众画像 → 推荐最值得推的歌 → 生成投放计划",
		TriggerKeywords: []string{"全链路", "完整宣推", "帮我做推广", "一套宣推", "全流程推广", "系统推广"},
		Steps: func(text string, ec *ExecutionContext) []Step {
			budget := inputFloat(ec, InputBudget, defaultBudget)
			return []Step{
				{
					Name:        "audience_analysis",
					Description: "👥 正在分析你的听众画像...",
					Capability:  tools.GetAudiencePortrait,
					OutputKey:   "portrait",
				},
				{
					Name:        "song_recommend",
					Description: "🎵 基于数据推荐最值得推广的歌曲...",
					Capability:  tools.RecommendSongsToPromote,
					Args:        map[string]any{"budget": budget, "goal": "播放量增长"},
					OutputKey:   "recommendations",
				},
				{
					Name:        "create_plan",
					Description: "📋 生成定制投放计划...",
					Capability:  tools.GeneratePromotionPlan,
					Args:        map[string]any{"budget": budget},
					DynamicArgs: map[string]DynamicArg{
						"song_name": {Source: "recommendations", Extract: func(r map[string]any) (any, bool) {
							if name, ok := topRecommendedSong(r); ok {
								return name, true
							}
							return fallbackPlanSong, true
						}},
					},
					OutputKey: "plan",
				},
			}
		},
		Cards: func(ec *ExecutionContext) []model.Card {
			var cards []model.Card
			if r, ok := ec.Result("portrait"); ok {
				cards = append(cards, model.NewCard(model.CardAudiencePortrait, "👥 听众画像", r))
			}
			if r, ok := ec.Result("recommendations"); ok {
				cards = append(cards, model.NewCard(model.CardSongRecommend, "🎵 推歌建议", r))
			}
			if r, ok := ec.Result("plan"); ok {
				cards = append(cards, model.NewCard(model.CardPromotionPlan, "📋 投放计划", r,
					model.DeeplinkAction("开始投放", "/promotion/create")))
			}
			return cards
		},
		Summarize: func(ec *ExecutionContext) string {
			topSong := "你的歌曲"
			candidates := 0
			if r, ok := ec.Result("recommendations"); ok {
				candidates = len(listAt(r, "recommendations"))
				if name, ok := topRecommendedSong(r); ok {
					topSong = name.(string)
				}
			}
			return fmt.Sprintf("✅ **全链路宣推方案已就绪！**\n\n"+
				"基于你的听众画像分析，我推荐重点推广 **《%s》**：\n"+
				"- 👥 听众画像已分析，核心受众定位清晰\n"+
				"- 🎵 从 %d 首候选中选出最优推广歌曲\n"+
				"- 📋 投放计划已生成，包含渠道分配和执行节奏\n\n"+
				"确认方案后可直接开始投放，投放结束后我可以帮你做复盘分析。", topSong, candidates)
		},
	}
}

// Builtin 返回内置工作流，顺序即路由同分时的优先顺序。
func Builtin() []*Descriptor {
	return []*Descriptor{HotTrendCreation(), FullPromotion()}
}
