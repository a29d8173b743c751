package tools

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"music-copilot-go/internal/capability"
)

type songMetrics struct {
	ID             string
	Name           string
	ReleaseDate    string
	PlayCount      int
	CompletionRate float64
	ReplayRate     float64
	CollectionRate float64
	SearchPlayRate float64
	LeverageRatio  float64
	Stage          string
	Trend          string
}

func (s songMetrics) toMap() map[string]any {
	return map[string]any{
		"id":               s.ID,
		"name":             s.Name,
		"release_date":     s.ReleaseDate,
		"play_count":       s.PlayCount,
		"completion_rate":  s.CompletionRate,
		"replay_rate":      s.ReplayRate,
		"collection_rate":  s.CollectionRate,
		"search_play_rate": s.SearchPlayRate,
		"leverage_ratio":   s.LeverageRatio,
		"stage":            s.Stage,
		"trend":            s.Trend,
	}
}

var catalog = []songMetrics{
	{"s001", "月光信箱", "2026-01-15", 128000, 0.72, 0.35, 0.08, 0.12, 3.2, "潜力期", "上升"},
	{"s002", "城市候鸟", "2025-11-20", 356000, 0.65, 0.22, 0.05, 0.08, 1.8, "成熟期", "平稳"},
	{"s003", "海边的风", "2026-02-01", 45000, 0.78, 0.42, 0.11, 0.15, 5.1, "冷启动", "飙升"},
	{"s004", "褪色的照片", "2025-08-10", 890000, 0.58, 0.18, 0.04, 0.06, 1.2, "衰退期", "下降"},
	{"s005", "凌晨三点半", "2026-02-10", 22000, 0.81, 0.48, 0.13, 0.18, 6.8, "冷启动", "飙升"},
}

var budgetShares = []float64{0.5, 0.3, 0.2}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func recommendSongsDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        RecommendSongsToPromote,
		Description: "基于歌曲数据指标推荐最值得宣推的歌曲，并给出可解释的理由。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("budget", "number", "可用宣推预算（元）", capability.Default(1000)),
			capability.Param("goal", "string", "宣推目标", capability.Enum("播放量增长", "涨粉", "上榜", "收入提升"), capability.Default("播放量增长")),
		}),
		Handler: capability.HandlerFunc(recommendSongs),
	}
}

func recommendSongs(ctx context.Context, args map[string]any) (any, error) {
	budget := capability.Float(args, "budget", 1000)
	goal := capability.String(args, "goal", "播放量增长")

	ranked := append([]songMetrics(nil), catalog...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].LeverageRatio > ranked[j].LeverageRatio })

	recommendations := make([]any, 0, len(budgetShares))
	for i, song := range ranked[:len(budgetShares)] {
		recommendations = append(recommendations, map[string]any{
			"rank":             i + 1,
			"song":             song.toMap(),
			"reasons":          recommendReasons(song),
			"suggested_budget": math.Round(budget * budgetShares[i]),
		})
	}

	highLeverage := 0
	for _, s := range catalog {
		if s.LeverageRatio >= 3.0 {
			highLeverage++
		}
	}
	return map[string]any{
		"goal":            goal,
		"total_budget":    budget,
		"recommendations": recommendations,
		"diagnosis": fmt.Sprintf("在你的 %d 首歌中，有 %d 首歌的杠杆率 ≥ 3.0，建议优先投放这些高潜力歌曲",
			len(catalog), highLeverage),
	}, nil
}

func recommendReasons(s songMetrics) []string {
	var reasons []string
	if s.CompletionRate >= 0.75 {
		reasons = append(reasons, fmt.Sprintf("完播率 %s，高于平均水平", percent(s.CompletionRate)))
	}
	if s.ReplayRate >= 0.35 {
		reasons = append(reasons, fmt.Sprintf("复播率 %s，用户粘性强", percent(s.ReplayRate)))
	}
	if s.SearchPlayRate >= 0.10 {
		reasons = append(reasons, fmt.Sprintf("搜播率 %s，自来水效应明显", percent(s.SearchPlayRate)))
	}
	if s.LeverageRatio >= 3.0 {
		reasons = append(reasons, fmt.Sprintf("杠杆率 %.1fx，投入产出比高", s.LeverageRatio))
	}
	if s.Trend == "飙升" {
		reasons = append(reasons, "当前处于飙升趋势，适合趁势追投")
	}
	if len(reasons) == 0 {
		reasons = []string{"综合指标表现良好"}
	}
	return reasons
}

func promotionPlanDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        GeneratePromotionPlan,
		Description: "为指定歌曲生成详细的投放计划，包括人群定向、渠道分配和执行节奏。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("song_name", "string", "歌曲名称", capability.Required()),
			capability.Param("budget", "number", "投放预算（元）", capability.Default(500)),
			capability.Param("target", "string", "投放目标", capability.Default("播放量增长")),
			capability.Param("duration_days", "integer", "投放周期（天）", capability.Default(7)),
		}),
		Handler: capability.HandlerFunc(generatePromotionPlan),
	}
}

func generatePromotionPlan(ctx context.Context, args map[string]any) (any, error) {
	songName, err := capability.RequireString(args, "song_name")
	if err != nil {
		return nil, err
	}
	budget := capability.Float(args, "budget", 500)
	target := capability.String(args, "target", "播放量增长")
	days := capability.Int(args, "duration_days", 7)
	if days <= 0 {
		days = 7
	}

	estimate := func(lo, hi float64) string {
		return fmt.Sprintf("%d", int(budget*(lo+rand.Float64()*(hi-lo))))
	}
	return map[string]any{
		"song_name": songName,
		"target":    target,
		"plan": map[string]any{
			"total_budget": budget,
			"duration":     fmt.Sprintf("%d 天", days),
			"daily_budget": math.Round(budget / float64(days)),
			"targeting": map[string]any{
				"age":      "18-30 岁",
				"gender":   "不限",
				"interest": []string{"音乐", "情感", "生活记录"},
				"region":   "一二线城市优先，逐步放开",
			},
			"channel_allocation": map[string]any{
				"站内推荐":  fmt.Sprintf("%.0f 元 (40%%)", budget*0.4),
				"短视频投放": fmt.Sprintf("%.0f 元 (35%%)", budget*0.35),
				"搜索优化":  fmt.Sprintf("%.0f 元 (15%%)", budget*0.15),
				"社交传播":  fmt.Sprintf("%.0f 元 (10%%)", budget*0.1),
			},
			"timeline": []any{
				map[string]any{"phase": "预热期 (Day 1-2)", "action": "发布预告短视频，积累初始互动"},
				map[string]any{"phase": "冲量期 (Day 3-5)", "action": "加大投放力度，冲击推荐池"},
				map[string]any{"phase": "收尾期 (Day 6-7)", "action": "降低出价，优化 ROI，沉淀长尾"},
			},
		},
		"expected_results": map[string]any{
			"estimated_plays":       estimate(80, 150),
			"estimated_new_fans":    estimate(0.5, 2),
			"estimated_collections": estimate(3, 8),
		},
		"tips": "建议在投放第 3 天检查完播率，若低于 60% 可考虑更换投放素材",
	}, nil
}

func promotionReportDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        GetPromotionReport,
		Description: "获取歌曲宣推效果复盘报告。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("song_name", "string", "歌曲名称", capability.Default("月光信箱")),
		}),
		Handler: capability.HandlerFunc(getPromotionReport),
	}
}

func getPromotionReport(ctx context.Context, args map[string]any) (any, error) {
	songName := capability.String(args, "song_name", "月光信箱")

	daily := make([]any, 0, 14)
	for d := 1; d <= 14; d++ {
		daily = append(daily, map[string]any{
			"day":   fmt.Sprintf("02-%02d", d),
			"plays": 8000 + rand.IntN(17000),
			"spend": 60 + rand.IntN(60),
		})
	}
	return map[string]any{
		"song_name": songName,
		"period":    "2026-02-01 ~ 2026-02-14",
		"summary": map[string]any{
			"total_spend": "¥1,200",
			"total_plays": "186,500",
			"new_fans":    "1,230",
			"collections": "5,680",
			"roi":         "155.4 播放/元",
		},
		"daily_trend": daily,
		"audience_insight": map[string]any{
			"top_age":    "22-28 岁 (占比 45%)",
			"top_region": "广东、浙江、北京",
			"top_source": "推荐页 (62%) > 搜索 (18%) > 分享 (12%)",
		},
		"next_steps": []string{
			"杠杆率 5.1x，超出均值，建议追加 ¥500 预算延续热度",
			"搜播率持续上升，可投放搜索关键词广告",
			"收藏率 11% 较高，适合引导粉丝关注",
		},
	}, nil
}
