// Package tools 实现音乐人助手的领域工具，每个工具以 capability.Descriptor 的形式注册。
// 当前数据源为内置样例数据，接入真实热榜与宣推系统时只需替换处理函数。
package tools

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"music-copilot-go/internal/capability"
)

// 工具名称
const (
	GetTrendingTopics       = "get_trending_topics"
	GenerateSongInspiration = "generate_song_inspiration"
	GeneratePromoTags       = "generate_promo_tags"
	RecommendSongsToPromote = "recommend_songs_to_promote"
	GeneratePromotionPlan   = "generate_promotion_plan"
	GetPromotionReport      = "get_promotion_report"
	GetAudiencePortrait     = "get_audience_portrait"
	AnalyzeCrossPlatform    = "analyze_cross_platform"
	ExplainMetricChange     = "explain_metric_change"
	SearchKnowledge         = "search_knowledge"
	CheckUploadCompliance   = "check_upload_compliance"
	SearchKnowledgeBase     = "search_knowledge_base"
)

type trendingTopic struct {
	ID          string
	Title       string
	Platform    string
	HeatScore   int
	Category    string
	Trend       string
	RelatedTags []string
	MusicAngle  string
}

func (t trendingTopic) toMap() map[string]any {
	return map[string]any{
		"id":           t.ID,
		"title":        t.Title,
		"platform":     t.Platform,
		"heat_score":   t.HeatScore,
		"category":     t.Category,
		"trend":        t.Trend,
		"related_tags": t.RelatedTags,
		"music_angle":  t.MusicAngle,
	}
}

var trendingTopics = []trendingTopic{
	{"t001", "春天的第一缕阳光", "抖音", 9800, "情感", "rising", []string{"春日絮语", "治愈系", "暖阳"}, "适合创作温暖治愈风格的轻民谣，副歌可以用'阳光'意象"},
	{"t002", "深夜emo文学", "小红书", 8500, "情感", "stable", []string{"深夜情感", "emo", "失眠"}, "适合创作慢节奏 R&B 或 Lo-fi，带独白式歌词"},
	{"t003", "打工人的早八战歌", "B站", 7600, "搞笑/生活", "rising", []string{"打工人", "上班", "早八"}, "适合创作节奏感强的电子/说唱，歌词可以走幽默路线"},
	{"t004", "一个人的旅行", "抖音", 9200, "旅行", "rising", []string{"独旅", "说走就走", "风景"}, "适合创作清新吉他民谣或 Indie Pop，旋律明亮自由"},
	{"t005", "国风新潮", "快手", 8800, "国风", "hot", []string{"国风", "古典", "新中式"}, "适合融合古风与电子/嘻哈元素，加入传统乐器采样"},
	{"t006", "暗恋的100种表达", "微博", 7200, "情感", "stable", []string{"暗恋", "青春", "心动"}, "适合创作甜系 Pop 或轻快 R&B，副歌突出心跳加速感"},
}

var songNameTemplates = []string{
	"《%s的温度》", "《给%s的信》", "《最后一个%s》", "《%s碎片》", "《如果%s会说话》",
	"《%s博物馆》", "《偷走%s》", "《%s陷阱》", "《%s的另一面》", "《和%s说再见》",
}

var referenceArtists = map[string][]string{
	"流行":  {"周杰伦", "林俊杰", "薛之谦"},
	"民谣":  {"陈鸿宇", "房东的猫", "花粥"},
	"R&B": {"方大同", "陶喆", "袁娅维"},
	"电子":  {"Anti-General", "Carta", "Howie Lee"},
	"说唱":  {"GAI", "万妮达", "马思唯"},
	"国风":  {"银临", "Winky诗", "河图"},
}

var platformTags = map[string][]string{
	"抖音":  {"#抖音音乐", "#热门BGM", "#听歌识曲"},
	"快手":  {"#快手音乐人", "#原创歌手", "#好歌推荐"},
	"B站":  {"#B站音乐", "#翻唱原创", "#音乐分享"},
	"小红书": {"#歌单推荐", "#宝藏歌曲", "#耳朵怀孕"},
}

var bestPostTimes = map[string]string{
	"抖音":  "12:00-13:00 / 18:00-20:00 / 21:00-23:00",
	"快手":  "11:00-13:00 / 17:00-19:00 / 20:00-22:00",
	"B站":  "18:00-20:00 / 21:00-23:00",
	"小红书": "12:00-14:00 / 19:00-21:00 / 22:00-23:30",
}

func trendingTopicsDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        GetTrendingTopics,
		Description: "获取当前热门话题和趋势，可按平台和类别筛选。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("platform", "string", "平台筛选", capability.Enum("抖音", "快手", "B站", "微博", "小红书", "all"), capability.Default("all")),
			capability.Param("category", "string", "类别筛选", capability.Enum("情感", "搞笑/生活", "旅行", "国风", "all"), capability.Default("all")),
			capability.Param("limit", "integer", "返回数量上限", capability.Default(5)),
		}),
		Handler: capability.HandlerFunc(getTrendingTopics),
	}
}

func getTrendingTopics(ctx context.Context, args map[string]any) (any, error) {
	platform := capability.String(args, "platform", "all")
	category := capability.String(args, "category", "all")
	limit := capability.Int(args, "limit", 5)
	if limit <= 0 {
		limit = 5
	}

	matched := make([]trendingTopic, 0, len(trendingTopics))
	for _, t := range trendingTopics {
		if platform != "all" && t.Platform != platform {
			continue
		}
		if category != "all" && t.Category != category {
			continue
		}
		matched = append(matched, t)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].HeatScore > matched[j].HeatScore })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	topics := make([]any, 0, len(matched))
	for _, t := range matched {
		topics = append(topics, t.toMap())
	}
	return map[string]any{
		"topics":      topics,
		"updated_at":  time.Now().Format("2006-01-02 15:04"),
		"total_count": len(topics),
	}, nil
}

func songInspirationDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        GenerateSongInspiration,
		Description: "基于热点话题生成歌曲创作灵感，包括歌名建议、Hook 文案和创作方向。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("topic", "string", "热点话题关键词", capability.Required()),
			capability.Param("style", "string", "期望的音乐风格，如 流行/民谣/R&B/电子/说唱/国风", capability.Default("流行")),
			capability.Param("mood", "string", "期望的情绪氛围，如 温暖/伤感/欢快/激昂/治愈", capability.Default("温暖")),
		}),
		Handler: capability.HandlerFunc(generateSongInspiration),
	}
}

func generateSongInspiration(ctx context.Context, args map[string]any) (any, error) {
	topic, err := capability.RequireString(args, "topic")
	if err != nil {
		return nil, err
	}
	style := capability.String(args, "style", "流行")
	mood := capability.String(args, "mood", "温暖")

	// 同一话题得到稳定的歌名组合
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	offset := int(h.Sum32() % uint32(len(songNameTemplates)))
	names := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		names = append(names, fmt.Sprintf(songNameTemplates[(offset+i)%len(songNameTemplates)], topic))
	}

	bpm := "110-128"
	if mood == "伤感" || mood == "治愈" {
		bpm = "85-95"
	}
	artists, ok := referenceArtists[style]
	if !ok {
		artists = []string{"毛不易", "赵雷", "李荣浩"}
	}

	return map[string]any{
		"topic":      topic,
		"style":      style,
		"mood":       mood,
		"song_names": names,
		"hook_ideas": []string{
			fmt.Sprintf("如果%s有颜色，那一定是你眼中的光", topic),
			fmt.Sprintf("在%s的尽头，我找到了答案", topic),
			fmt.Sprintf("每一个关于%s的梦，都值得被唱成歌", topic),
		},
		"structure_suggestion": fmt.Sprintf("建议采用 Verse-PreChorus-Chorus 结构，Verse 用叙事铺陈'%s'场景，PreChorus 情绪递进，Chorus 用%s的旋律释放情感，风格偏%s，BPM 建议 %s",
			topic, mood, style, bpm),
		"reference_artists": artists,
	}, nil
}

func promoTagsDescriptor() capability.Descriptor {
	return capability.Descriptor{
		Name:        GeneratePromoTags,
		Description: "为歌曲生成站外宣推标签和话题建议。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("song_name", "string", "歌曲名称", capability.Required()),
			capability.Param("platform", "string", "目标发布平台", capability.Enum("抖音", "快手", "B站", "小红书"), capability.Default("抖音")),
		}),
		Handler: capability.HandlerFunc(generatePromoTags),
	}
}

func generatePromoTags(ctx context.Context, args map[string]any) (any, error) {
	songName, err := capability.RequireString(args, "song_name")
	if err != nil {
		return nil, err
	}
	platform := capability.String(args, "platform", "抖音")

	tags := []string{"#" + songName, "#新歌推荐", "#音乐人", "#原创音乐"}
	tags = append(tags, platformTags[platform]...)

	postTime, ok := bestPostTimes[platform]
	if !ok {
		postTime = "19:00-22:00"
	}
	return map[string]any{
		"song_name":        songName,
		"platform":         platform,
		"recommended_tags": tags,
		"title_suggestions": []string{
			fmt.Sprintf("听完这首《%s》，我破防了…", songName),
			fmt.Sprintf("凌晨三点单曲循环的《%s》", songName),
			fmt.Sprintf("被《%s》治愈的每一天", songName),
		},
		"best_post_time": postTime,
		"content_tips":   fmt.Sprintf("在%s发布时，建议用 15-30 秒副歌片段作为视频 BGM，搭配歌词字幕卡点，开头 3 秒设置悬念或情感钩子", platform),
	}, nil
}
