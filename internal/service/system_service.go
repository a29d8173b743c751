package service

import "music-copilot-go/internal/model"

var quickActions = []model.QuickAction{
	{ID: "trends", Icon: "🔥", Label: "热点趋势", Prompt: "最近有什么热点可以用来创作？"},
	{ID: "promote", Icon: "🚀", Label: "推歌建议", Prompt: "帮我分析一下我该推哪首歌"},
	{ID: "portrait", Icon: "👥", Label: "听众画像", Prompt: "帮我看看我的听众画像"},
	{ID: "data", Icon: "📊", Label: "数据分析", Prompt: "最近播放量有什么变化？"},
	{ID: "creation_flow", Icon: "✨", Label: "全流程创作", Prompt: "帮我从热点到创作一条龙完成"},
	{ID: "promo_flow", Icon: "📋", Label: "全链路宣推", Prompt: "帮我做一套完整宣推方案"},
}

// QuickActions 返回首页快捷操作。
func QuickActions() []model.QuickAction {
	return append([]model.QuickAction(nil), quickActions...)
}
