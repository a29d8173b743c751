package model

// CardType 是卡片类型的封闭枚举。
type CardType string

const (
	CardHotTrend         CardType = "hot_trend"
	CardSongRecommend    CardType = "song_recommend"
	CardPromotionPlan    CardType = "promotion_plan"
	CardDataReport       CardType = "data_report"
	CardAudiencePortrait CardType = "audience_portrait"
	CardKnowledge        CardType = "knowledge"
	CardQuickActions     CardType = "quick_actions"
)

// Valid 判断卡片类型是否属于枚举。
func (t CardType) Valid() bool {
	switch t {
	case CardHotTrend, CardSongRecommend, CardPromotionPlan, CardDataReport,
		CardAudiencePortrait, CardKnowledge, CardQuickActions:
		return true
	}
	return false
}

// ActionType 是卡片上可操作按钮的类型。
type ActionType string

const (
	ActionLink     ActionType = "link"
	ActionCallback ActionType = "callback"
	ActionDeeplink ActionType = "deeplink"
)

// Card 是前端直接渲染的结构化展示单元。
type Card struct {
	CardType CardType       `json:"card_type"`
	Title    string         `json:"title"`
	Data     map[string]any `json:"data"`
	Actions  []CardAction   `json:"actions"`
}

// CardAction 是卡片上的一个操作，link/deeplink 使用 URL，callback 使用 Payload。
type CardAction struct {
	Label      string         `json:"label"`
	ActionType ActionType     `json:"action_type"`
	URL        string         `json:"url,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewCard 创建卡片，Actions 为空时序列化为 []。
func NewCard(cardType CardType, title string, data map[string]any, actions ...CardAction) Card {
	if data == nil {
		data = map[string]any{}
	}
	if actions == nil {
		actions = []CardAction{}
	}
	return Card{CardType: cardType, Title: title, Data: data, Actions: actions}
}

// CallbackAction 创建回调类型的操作。
func CallbackAction(label, action string) CardAction {
	return CardAction{Label: label, ActionType: ActionCallback, Payload: map[string]any{"action": action}}
}

// DeeplinkAction 创建站内跳转操作。
func DeeplinkAction(label, url string) CardAction {
	return CardAction{Label: label, ActionType: ActionDeeplink, URL: url}
}

// QuickAction 是首页快捷操作。
type QuickAction struct {
	ID     string `json:"id"`
	Icon   string `json:"icon"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}
