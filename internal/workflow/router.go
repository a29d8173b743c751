package workflow

import (
	"math"
	"strings"
)

const (
	// keywordWeight 是每命中一个触发词增加的分数。
	keywordWeight = 0.3
	// Threshold 是选中工作流所需的最低分数。
	Threshold = 0.3
)

// Router 按触发词命中情况为用户输入选择工作流。
type Router struct {
	set *Set
}

// NewRouter 创建路由器。
func NewRouter(set *Set) *Router {
	return &Router{set: set}
}

// Score 计算 text 对工作流的匹配分数：每命中一个触发词加 0.3，上限 1.0。
func Score(wf *Descriptor, text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range wf.TriggerKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			hits++
		}
	}
	return math.Min(float64(hits)*keywordWeight, 1.0)
}

// Route 返回得分最高且不低于阈值的工作流，同分保留先注册的一个。
// 没有匹配时返回 false，调用方应回退到工具调用循环。
func (r *Router) Route(text string) (*Descriptor, bool) {
	var best *Descriptor
	bestScore := 0.0
	for _, wf := range r.set.order {
		if score := Score(wf, text); score > bestScore {
			best, bestScore = wf, score
		}
	}
	if best == nil || bestScore < Threshold {
		return nil, false
	}
	return best, true
}
