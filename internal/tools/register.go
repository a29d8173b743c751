package tools

import (
	"music-copilot-go/internal/capability"
)

// Option 调整注册的工具集合。
type Option func(*options)

type options struct {
	knowledge KnowledgeSearcher
}

// WithKnowledgeBase 额外注册基于知识文档检索的 search_knowledge_base 工具。
func WithKnowledgeBase(searcher KnowledgeSearcher) Option {
	return func(o *options) { o.knowledge = searcher }
}

// Register 把全部领域工具注册到 reg。
func Register(reg *capability.Registry, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	descriptors := []capability.Descriptor{
		trendingTopicsDescriptor(),
		songInspirationDescriptor(),
		promoTagsDescriptor(),
		recommendSongsDescriptor(),
		promotionPlanDescriptor(),
		promotionReportDescriptor(),
		audiencePortraitDescriptor(),
		crossPlatformDescriptor(),
		metricChangeDescriptor(),
		searchKnowledgeDescriptor(),
		uploadComplianceDescriptor(),
	}
	if o.knowledge != nil {
		descriptors = append(descriptors, knowledgeBaseDescriptor(o.knowledge))
	}

	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
