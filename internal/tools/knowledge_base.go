package tools

import (
	"context"
	"fmt"

	"music-copilot-go/internal/capability"
	"music-copilot-go/internal/model"
)

// KnowledgeSearcher 检索已上传的知识文档分块。
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]model.KnowledgeHit, error)
}

func knowledgeBaseDescriptor(searcher KnowledgeSearcher) capability.Descriptor {
	return capability.Descriptor{
		Name:        SearchKnowledgeBase,
		Description: "在运营上传的知识文档中检索与问题最相关的段落，适用于内置问答未覆盖的规则细节。",
		Parameters: capability.ObjectSchema([]capability.NamedProperty{
			capability.Param("query", "string", "检索问题", capability.Required()),
			capability.Param("top_k", "integer", "返回段落数量", capability.Default(3)),
		}),
		Handler: capability.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			query, err := capability.RequireString(args, "query")
			if err != nil {
				return nil, err
			}
			topK := capability.Int(args, "top_k", 3)
			if topK <= 0 || topK > 10 {
				topK = 3
			}
			hits, err := searcher.Search(ctx, query, topK)
			if err != nil {
				return nil, fmt.Errorf("知识库检索失败: %w", err)
			}
			results := make([]any, 0, len(hits))
			for _, h := range hits {
				results = append(results, map[string]any{
					"document_id": h.DocumentID,
					"title":       h.Title,
					"content":     h.Content,
					"score":       h.Score,
				})
			}
			return map[string]any{
				"query":       query,
				"results":     results,
				"total_found": len(results),
			}, nil
		}),
	}
}
