package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"music-copilot-go/internal/model"
	"music-copilot-go/pkg/embedding"
	"music-copilot-go/pkg/log"
)

// SearchService 在知识库索引中检索切块，实现 search_knowledge_base 工具的检索接口。
type SearchService interface {
	Search(ctx context.Context, query string, topK int) ([]model.KnowledgeHit, error)
}

type searchService struct {
	esClient        *elasticsearch.Client
	indexName       string
	embeddingClient embedding.Client
}

// NewSearchService 创建一个新的 SearchService 实例，embeddingClient 为 nil 时只做关键词检索。
func NewSearchService(esClient *elasticsearch.Client, indexName string, embeddingClient embedding.Client) SearchService {
	return &searchService{esClient: esClient, indexName: indexName, embeddingClient: embeddingClient}
}

func (s *searchService) Search(ctx context.Context, query string, topK int) ([]model.KnowledgeHit, error) {
	if topK <= 0 {
		topK = 3
	}
	log.Infof("[SearchService] 开始检索知识库, query: '%s', topK: %d", query, topK)

	normalized, phrase := normalizeQuery(query)
	if normalized != query {
		log.Infof("[SearchService] 规范化查询: '%s' -> '%s'", query, normalized)
	}

	var queryVector []float32
	if s.embeddingClient != nil {
		vec, err := s.embeddingClient.CreateEmbedding(ctx, query)
		if err != nil {
			// 向量化失败时退化为关键词检索
			log.Warnf("[SearchService] 向量化查询失败, 仅使用关键词检索: %v", err)
		} else {
			queryVector = vec
		}
	}

	hits, err := s.search(ctx, buildSearchQuery(normalized, phrase, queryVector, topK))
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 检索完成, 命中 %d 条", len(hits))
	return hits, nil
}

func (s *searchService) search(ctx context.Context, esQuery map[string]any) ([]model.KnowledgeHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.KnowledgeEsDocument `json:"_source"`
				Score  float64                   `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]model.KnowledgeHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		title := h.Source.FileName
		if h.Source.Heading != "" {
			title = fmt.Sprintf("%s · %s", title, h.Source.Heading)
		}
		hits = append(hits, model.KnowledgeHit{
			DocumentID: h.Source.DocumentID,
			Title:      title,
			Content:    h.Source.TextContent,
			Score:      h.Score,
		})
	}
	return hits, nil
}

// buildSearchQuery 构建检索语句：正文 match 为主，标题与核心短语加权，有向量时附加 kNN 召回。
func buildSearchQuery(normalized, phrase string, vector []float32, topK int) map[string]any {
	should := []any{
		map[string]any{"match": map[string]any{"heading": map[string]any{"query": normalized, "boost": 2.0}}},
	}
	if phrase != "" {
		should = append(should, map[string]any{
			"match_phrase": map[string]any{"text_content": map[string]any{"query": phrase, "boost": 3.0}},
		})
	}
	q := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   map[string]any{"match": map[string]any{"text_content": normalized}},
				"should": should,
			},
		},
		"size":    topK,
		"_source": map[string]any{"excludes": []string{"vector"}},
	}
	if len(vector) > 0 {
		q["knn"] = map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		}
	}
	return q
}

var (
	reKeep  = regexp.MustCompile(`[^\p{Han}a-z0-9\s]+`)
	reSpace = regexp.MustCompile(`\s+`)
)

// normalizeQuery 对用户查询进行轻量去噪与短语提取。
// 返回值：规范化后的查询与核心短语（用于 match_phrase 加权）。
func normalizeQuery(q string) (string, string) {
	if q == "" {
		return q, ""
	}
	lower := strings.ToLower(q)
	stopPhrases := []string{"是谁", "是什么", "是啥", "请问", "怎么", "如何", "告诉我", "的区别", "区别", "吗", "呢", "？", "?"}
	for _, sp := range stopPhrases {
		lower = strings.ReplaceAll(lower, sp, " ")
	}
	kept := reKeep.ReplaceAllString(lower, " ")
	kept = strings.TrimSpace(reSpace.ReplaceAllString(kept, " "))
	if kept == "" {
		return q, ""
	}
	return kept, kept
}
