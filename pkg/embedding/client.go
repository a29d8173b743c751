// Package embedding 封装 OpenAI 兼容的向量化接口。
package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"music-copilot-go/internal/config"
	"music-copilot-go/pkg/log"
)

// Client 定义向量化能力。
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client openai.Client
}

// NewClient 根据配置创建向量化客户端，未配置模型时返回 nil。
func NewClient(cfg config.EmbeddingConfig, opts ...option.RequestOption) Client {
	if cfg.Model == "" {
		return nil
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &openAICompatibleClient{cfg: cfg, client: openai.NewClient(reqOpts...)}
}

// CreateEmbedding 获取单段文本的向量。
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// CreateEmbeddings 批量获取向量，返回顺序与输入一致。
func (c *openAICompatibleClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no input texts")
	}
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, inputs: %d", c.cfg.Model, len(texts))

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if c.cfg.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.cfg.Dimensions))
	}
	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(out) || len(item.Embedding) == 0 {
			return nil, errors.New("received invalid embedding from api")
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[item.Index] = vec
	}
	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取向量, 维度: %d", len(out[0]))
	return out, nil
}
