// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"music-copilot-go/internal/config"
	"music-copilot-go/internal/model"
	"music-copilot-go/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并确保知识库索引存在。
// dims 为向量维度，0 表示不建向量字段，只做关键词检索。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// IndexMapping 返回知识切块索引的 mapping，正文使用 ik 中文分词。
func IndexMapping(dims int) string {
	properties := map[string]any{
		"chunk_key":   map[string]any{"type": "keyword"},
		"document_id": map[string]any{"type": "keyword"},
		"file_name":   map[string]any{"type": "keyword"},
		"chunk_index": map[string]any{"type": "integer"},
		"heading": map[string]any{
			"type":            "text",
			"analyzer":        "ik_max_word",
			"search_analyzer": "ik_smart",
		},
		"text_content": map[string]any{
			"type":            "text",
			"analyzer":        "ik_max_word",
			"search_analyzer": "ik_smart",
		},
	}
	if dims > 0 {
		properties["vector"] = map[string]any{
			"type":       "dense_vector",
			"dims":       dims,
			"index":      true,
			"similarity": "cosine",
		}
	}
	b, _ := json.Marshal(map[string]any{"mappings": map[string]any{"properties": properties}})
	return string(b)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	created, err := ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(IndexMapping(dims))),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer created.Body.Close()
	if created.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, created.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexDocument 将单个知识切块索引到 Elasticsearch。
func IndexDocument(ctx context.Context, indexName string, doc model.KnowledgeEsDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ChunkKey,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

// DeleteByDocumentID 删除某个知识文档的全部切块。
func DeleteByDocumentID(ctx context.Context, indexName, documentID string) error {
	query := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	res, err := ESClient.DeleteByQuery(
		[]string{indexName},
		strings.NewReader(query),
		ESClient.DeleteByQuery.WithContext(ctx),
		ESClient.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		log.Errorf("从 Elasticsearch 删除文档切块出错: %s", res.String())
		return errors.New("failed to delete document chunks")
	}
	return nil
}
