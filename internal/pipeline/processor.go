// Package pipeline 定义了知识文档入库的核心流程：下载、抽取文本、切块、向量化与索引。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"music-copilot-go/internal/config"
	"music-copilot-go/internal/model"
	"music-copilot-go/internal/repository"
	"music-copilot-go/pkg/embedding"
	"music-copilot-go/pkg/es"
	"music-copilot-go/pkg/log"
	"music-copilot-go/pkg/storage"
	"music-copilot-go/pkg/tasks"
)

// ObjectSource 读取对象存储中的源文件。
type ObjectSource interface {
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// TextExtractor 从二进制文档中抽取纯文本，由 Tika 客户端实现。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// ChunkIndexer 写入与删除检索索引中的切块。
type ChunkIndexer interface {
	IndexChunk(ctx context.Context, doc model.KnowledgeEsDocument) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Processor 封装了知识文档处理的所有依赖和逻辑。
type Processor struct {
	source          ObjectSource
	extractor       TextExtractor
	embeddingClient embedding.Client
	indexer         ChunkIndexer
	repo            repository.KnowledgeRepository
	cfg             config.KnowledgeConfig
}

// NewProcessor 创建一个新的 Processor 实例，embeddingClient 可为 nil。
func NewProcessor(
	source ObjectSource,
	extractor TextExtractor,
	embeddingClient embedding.Client,
	indexer ChunkIndexer,
	repo repository.KnowledgeRepository,
	cfg config.KnowledgeConfig,
) *Processor {
	return &Processor{
		source:          source,
		extractor:       extractor,
		embeddingClient: embeddingClient,
		indexer:         indexer,
		repo:            repo,
		cfg:             cfg,
	}
}

// Process 处理一条入库任务。失败时文档被标记为 failed 并返回错误，由消费者决定是否重试。
func (p *Processor) Process(ctx context.Context, task tasks.KnowledgeIngestTask) error {
	log.Infof("[Processor] 开始处理知识文档, DocumentID: %s, FileName: %s", task.DocumentID, task.FileName)
	if err := p.repo.UpdateStatus(ctx, task.DocumentID, model.DocumentProcessing, 0, ""); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			// 文档已被删除，任务无需处理
			log.Warnf("[Processor] 文档 %s 已不存在，跳过", task.DocumentID)
			return nil
		}
		return fmt.Errorf("更新文档状态失败: %w", err)
	}

	count, err := p.ingest(ctx, task)
	if err != nil {
		if statusErr := p.repo.UpdateStatus(context.WithoutCancel(ctx), task.DocumentID, model.DocumentFailed, 0, err.Error()); statusErr != nil {
			log.Errorf("[Processor] 标记文档失败状态出错, DocumentID: %s, Error: %v", task.DocumentID, statusErr)
		}
		return err
	}
	if err := p.repo.UpdateStatus(ctx, task.DocumentID, model.DocumentReady, count, ""); err != nil {
		return fmt.Errorf("更新文档状态失败: %w", err)
	}
	log.Infof("[Processor] 知识文档处理成功完成, DocumentID: %s, 分块数: %d", task.DocumentID, count)
	return nil
}

func (p *Processor) ingest(ctx context.Context, task tasks.KnowledgeIngestTask) (int, error) {
	// 1. 从 MinIO 下载文件
	log.Infof("[Processor] 步骤1: 从MinIO下载文件, Object: %s", task.ObjectName)
	object, err := p.source.GetObject(ctx, task.ObjectName)
	if err != nil {
		return 0, fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return 0, fmt.Errorf("读取MinIO对象流失败: %w", err)
	}
	if size == 0 {
		return 0, errors.New("文件内容为空")
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d字节", size)

	// 2. 抽取文本
	sections, err := p.extract(ctx, buf.Bytes(), task.FileName)
	if err != nil {
		return 0, err
	}

	// 3. 文本切块
	chunks := p.chunk(task.DocumentID, sections)
	if len(chunks) == 0 {
		return 0, errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 步骤3: 文本分块完成, chunkSize: %d, chunkOverlap: %d, 共 %d 个分块",
		p.cfg.ChunkSize, p.cfg.ChunkOverlap, len(chunks))

	// 重复消费时先清理旧记录，保持幂等
	if err := p.repo.ReplaceChunks(ctx, task.DocumentID, chunks); err != nil {
		return 0, fmt.Errorf("批量保存文本分块失败: %w", err)
	}
	if err := p.indexer.DeleteDocument(ctx, task.DocumentID); err != nil {
		log.Warnf("[Processor] 清理旧索引失败 (document_id=%s): %v", task.DocumentID, err)
	}

	// 4. 向量化并索引
	var vectors [][]float32
	if p.embeddingClient != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.TextContent
		}
		vectors, err = p.embeddingClient.CreateEmbeddings(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("分块向量化失败: %w", err)
		}
	}
	for i, c := range chunks {
		doc := model.KnowledgeEsDocument{
			ChunkKey:    fmt.Sprintf("%s_%d", task.DocumentID, c.ChunkIndex),
			DocumentID:  task.DocumentID,
			FileName:    task.FileName,
			ChunkIndex:  c.ChunkIndex,
			Heading:     c.Heading,
			TextContent: c.TextContent,
		}
		if vectors != nil {
			doc.Vector = vectors[i]
		}
		if err := p.indexer.IndexChunk(ctx, doc); err != nil {
			return 0, fmt.Errorf("索引块 %d 到 Elasticsearch 失败: %w", c.ChunkIndex, err)
		}
	}
	log.Info("[Processor] 步骤4: 所有分块索引完毕")
	return len(chunks), nil
}

// extract 按扩展名选择抽取方式：markdown 用 goldmark，纯文本直接读取，其他格式交给 Tika。
func (p *Processor) extract(ctx context.Context, content []byte, fileName string) ([]Section, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".md", ".markdown":
		log.Info("[Processor] 步骤2: 使用goldmark解析markdown")
		return MarkdownSections(content), nil
	case ".txt":
		if !utf8.Valid(content) {
			return nil, errors.New("文本文件不是合法的 UTF-8 编码")
		}
		return []Section{{Text: string(content)}}, nil
	}

	if p.extractor == nil {
		return nil, fmt.Errorf("不支持的文件类型: %s", fileName)
	}
	log.Info("[Processor] 步骤2: 使用Tika提取文本内容")
	text, err := p.extractor.ExtractText(ctx, bytes.NewReader(content), fileName)
	if err != nil {
		return nil, fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(text))
	return []Section{{Text: text}}, nil
}

func (p *Processor) chunk(documentID string, sections []Section) []model.KnowledgeChunk {
	var chunks []model.KnowledgeChunk
	for _, s := range sections {
		for _, part := range SplitText(s.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap) {
			chunks = append(chunks, model.KnowledgeChunk{
				DocumentID:  documentID,
				ChunkIndex:  len(chunks),
				Heading:     s.Heading,
				TextContent: part,
			})
		}
	}
	return chunks
}

// MinioSource 通过 pkg/storage 读取 MinIO 对象。
type MinioSource struct{}

// GetObject 实现 ObjectSource。
func (MinioSource) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	return storage.GetObject(ctx, objectName)
}

// EsIndexer 把切块写入 Elasticsearch 索引。
type EsIndexer struct {
	IndexName string
}

// IndexChunk 实现 ChunkIndexer。
func (i EsIndexer) IndexChunk(ctx context.Context, doc model.KnowledgeEsDocument) error {
	return es.IndexDocument(ctx, i.IndexName, doc)
}

// DeleteDocument 实现 ChunkIndexer。
func (i EsIndexer) DeleteDocument(ctx context.Context, documentID string) error {
	return es.DeleteByDocumentID(ctx, i.IndexName, documentID)
}
