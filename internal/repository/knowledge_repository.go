package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"music-copilot-go/internal/model"
)

// ErrDocumentNotFound 表示知识文档不存在。
var ErrDocumentNotFound = errors.New("knowledge document not found")

// KnowledgeRepository 定义了知识文档与切块的持久化操作。
type KnowledgeRepository interface {
	CreateDocument(ctx context.Context, doc *model.KnowledgeDocument) error
	// FindDocument 文档不存在时返回 ErrDocumentNotFound。
	FindDocument(ctx context.Context, id string) (*model.KnowledgeDocument, error)
	ListDocuments(ctx context.Context) ([]model.KnowledgeDocument, error)
	UpdateStatus(ctx context.Context, id, status string, chunkCount int, lastError string) error
	// ReplaceChunks 在一个事务中删除文档旧切块并写入新切块，重复消费同一任务时保持幂等。
	ReplaceChunks(ctx context.Context, documentID string, chunks []model.KnowledgeChunk) error
	DeleteDocument(ctx context.Context, id string) error
}

type knowledgeRepository struct {
	db *gorm.DB
}

// NewKnowledgeRepository 创建一个新的 KnowledgeRepository 实例。
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

func (r *knowledgeRepository) CreateDocument(ctx context.Context, doc *model.KnowledgeDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *knowledgeRepository) FindDocument(ctx context.Context, id string) (*model.KnowledgeDocument, error) {
	var doc model.KnowledgeDocument
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *knowledgeRepository) ListDocuments(ctx context.Context) ([]model.KnowledgeDocument, error) {
	var docs []model.KnowledgeDocument
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

func (r *knowledgeRepository) UpdateStatus(ctx context.Context, id, status string, chunkCount int, lastError string) error {
	res := r.db.WithContext(ctx).Model(&model.KnowledgeDocument{}).Where("id = ?", id).Updates(map[string]any{
		"status":      status,
		"chunk_count": chunkCount,
		"last_error":  lastError,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *knowledgeRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []model.KnowledgeChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error // 每100条记录一批
	})
}

func (r *knowledgeRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.KnowledgeDocument{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
}
