package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"music-copilot-go/internal/model"
	"music-copilot-go/internal/repository"
	"music-copilot-go/pkg/log"
	"music-copilot-go/pkg/tasks"
)

// MaxKnowledgeFileSize 是单个知识文档的大小上限。
const MaxKnowledgeFileSize = 20 << 20

// ErrUnsupportedFile 表示文件类型不支持或大小超限。
var ErrUnsupportedFile = errors.New("unsupported knowledge file")

var knowledgeExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true,
	".pdf": true, ".doc": true, ".docx": true, ".html": true,
}

// TaskPublisher 投递知识入库任务。
type TaskPublisher interface {
	Publish(ctx context.Context, task tasks.KnowledgeIngestTask) error
}

// TaskPublisherFunc 让普通函数实现 TaskPublisher。
type TaskPublisherFunc func(ctx context.Context, task tasks.KnowledgeIngestTask) error

// Publish 调用 f(ctx, task)。
func (f TaskPublisherFunc) Publish(ctx context.Context, task tasks.KnowledgeIngestTask) error {
	return f(ctx, task)
}

// IndexCleaner 删除检索索引中某个文档的全部切块。
type IndexCleaner interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

// KnowledgeUpload 是一次上传的文件信息。
type KnowledgeUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// KnowledgeService 管理知识库文档：上传入队、列表与删除。
type KnowledgeService interface {
	Upload(ctx context.Context, upload KnowledgeUpload) (*model.KnowledgeDocument, error)
	List(ctx context.Context) ([]model.KnowledgeDocument, error)
	Delete(ctx context.Context, id string) error
}

type knowledgeService struct {
	repo      repository.KnowledgeRepository
	store     ObjectStore
	publisher TaskPublisher
	index     IndexCleaner
}

// NewKnowledgeService 创建一个新的 KnowledgeService 实例。
func NewKnowledgeService(repo repository.KnowledgeRepository, store ObjectStore, publisher TaskPublisher, index IndexCleaner) KnowledgeService {
	return &knowledgeService{repo: repo, store: store, publisher: publisher, index: index}
}

// ValidateKnowledgeFile 校验文件名后缀与大小。
func ValidateKnowledgeFile(fileName string, size int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !knowledgeExtensions[ext] {
		return fmt.Errorf("%w: 不支持的文件类型 %q", ErrUnsupportedFile, ext)
	}
	if size <= 0 || size > MaxKnowledgeFileSize {
		return fmt.Errorf("%w: 文件大小需在 1B 到 20MB 之间", ErrUnsupportedFile)
	}
	return nil
}

func (s *knowledgeService) Upload(ctx context.Context, upload KnowledgeUpload) (*model.KnowledgeDocument, error) {
	fileName := filepath.Base(upload.FileName)
	if err := ValidateKnowledgeFile(fileName, upload.Size); err != nil {
		return nil, err
	}

	doc := &model.KnowledgeDocument{
		ID:          model.NewID(),
		FileName:    fileName,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Status:      model.DocumentPending,
	}
	doc.ObjectName = fmt.Sprintf("knowledge/%s/%s", doc.ID, fileName)

	log.Infof("[KnowledgeService] 上传知识文档 %s -> %s", fileName, doc.ObjectName)
	if err := s.store.PutObject(ctx, doc.ObjectName, upload.Reader, upload.Size, upload.ContentType); err != nil {
		return nil, fmt.Errorf("上传文件到对象存储失败: %w", err)
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		_ = s.store.RemoveObject(context.WithoutCancel(ctx), doc.ObjectName)
		return nil, fmt.Errorf("保存文档记录失败: %w", err)
	}

	task := tasks.KnowledgeIngestTask{DocumentID: doc.ID, ObjectName: doc.ObjectName, FileName: doc.FileName}
	if err := s.publisher.Publish(ctx, task); err != nil {
		log.Errorf("[KnowledgeService] 投递入库任务失败, DocumentID=%s: %v", doc.ID, err)
		_ = s.repo.UpdateStatus(ctx, doc.ID, model.DocumentFailed, 0, "投递入库任务失败")
		return nil, fmt.Errorf("投递入库任务失败: %w", err)
	}
	return doc, nil
}

func (s *knowledgeService) List(ctx context.Context) ([]model.KnowledgeDocument, error) {
	return s.repo.ListDocuments(ctx)
}

func (s *knowledgeService) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.FindDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		return err
	}
	// 索引与对象清理失败不影响删除结果
	if err := s.index.DeleteDocument(ctx, id); err != nil {
		log.Warnf("[KnowledgeService] 清理文档 %s 的索引失败: %v", id, err)
	}
	if err := s.store.RemoveObject(ctx, doc.ObjectName); err != nil {
		log.Warnf("[KnowledgeService] 删除对象 %s 失败: %v", doc.ObjectName, err)
	}
	return nil
}
