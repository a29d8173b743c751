package model

import "time"

// 知识文档的处理状态
const (
	DocumentPending    = "pending"
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentFailed     = "failed"
)

// KnowledgeDocument 对应 knowledge_documents 表，记录上传到知识库的源文档。
type KnowledgeDocument struct {
	ID          string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"file_name"`
	ObjectName  string    `gorm:"type:varchar(512);not null" json:"object_name"`
	ContentType string    `gorm:"type:varchar(128)" json:"content_type"`
	Size        int64     `json:"size"`
	Status      string    `gorm:"type:varchar(16);index;not null" json:"status"`
	ChunkCount  int       `json:"chunk_count"`
	LastError   string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

// KnowledgeChunk 对应 knowledge_chunks 表，是文档切块后的文本。
type KnowledgeChunk struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID  string `gorm:"type:varchar(32);index;not null" json:"document_id"`
	ChunkIndex  int    `gorm:"not null" json:"chunk_index"`
	Heading     string `gorm:"type:varchar(255)" json:"heading"`
	TextContent string `gorm:"type:text" json:"text_content"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}

// KnowledgeEsDocument 是写入 Elasticsearch 的切块文档。
type KnowledgeEsDocument struct {
	ChunkKey    string    `json:"chunk_key"` // documentID_chunkIndex
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name"`
	ChunkIndex  int       `json:"chunk_index"`
	Heading     string    `json:"heading"`
	TextContent string    `json:"text_content"`
	Vector      []float32 `json:"vector,omitempty"`
}

// KnowledgeHit 是知识库检索的一条结果。
type KnowledgeHit struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
