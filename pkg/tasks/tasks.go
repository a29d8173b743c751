// Package tasks 定义写入 Kafka 的任务结构。
package tasks

// KnowledgeIngestTask 是一条知识文档入库任务，对象已上传到 MinIO。
type KnowledgeIngestTask struct {
	DocumentID string `json:"document_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
}
