package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"music-copilot-go/internal/repository"
	"music-copilot-go/internal/service"
	"music-copilot-go/pkg/log"
	"music-copilot-go/pkg/tika"
)

// KnowledgeHandler 处理知识库文档的上传、列表与删除。
type KnowledgeHandler struct {
	service service.KnowledgeService
}

// NewKnowledgeHandler 创建一个新的 KnowledgeHandler。
func NewKnowledgeHandler(service service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{service: service}
}

// Upload 接收 multipart 字段 file，保存后异步入库。
func (h *KnowledgeHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少上传文件", "data": nil})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = tika.DetectMimeType(header.Filename)
	}

	doc, err := h.service.Upload(c.Request.Context(), service.KnowledgeUpload{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFile) {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "仅支持 20MB 以内的 md/txt/pdf/doc/docx/html 文件", "data": nil})
			return
		}
		log.Errorf("[KnowledgeHandler] 上传知识文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "上传失败", "data": nil})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "文档已接收，正在处理", "data": doc})
}

// List 返回全部知识文档及其处理状态。
func (h *KnowledgeHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context())
	if err != nil {
		log.Errorf("[KnowledgeHandler] 获取知识文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取文档列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// Delete 删除知识文档、切块与索引。
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档不存在", "data": nil})
			return
		}
		log.Errorf("[KnowledgeHandler] 删除知识文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"status": "ok"}})
}
