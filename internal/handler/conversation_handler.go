package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"music-copilot-go/internal/repository"
	"music-copilot-go/internal/service"
	"music-copilot-go/pkg/log"
)

const defaultConversationLimit = 50

// ConversationHandler 处理与会话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List 按最近更新时间返回会话列表。
func (h *ConversationHandler) List(c *gin.Context) {
	limit := defaultConversationLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "limit 必须是正整数", "data": nil})
			return
		}
		limit = n
	}

	list, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "获取会话列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": list})
}

// Get 返回单个会话。
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "获取会话失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conv})
}

// Messages 按时间正序返回会话的全部消息。
func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "获取消息失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msgs})
}

// Delete 删除会话及其全部消息。
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "删除会话失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"status": "ok"}})
}

// Export 把会话导出为 markdown 并返回临时下载地址。
func (h *ConversationHandler) Export(c *gin.Context) {
	res, err := h.service.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "导出会话失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": res})
}

func (h *ConversationHandler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "会话不存在", "data": nil})
	case errors.Is(err, service.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "未配置对象存储，无法导出", "data": nil})
	default:
		log.Errorf("[ConversationHandler] %s: %v", message, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": message, "data": nil})
	}
}
