package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"music-copilot-go/internal/service"
	"music-copilot-go/pkg/log"
)

// SearchHandler 直接检索知识库，便于核对入库效果。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search 处理 GET /api/knowledge/search?query=...&top_k=...
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到知识库检索请求, query: %s", query)

	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的查询参数", "data": nil})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("top_k", "5"))
	if err != nil || topK <= 0 {
		topK = 5
	}

	results, err := h.searchService.Search(c.Request.Context(), query, topK)
	if err != nil {
		log.Errorf("[SearchHandler] 知识库检索失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "搜索失败", "data": nil})
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
