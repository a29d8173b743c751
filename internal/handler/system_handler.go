package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"music-copilot-go/internal/service"
	"music-copilot-go/internal/skill"
)

// SystemHandler 提供健康检查、快捷操作与技能列表。
type SystemHandler struct {
	version string
	skills  []skill.Skill
}

// NewSystemHandler 创建一个新的 SystemHandler。
func NewSystemHandler(version string, skills []skill.Skill) *SystemHandler {
	return &SystemHandler{version: version, skills: skills}
}

// Health 返回服务状态与版本号。
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// QuickActions 返回首页快捷操作。
func (h *SystemHandler) QuickActions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": service.QuickActions()})
}

// Skills 返回已加载的技能。
func (h *SystemHandler) Skills(c *gin.Context) {
	skills := h.skills
	if skills == nil {
		skills = []skill.Skill{}
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": skills})
}
