package handler

import "github.com/gin-gonic/gin"

// Handlers 汇总各路由组的处理器，Knowledge 与 Search 为 nil 时不注册知识库路由。
type Handlers struct {
	Chat         *ChatHandler
	Conversation *ConversationHandler
	System       *SystemHandler
	Knowledge    *KnowledgeHandler
	Search       *SearchHandler
}

// RegisterRoutes 在 /api 下注册全部路由。
func RegisterRoutes(r gin.IRouter, h Handlers) {
	api := r.Group("/api")

	api.GET("/health", h.System.Health)
	api.GET("/quick-actions", h.System.QuickActions)
	api.GET("/skills", h.System.Skills)

	chat := api.Group("/chat")
	{
		chat.POST("", h.Chat.Stream)
		chat.GET("/ticket", h.Chat.IssueTicket)
		chat.GET("/ws/:ticket", h.Chat.Handle)
	}

	conversations := api.Group("/conversations")
	{
		conversations.GET("", h.Conversation.List)
		conversations.GET("/:id", h.Conversation.Get)
		conversations.GET("/:id/messages", h.Conversation.Messages)
		conversations.GET("/:id/export", h.Conversation.Export)
		conversations.DELETE("/:id", h.Conversation.Delete)
	}

	if h.Knowledge != nil {
		knowledge := api.Group("/knowledge")
		knowledge.POST("/documents", h.Knowledge.Upload)
		knowledge.GET("/documents", h.Knowledge.List)
		knowledge.DELETE("/documents/:id", h.Knowledge.Delete)
		if h.Search != nil {
			knowledge.GET("/search", h.Search.Search)
		}
	}
}
